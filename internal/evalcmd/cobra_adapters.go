package evalcmd

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/analysis"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/eval/dataset"
	"github.com/spf13/cobra"
)

// ConfigLoader returns the configuration selected by the root command's flags
type ConfigLoader func() (*config.Config, error)

// NewIBCmd creates the ib command for evaluating with the Institutional Books dataset
func NewIBCmd(loadConfig ConfigLoader) *cobra.Command {
	var opts IBOptions

	cmd := &cobra.Command{
		Use:   "ib",
		Short: "Evaluate using Institutional Books 1.0 dataset",
		Long: `Evaluate the analysis pipeline using the Institutional Books 1.0 dataset from HuggingFace.

Each volume's OCR text is mapped onto page roles (front cover, front matter as
the copyright page, contents page, back cover) and run through language
detection, metadata extraction and subject retrieval. The extracted ISBN,
LCCN, year and language are scored against the dataset's catalog values.

Dataset: https://huggingface.co/datasets/instdin/institutional-books-1.0`,
		Example: `  # Evaluate 10 records
  bookanalyzer eval ib --dataset ./train-00000-of-09831.parquet --sample 10

  # Evaluate the whole shard with 8 workers
  bookanalyzer eval ib --dataset ./train-00000-of-09831.parquet --sample -1 --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.DatasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s\n\nDownload a shard first:\n  bookanalyzer eval fetch", opts.DatasetPath)
			}
			if err := analysis.ValidateMinConfidence(opts.MinConfidence); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return executeIB(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "./institutional-books-1.0/"+dataset.DefaultShard, "Path to Institutional Books parquet or jsonl file")
	cmd.Flags().StringVar(&opts.OutputJSON, "output-json", "eval_results.json", "Path to output JSON results file (empty to skip)")
	cmd.Flags().StringVar(&opts.OutputReport, "output-report", "eval_report.txt", "Path to output detailed report file (empty to skip)")
	cmd.Flags().StringVar(&opts.EvalDir, "evals-dir", "evals", "Directory for YAML result files (empty to skip)")
	cmd.Flags().IntVar(&opts.Sample, "sample", 10, "Number of records to evaluate (-1 for all)")
	cmd.Flags().IntVar(&opts.FrontMatter, "front-matter", 10, "Pages after the first treated as front matter")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "Records analyzed concurrently")
	cmd.Flags().Float64Var(&opts.MinConfidence, "min-confidence", analysis.DefaultMinConfidence, "Minimum subject confidence (0.90-1.0)")

	return cmd
}

// NewFetchCmd downloads a dataset shard into the local cache
func NewFetchCmd() *cobra.Command {
	var cfg dataset.DownloadConfig
	var shard string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download an Institutional Books shard from HuggingFace",
		Long: `Download one file of the Institutional Books 1.0 dataset into the
HuggingFace cache directory and print its path. The dataset is gated; set
HF_TOKEN to a token that has accepted its terms.`,
		Example: `  bookanalyzer eval fetch
  bookanalyzer eval fetch --shard data/train-00001-of-09831.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				cfg.Token = os.Getenv("HF_TOKEN")
			}
			path, err := dataset.NewDownloader(cfg).Download(cmd.Context(), shard)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&shard, "shard", dataset.DefaultShard, "Dataset file to download")
	cmd.Flags().StringVar(&cfg.CacheDir, "cache-dir", dataset.DefaultCacheDir, "Cache directory")
	cmd.Flags().BoolVar(&cfg.ForceDownload, "force", false, "Download even when cached")

	return cmd
}
