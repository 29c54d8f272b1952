package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/evalcmd"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	cfgFile string
	verbose bool
	output  string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bookanalyzer",
		Short: "Bibliographic metadata and subject suggestions from photographs of book pages",
		Long: `Bookanalyzer reads photographs of a book's cover, copyright page and table
of contents, extracts ISBN, publication year, publisher, LCCN and chapters,
detects the language and script, and suggests Library of Congress subject
headings with confidence scores.

It runs as an HTTP service (serve) or directly from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := getLogLevelFromEnv()
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			switch opts.output {
			case "yaml", "json":
				return nil
			default:
				return fmt.Errorf("--output must be yaml or json, got %q", opts.output)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "Config file (default ./config.yaml or $HOME/.bookanalyzer/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "yaml", "Output format: yaml or json")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newSubjectsCmd(opts))
	cmd.AddCommand(newAuthoritiesCmd(opts))
	cmd.AddCommand(newMARCFieldsCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))

	return cmd
}

func (o *rootOptions) configManager() (*config.Manager, error) {
	return config.NewManager(o.cfgFile)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cm, err := o.configManager()
	if err != nil {
		return nil, err
	}
	return cm.Get(), nil
}

// print writes v to w in the selected output format
func (o *rootOptions) print(w io.Writer, v any) error {
	if o.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func getLogLevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newEvalCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Pipeline evaluation tools",
		Long: `Evaluation tools for measuring metadata extraction and language detection
accuracy against professionally catalogued volumes.`,
	}

	cmd.AddCommand(evalcmd.NewIBCmd(opts.loadConfig))
	cmd.AddCommand(evalcmd.NewFetchCmd())
	cmd.AddCommand(evalcmd.NewInspectCmd())

	return cmd
}
