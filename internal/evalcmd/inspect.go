package evalcmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/eval/dataset"
	"github.com/spf13/cobra"
)

// NewInspectCmd shows dataset records and the page roles the evaluator
// derives from them
func NewInspectCmd() *cobra.Command {
	var datasetPath string
	var limit int
	var frontMatter int
	var interactive bool
	var showText bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect dataset records and their page-role mapping",
		Long: `Inspect records from a parquet or jsonl dataset file.

Shows the catalog values the evaluation scores against and, per page role,
the OCR text that is handed to the analysis pipeline.`,
		Example: `  # Inspect first 5 records interactively
  bookanalyzer eval inspect --dataset ./data.parquet --limit 5 --interactive

  # Only catalog values
  bookanalyzer eval inspect --dataset ./data.parquet --text=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := dataset.NewLoader(datasetPath).Load(limit)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			return inspect(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), records, frontMatter, interactive, showText)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to inspect (0 for all)")
	cmd.Flags().IntVar(&frontMatter, "front-matter", 10, "Pages after the first treated as front matter")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Pause after each record (press Enter to continue)")
	cmd.Flags().BoolVar(&showText, "text", true, "Show page-role text previews")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

const previewChars = 500

func inspect(ctx context.Context, w io.Writer, in io.Reader, records []dataset.Record, frontMatter int, interactive, showText bool) error {
	fmt.Fprintf(w, "Loaded %d records\n", len(records))
	fmt.Fprintln(w, strings.Repeat("=", 80))

	reader := bufio.NewReader(in)
	for i, record := range records {
		if ctx.Err() != nil {
			fmt.Fprintln(w, "\nInspection interrupted.")
			return nil
		}

		fmt.Fprintf(w, "RECORD %d/%d\n", i+1, len(records))
		fmt.Fprintln(w, strings.Repeat("-", 80))
		fmt.Fprintf(w, "Barcode:        %s\n", record.BarcodeSource)
		fmt.Fprintf(w, "Title:          %s\n", record.TitleSource)
		fmt.Fprintf(w, "Author:         %s\n", record.AuthorSource)
		fmt.Fprintf(w, "Year:           %s\n", record.Year())
		fmt.Fprintf(w, "Language:       %s\n", record.LanguageSource)
		fmt.Fprintf(w, "Subjects:       %s\n", record.TopicOrSubjectSource)
		fmt.Fprintf(w, "ISBN(s):        %s\n", strings.Join(record.IdentifiersSource.ISBN, ", "))
		fmt.Fprintf(w, "LCCN(s):        %s\n", strings.Join(record.IdentifiersSource.LCCN, ", "))
		fmt.Fprintf(w, "Pages w/ OCR:   %d of %d\n", len(record.Pages()), record.PageCountSource)

		if showText {
			for _, page := range record.Extractions(frontMatter) {
				text := page.RawText
				if runes := []rune(text); len(runes) > previewChars {
					text = string(runes[:previewChars]) + fmt.Sprintf("\n[... %d of %d characters ...]", previewChars, len(runes))
				}
				fmt.Fprintf(w, "\n[%s]\n%s\n", page.Role, text)
			}
		}
		fmt.Fprintln(w)

		if interactive {
			fmt.Fprint(w, "Press Enter to continue to next record (or Ctrl+C to quit)...")
			inputCh := make(chan struct{})
			go func() {
				_, _ = reader.ReadString('\n')
				close(inputCh)
			}()

			select {
			case <-ctx.Done():
				fmt.Fprintln(w, "\nInspection interrupted.")
				return nil
			case <-inputCh:
				fmt.Fprintln(w)
			}
		}
	}

	return nil
}

