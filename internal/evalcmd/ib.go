package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/app"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/eval/dataset"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/eval/metrics"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/eval/results"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"golang.org/x/sync/errgroup"
)

// TextAnalyzer runs the pipeline on text that was already recognised
type TextAnalyzer interface {
	AnalyzeExtractions(ctx context.Context, extractions []models.PageExtraction, minConfidence float64) *models.BookAnalysisResult
}

type IBOptions struct {
	DatasetPath   string
	OutputJSON    string
	OutputReport  string
	EvalDir       string
	Sample        int
	FrontMatter   int
	Workers       int
	MinConfidence float64
}

func executeIB(ctx context.Context, cfg *config.Config, opts IBOptions, out io.Writer) error {
	slog.Info("Starting book analyzer evaluation",
		"dataset", opts.DatasetPath,
		"sample_size", opts.Sample,
		"workers", opts.Workers,
		"min_confidence", opts.MinConfidence)

	records, err := dataset.NewLoader(opts.DatasetPath).Load(opts.Sample)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "records", len(records))

	components, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	evaluated := evaluate(ctx, components.Orchestrator(cfg), cfg.Language.Names, records, opts)

	aggregated := metrics.AggregateEvaluationResults(evaluated, "text", opts.DatasetPath)
	aggregated.PrintSummary(out)

	if opts.OutputJSON != "" {
		if err := aggregated.SaveToJSON(opts.OutputJSON); err != nil {
			slog.Warn("Failed to save JSON results", "err", err)
		} else {
			fmt.Fprintf(out, "\nResults saved to: %s\n", opts.OutputJSON)
		}
	}
	if opts.OutputReport != "" {
		if err := aggregated.SaveDetailedReport(opts.OutputReport); err != nil {
			slog.Warn("Failed to save detailed report", "err", err)
		} else {
			fmt.Fprintf(out, "Detailed report saved to: %s\n", opts.OutputReport)
		}
	}
	if opts.EvalDir != "" {
		path, err := results.SaveToYAML(opts.EvalDir, results.EvalConfig{
			Engine:        "text",
			DatasetPath:   opts.DatasetPath,
			SampleSize:    opts.Sample,
			FrontMatter:   opts.FrontMatter,
			MinConfidence: opts.MinConfidence,
			Authorities:   cfg.Analysis.Authorities,
		}, evaluated)
		if err != nil {
			slog.Warn("Failed to save YAML results", "err", err)
		} else {
			fmt.Fprintf(out, "Evaluation results saved to: %s\n", path)
		}
	}

	slog.Info("Evaluation complete")
	return ctx.Err()
}

// evaluate analyzes records concurrently; results keep dataset order
func evaluate(ctx context.Context, analyzer TextAnalyzer, names map[string]string, records []dataset.Record, opts IBOptions) []metrics.EvaluationResult {
	evaluated := make([]metrics.EvaluationResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Workers))
	for i := range records {
		g.Go(func() error {
			evaluated[i] = evaluateRecord(gctx, analyzer, names, &records[i], opts)
			slog.Debug("Record evaluated",
				"index", i+1,
				"total", len(records),
				"barcode", records[i].BarcodeSource,
				"score", evaluated[i].Score)
			return nil
		})
	}
	_ = g.Wait()

	return evaluated
}

func evaluateRecord(ctx context.Context, analyzer TextAnalyzer, names map[string]string, record *dataset.Record, opts IBOptions) metrics.EvaluationResult {
	start := time.Now()
	result := metrics.EvaluationResult{
		Barcode: record.BarcodeSource,
		Title:   record.TitleSource,
	}

	extractions := record.Extractions(opts.FrontMatter)
	if len(extractions) == 0 {
		result.Error = "no OCR text available"
		result.ProcessingTime = time.Since(start)
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	analysis := analyzer.AnalyzeExtractions(ctx, extractions, opts.MinConfidence)
	result.ProcessingTime = time.Since(start)

	result.Fields = metrics.Compare(metrics.GroundTruth{
		ISBNs:    record.IdentifiersSource.ISBN,
		LCCNs:    record.IdentifiersSource.LCCN,
		Year:     record.Year(),
		Language: record.LanguageSource,
	}, analysis, names)
	result.Score = metrics.ScoreFields(result.Fields)
	result.OverallConfidence = analysis.OverallConfidence
	result.Subjects = analysis.Metadata.Subjects

	slog.Info("Comparison complete",
		"barcode", record.BarcodeSource,
		"score", result.Score,
		"language", analysis.LanguageInfo.Language,
		"subjects", len(result.Subjects))

	return result
}
