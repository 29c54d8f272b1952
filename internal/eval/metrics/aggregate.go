package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// EvaluationResult is the outcome of analyzing one dataset volume
type EvaluationResult struct {
	Barcode           string                `json:"barcode"`
	Title             string                `json:"title"`
	Fields            map[string]FieldMatch `json:"fields,omitempty"`
	Score             float64               `json:"score"`
	Subjects          []string              `json:"subjects,omitempty"`
	OverallConfidence float64               `json:"overall_confidence"`
	ProcessingTime    time.Duration         `json:"processing_time"`
	Error             string                `json:"error,omitempty"`
}

// ScoreFields is the mean score over the fields the catalog record has.
// A record with nothing to score gets 0.
func ScoreFields(fields map[string]FieldMatch) float64 {
	total, n := 0.0, 0
	for _, m := range fields {
		if m.Scored() {
			total += m.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// FieldStats counts match methods for one field across all records
type FieldStats struct {
	ExactMatches    int     `json:"exact_matches"`
	NoMatches       int     `json:"no_matches"`
	ActualMissing   int     `json:"actual_missing"`
	ExpectedMissing int     `json:"expected_missing"`
	Accuracy        float64 `json:"accuracy"`
}

// Scored is the number of records the catalog had a value for
func (s FieldStats) Scored() int {
	return s.ExactMatches + s.NoMatches + s.ActualMissing
}

type AggregateResults struct {
	TotalRecords int `json:"total_records"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	Fields map[string]*FieldStats `json:"fields"`

	OverallAccuracy      float64 `json:"overall_accuracy"`
	AverageConfidence    float64 `json:"average_confidence"`
	AverageSubjectsCount float64 `json:"average_subjects"`

	AverageProcessingTime time.Duration `json:"average_processing_time"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`

	Results []EvaluationResult `json:"results"`

	EvaluationDate time.Time `json:"evaluation_date"`
	Engine         string    `json:"engine"`
	DatasetPath    string    `json:"dataset_path"`
}

func AggregateEvaluationResults(results []EvaluationResult, engine, datasetPath string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Fields:         make(map[string]*FieldStats, len(Fields)),
		Results:        results,
		EvaluationDate: time.Now(),
		Engine:         engine,
		DatasetPath:    datasetPath,
	}
	for _, f := range Fields {
		agg.Fields[f] = &FieldStats{}
	}

	var totalScore, totalConfidence float64
	var totalSubjects int
	var successDuration time.Duration

	for _, result := range results {
		agg.TotalProcessingTime += result.ProcessingTime

		if result.Error != "" {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += result.ProcessingTime
		totalScore += result.Score
		totalConfidence += result.OverallConfidence
		totalSubjects += len(result.Subjects)

		for name, match := range result.Fields {
			stats, ok := agg.Fields[name]
			if !ok {
				continue
			}
			switch match.Method {
			case MethodExact:
				stats.ExactMatches++
			case MethodNoMatch:
				stats.NoMatches++
			case MethodActualMissing:
				stats.ActualMissing++
			case MethodExpectedMissing, MethodBothMissing:
				stats.ExpectedMissing++
			}
		}
	}

	for _, stats := range agg.Fields {
		if n := stats.Scored(); n > 0 {
			stats.Accuracy = float64(stats.ExactMatches) / float64(n)
		}
	}

	if agg.SuccessCount > 0 {
		n := float64(agg.SuccessCount)
		agg.OverallAccuracy = totalScore / n
		agg.AverageConfidence = totalConfidence / n
		agg.AverageSubjectsCount = float64(totalSubjects) / n
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}

	return agg
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "BOOK ANALYZER EVALUATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Dataset: %s\n", a.DatasetPath)
	fmt.Fprintf(w, "Engine: %s\n", a.Engine)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Records: %d\n", a.TotalRecords)
	fmt.Fprintf(w, "Successful: %d (%.1f%%)\n", a.SuccessCount, percent(a.SuccessCount, a.TotalRecords))
	fmt.Fprintf(w, "Failed: %d (%.1f%%)\n", a.FailureCount, percent(a.FailureCount, a.TotalRecords))
	fmt.Fprintf(w, "Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Fprintf(w, "Total Processing Time: %s\n", a.TotalProcessingTime)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "FIELD-LEVEL ACCURACY")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, name := range Fields {
		stats := a.Fields[name]
		if stats == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(name))
		fmt.Fprintf(w, "  Accuracy: %.2f%% of %d catalogued\n", stats.Accuracy*100, stats.Scored())
		fmt.Fprintf(w, "  Exact Matches: %d\n", stats.ExactMatches)
		fmt.Fprintf(w, "  No Matches: %d\n", stats.NoMatches)
		fmt.Fprintf(w, "  Not Extracted: %d\n", stats.ActualMissing)
		fmt.Fprintf(w, "  Not Catalogued: %d\n", stats.ExpectedMissing)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OVERALL")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Overall Accuracy: %.2f%% (%.3f)\n", a.OverallAccuracy*100, a.OverallAccuracy)
	fmt.Fprintf(w, "Average Confidence: %.3f\n", a.AverageConfidence)
	fmt.Fprintf(w, "Average Subjects Suggested: %.1f\n", a.AverageSubjectsCount)
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func (a *AggregateResults) SaveToJSON(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("failed to encode results to JSON: %w", err)
	}
	return nil
}

// SaveDetailedReport writes every record's field comparisons as plain text
func (a *AggregateResults) SaveDetailedReport(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	a.WriteDetailedReport(file)
	return nil
}

func (a *AggregateResults) WriteDetailedReport(w io.Writer) {
	separator := strings.Repeat("=", 80)
	dash := strings.Repeat("-", 80)

	fmt.Fprintf(w, "BOOK ANALYZER EVALUATION DETAILED REPORT\n")
	fmt.Fprintf(w, "Generated: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Engine: %s\n", a.Engine)
	fmt.Fprintf(w, "%s\n\n", separator)

	for i, result := range a.Results {
		fmt.Fprintf(w, "RECORD %d: %s\n", i+1, result.Barcode)
		fmt.Fprintf(w, "%s\n", dash)
		fmt.Fprintf(w, "Title: %s\n", result.Title)
		fmt.Fprintf(w, "Processing Time: %s\n", result.ProcessingTime)

		if result.Error != "" {
			fmt.Fprintf(w, "ERROR: %s\n", result.Error)
		} else {
			fmt.Fprintf(w, "\nField Comparisons:\n")
			for _, name := range Fields {
				m, ok := result.Fields[name]
				if !ok {
					continue
				}
				fmt.Fprintf(w, "  %-9s %.2f (%s) - Expected: %s, Actual: %s\n", name+":", m.Score, m.Method, m.Expected, m.Actual)
			}
			if len(result.Subjects) > 0 {
				fmt.Fprintf(w, "\nSubjects: %s\n", strings.Join(result.Subjects, "; "))
			}
			fmt.Fprintf(w, "\nScore: %.2f%%  Confidence: %.3f\n", result.Score*100, result.OverallConfidence)
		}

		fmt.Fprintf(w, "\n%s\n\n", separator)
	}
}
