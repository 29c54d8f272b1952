package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

// EvalConfig is the run configuration recorded with each YAML result file
type EvalConfig struct {
	Engine        string   `yaml:"engine"`
	DatasetPath   string   `yaml:"datasetpath"`
	SampleSize    int      `yaml:"samplesize"`
	FrontMatter   int      `yaml:"frontmatter"`
	MinConfidence float64  `yaml:"minconfidence"`
	Authorities   []string `yaml:"authorities"`
	Timestamp     string   `yaml:"timestamp"`
}

type EvalResult struct {
	Identifier        string             `yaml:"identifier"`
	Title             string             `yaml:"title"`
	Score             float64            `yaml:"score"`
	OverallConfidence float64            `yaml:"overallconfidence"`
	Subjects          []string           `yaml:"subjects,omitempty"`
	FieldScores       map[string]float64 `yaml:"fieldscores"`
	FieldMethods      map[string]string  `yaml:"fieldmethods"`
}

type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Results []EvalResult `yaml:"results"`
}

// Build converts successful evaluation results; failed records are left out
func Build(cfg EvalConfig, results []metrics.EvaluationResult) EvalSpec {
	spec := EvalSpec{
		Config:  cfg,
		Results: make([]EvalResult, 0, len(results)),
	}

	for _, r := range results {
		if r.Error != "" {
			continue
		}
		res := EvalResult{
			Identifier:        r.Barcode,
			Title:             r.Title,
			Score:             r.Score,
			OverallConfidence: r.OverallConfidence,
			Subjects:          r.Subjects,
			FieldScores:       make(map[string]float64, len(r.Fields)),
			FieldMethods:      make(map[string]string, len(r.Fields)),
		}
		for name, m := range r.Fields {
			res.FieldScores[name] = m.Score
			res.FieldMethods[name] = m.Method
		}
		spec.Results = append(spec.Results, res)
	}
	return spec
}

// SaveToYAML writes the run to dir/<engine>-<timestamp>.yaml and returns the path
func SaveToYAML(dir string, cfg EvalConfig, results []metrics.EvaluationResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	spec := Build(cfg, results)
	data, err := yaml.Marshal(&spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", cfg.Engine, cfg.Timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return filename, nil
	}
	return absPath, nil
}
