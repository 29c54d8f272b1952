package analysis

import (
	"fmt"
	"math"
)

// Stage is a step of one analysis run
type Stage int

const (
	StageInit Stage = iota
	StagePagesExtracted
	StageLanguageDetected
	StageMetadataExtracted
	StageSubjectsRetrieved
	StageScoresComputed
	StageFiltered
	StageDone
)

var stageNames = map[Stage]string{
	StageInit:              "init",
	StagePagesExtracted:    "pages_extracted",
	StageLanguageDetected:  "language_detected",
	StageMetadataExtracted: "metadata_extracted",
	StageSubjectsRetrieved: "subjects_retrieved",
	StageScoresComputed:    "scores_computed",
	StageFiltered:          "filtered",
	StageDone:              "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError records the stage that failed to complete
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Bounds for the min_confidence parameter of a book analysis
const (
	MinConfidenceLower   = 0.90
	MinConfidenceUpper   = 1.0
	DefaultMinConfidence = 0.98
)

// ValidateMinConfidence rejects thresholds outside [0.90, 1.0]
func ValidateMinConfidence(v float64) error {
	if math.IsNaN(v) || v < MinConfidenceLower || v > MinConfidenceUpper {
		return fmt.Errorf("min_confidence must be within [%.2f, %.2f], got %v", MinConfidenceLower, MinConfidenceUpper, v)
	}
	return nil
}
