package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/pages"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/scoring"
	"golang.org/x/sync/errgroup"
)

type PageExtractor interface {
	Extract(ctx context.Context, role models.PageRole, upload *pages.Upload) models.PageExtraction
}

type LanguageClassifier interface {
	Classify(text string) models.LanguageInfo
}

type MetadataExtractor interface {
	Extract(pages []models.PageExtraction, lang models.LanguageInfo) models.BookMetadata
}

type SubjectRetriever interface {
	Retrieve(ctx context.Context, text string, lang models.LanguageInfo, limit int) ([]models.SubjectHeading, error)
}

type ConfidenceScorer interface {
	Score(pages []models.PageExtraction, candidates []models.SubjectHeading, lang models.LanguageInfo) map[string]float64
}

// Options are the analysis settings taken from config.AnalysisConfig
type Options struct {
	CandidateLimit   int
	RetrievalFailure string
	Authorities      []string
}

func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		CandidateLimit:   cfg.CandidateLimit,
		RetrievalFailure: cfg.RetrievalFailure,
		Authorities:      cfg.Authorities,
	}
}

// Request is one analysis: an upload per supplied page role
type Request struct {
	Pages         map[models.PageRole]*pages.Upload
	MinConfidence float64
}

// Orchestrator runs the book analysis pipeline
type Orchestrator struct {
	pages      PageExtractor
	classifier LanguageClassifier
	metadata   MetadataExtractor
	subjects   SubjectRetriever
	scorer     ConfidenceScorer
	opts       Options
}

func New(pe PageExtractor, lc LanguageClassifier, me MetadataExtractor, sr SubjectRetriever, sc ConfidenceScorer, opts Options) *Orchestrator {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 20
	}
	if opts.RetrievalFailure == "" {
		opts.RetrievalFailure = config.RetrievalFailureEmptyResult
	}
	return &Orchestrator{
		pages:      pe,
		classifier: lc,
		metadata:   me,
		subjects:   sr,
		scorer:     sc,
		opts:       opts,
	}
}

// Analyze always returns a well-formed result. Any stage failure, panic or
// cancellation yields the empty zero-confidence result; the cause is logged.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) *models.BookAnalysisResult {
	result, err := o.Run(ctx, req)
	if err != nil {
		slog.Error("Book analysis failed, returning empty result", "err", err)
		return models.EmptyAnalysisResult()
	}
	return result
}

// AnalyzeExtractions runs the pipeline on already-extracted page text
func (o *Orchestrator) AnalyzeExtractions(ctx context.Context, extractions []models.PageExtraction, minConfidence float64) *models.BookAnalysisResult {
	result, err := o.runGuarded(ctx, func() (*models.BookAnalysisResult, error) {
		return o.analyzeExtractions(ctx, extractions, minConfidence)
	})
	if err != nil {
		slog.Error("Text analysis failed, returning empty result", "err", err)
		return models.EmptyAnalysisResult()
	}
	return result
}

// Run executes the pipeline and reports the failing stage, if any
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.BookAnalysisResult, error) {
	return o.runGuarded(ctx, func() (*models.BookAnalysisResult, error) {
		extractions, err := o.extractPages(ctx, req.Pages)
		if err != nil {
			return nil, err
		}
		return o.analyzeExtractions(ctx, extractions, req.MinConfidence)
	})
}

func (o *Orchestrator) runGuarded(ctx context.Context, fn func() (*models.BookAnalysisResult, error)) (result *models.BookAnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic during book analysis", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, &StageError{Stage: StageInit, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}
	return fn()
}

// extractPages runs one extraction per supplied role concurrently.
// Roles with a nil upload are treated as absent.
func (o *Orchestrator) extractPages(ctx context.Context, uploads map[models.PageRole]*pages.Upload) ([]models.PageExtraction, error) {
	var (
		mu          sync.Mutex
		extractions = make([]models.PageExtraction, 0, len(uploads))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, role := range models.PageRoles {
		upload, ok := uploads[role]
		if !ok || upload == nil {
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic extracting %s: %v", role, r)
				}
			}()
			ext := o.pages.Extract(gctx, role, upload)
			mu.Lock()
			extractions = append(extractions, ext)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &StageError{Stage: StagePagesExtracted, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StagePagesExtracted, Err: err}
	}

	slices.SortFunc(extractions, func(a, b models.PageExtraction) int {
		return slices.Index(models.PageRoles, a.Role) - slices.Index(models.PageRoles, b.Role)
	})
	slog.Debug("Pages extracted", "stage", StagePagesExtracted, "pages", len(extractions))
	return extractions, nil
}

func (o *Orchestrator) analyzeExtractions(ctx context.Context, extractions []models.PageExtraction, minConfidence float64) (*models.BookAnalysisResult, error) {
	text := models.CombineText(extractions)
	lang := o.classifier.Classify(text)
	slog.Debug("Language detected", "stage", StageLanguageDetected, "language", lang.Language, "confidence", lang.Confidence, "script", lang.Script)

	var (
		metadata   models.BookMetadata
		candidates []models.SubjectHeading
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &StageError{Stage: StageMetadataExtracted, Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		metadata = o.metadata.Extract(extractions, lang)
		return nil
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &StageError{Stage: StageSubjectsRetrieved, Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		found, err := o.subjects.Retrieve(gctx, text, lang, o.opts.CandidateLimit)
		if err != nil {
			if ctx.Err() == nil && o.opts.RetrievalFailure == config.RetrievalFailureDegradeSubjects {
				slog.Warn("Subject retrieval failed, continuing without subjects", "err", err)
				candidates = []models.SubjectHeading{}
				return nil
			}
			return &StageError{Stage: StageSubjectsRetrieved, Err: err}
		}
		candidates = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageSubjectsRetrieved, Err: err}
	}

	scores := o.scorer.Score(extractions, candidates, lang)
	slog.Debug("Scores computed", "stage", StageScoresComputed, "candidates", len(candidates))

	suggested := Filter(candidates, scores, minConfidence)
	metadata.Subjects = make([]string, 0, len(suggested))
	for _, s := range suggested {
		metadata.Subjects = append(metadata.Subjects, s.Title)
	}
	if metadata.Chapters == nil {
		metadata.Chapters = []string{}
	}

	authorities := []string{}
	if len(candidates) > 0 {
		authorities = append(authorities, o.opts.Authorities...)
	}

	extracted := make(map[string]string, len(extractions))
	for _, e := range extractions {
		extracted[string(e.Role)] = e.RawText
	}

	result := &models.BookAnalysisResult{
		Metadata:          metadata,
		SuggestedSubjects: suggested,
		ConfidenceScores:  scores,
		ExtractedText:     extracted,
		AuthoritiesUsed:   authorities,
		LanguageInfo:      lang,
		OverallConfidence: scoring.Overall(scores),
	}
	slog.Info("Book analysis complete",
		"stage", StageDone,
		"language", lang.Language,
		"candidates", len(candidates),
		"suggested", len(suggested),
		"overall_confidence", result.OverallConfidence,
	)
	return result, nil
}

// Filter keeps candidates whose score is at least minConfidence, in order,
// with Confidence set to that score
func Filter(candidates []models.SubjectHeading, scores map[string]float64, minConfidence float64) []models.SubjectHeading {
	out := []models.SubjectHeading{}
	for _, c := range candidates {
		score, ok := scores[c.Title]
		if !ok || score < minConfidence {
			continue
		}
		c.Confidence = score
		out = append(out, c)
	}
	return out
}
