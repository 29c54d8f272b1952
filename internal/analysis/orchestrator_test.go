package analysis

import (
	"context"
	"errors"
	"math"
	"reflect"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/language"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/metadata"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/pages"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/scoring"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/subjects"
)

// textPages "extracts" the upload bytes as text
type textPages struct {
	block bool
}

func (p textPages) Extract(ctx context.Context, role models.PageRole, upload *pages.Upload) models.PageExtraction {
	if p.block {
		<-ctx.Done()
		return models.PageExtraction{Role: role}
	}
	return models.PageExtraction{Role: role, RawText: string(upload.Data)}
}

type fakeSearcher struct {
	results map[string][]models.SubjectHeading
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]models.SubjectHeading, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type fixedScorer map[string]float64

func (s fixedScorer) Score(pages []models.PageExtraction, candidates []models.SubjectHeading, lang models.LanguageInfo) map[string]float64 {
	out := map[string]float64{}
	for _, c := range candidates {
		if v, ok := s[c.Title]; ok {
			out[c.Title] = v
		}
	}
	return out
}

type panicClassifier struct{}

func (panicClassifier) Classify(string) models.LanguageInfo { panic("detector exploded") }

// fixedClassifier reports a confident language so scores stay high
type fixedClassifier struct{}

func (fixedClassifier) Classify(text string) models.LanguageInfo {
	if text == "" {
		return models.UnknownLanguage()
	}
	return models.LanguageInfo{Language: "English", Confidence: 1.0, Script: "roman"}
}

func upload(text string) *pages.Upload {
	return &pages.Upload{Data: []byte(text)}
}

func heading(id, title string) models.SubjectHeading {
	return models.SubjectHeading{ID: id, Title: title}
}

type setup struct {
	pages      PageExtractor
	classifier LanguageClassifier
	searcher   subjects.Searcher
	scorer     ConfidenceScorer
	policy     string
}

func newOrchestrator(s setup) *Orchestrator {
	cfg := config.DefaultConfig()
	if s.pages == nil {
		s.pages = textPages{}
	}
	if s.classifier == nil {
		s.classifier = language.NewClassifier(cfg.Language)
	}
	if s.searcher == nil {
		s.searcher = &fakeSearcher{}
	}
	if s.scorer == nil {
		s.scorer = scoring.NewAggregator(cfg.Scoring)
	}
	opts := OptionsFromConfig(cfg.Analysis)
	if s.policy != "" {
		opts.RetrievalFailure = s.policy
	}
	return New(s.pages, s.classifier, metadata.NewExtractor(), subjects.NewRetriever(s.searcher, cfg.Analysis.TokenLimit), s.scorer, opts)
}

func assertWellFormed(t *testing.T, r *models.BookAnalysisResult, minConfidence float64) {
	t.Helper()
	if r == nil {
		t.Fatal("result is nil")
	}
	if r.OverallConfidence < 0 || r.OverallConfidence > 1 {
		t.Errorf("OverallConfidence = %v out of range", r.OverallConfidence)
	}
	want := 0.0
	if len(r.ConfidenceScores) > 0 {
		for _, v := range r.ConfidenceScores {
			want += v
		}
		want /= float64(len(r.ConfidenceScores))
	}
	if math.Abs(r.OverallConfidence-want) > 1e-9 {
		t.Errorf("OverallConfidence = %v, want mean %v", r.OverallConfidence, want)
	}
	for _, s := range r.SuggestedSubjects {
		score, ok := r.ConfidenceScores[s.Title]
		if !ok || score < minConfidence {
			t.Errorf("suggested %q has score %v below %v", s.Title, score, minConfidence)
		}
	}
	if r.SuggestedSubjects == nil || r.ConfidenceScores == nil || r.ExtractedText == nil || r.AuthoritiesUsed == nil {
		t.Error("Expected non-nil collections")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestAnalyze_FrontCoverOnly(t *testing.T) {
	o := newOrchestrator(setup{})
	r := o.Analyze(context.Background(), Request{
		Pages: map[models.PageRole]*pages.Upload{
			models.FrontCover: upload("Moby Dick Herman Melville"),
			models.BackCover:  nil,
		},
		MinConfidence: 0.98,
	})

	assertWellFormed(t, r, 0.98)
	if got := keys(r.ExtractedText); !reflect.DeepEqual(got, []string{"front_cover"}) {
		t.Errorf("extracted_text keys = %v, want [front_cover]", got)
	}
}

func TestAnalyze_ExtractedTextKeysMatchSuppliedRoles(t *testing.T) {
	o := newOrchestrator(setup{})
	r := o.Analyze(context.Background(), Request{
		Pages: map[models.PageRole]*pages.Upload{
			models.FrontCover:    upload("Title"),
			models.CopyrightPage: upload(""),
			models.TOCPage:       upload("Chapter 1"),
		},
		MinConfidence: 0.9,
	})
	want := []string{"copyright_page", "front_cover", "toc_page"}
	if got := keys(r.ExtractedText); !reflect.DeepEqual(got, want) {
		t.Errorf("extracted_text keys = %v, want %v", got, want)
	}
}

func TestAnalyze_GreatGatsby(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.SubjectHeading{
		"The Great Gatsby F. Scott Fitzgerald": {
			heading("sh85087406", "Millionaires"),
			heading("sh85078396", "Long Island (N.Y.)"),
			heading("sh85048050", "Fiction"),
		},
	}}
	o := newOrchestrator(setup{searcher: searcher})

	r := o.Analyze(context.Background(), Request{
		Pages:         map[models.PageRole]*pages.Upload{models.FrontCover: upload("The Great Gatsby F. Scott Fitzgerald")},
		MinConfidence: 0.98,
	})

	assertWellFormed(t, r, 0.98)
	if r.LanguageInfo.IsUnknown() {
		t.Error("Expected a named language")
	}
	if len(r.ConfidenceScores) != 3 {
		t.Errorf("scores = %v, want 3 scored candidates", r.ConfidenceScores)
	}
	// thin single-page text cannot clear a 0.98 bar
	if len(r.SuggestedSubjects) != 0 {
		t.Errorf("suggested = %v, want none", r.SuggestedSubjects)
	}
	if !reflect.DeepEqual(r.AuthoritiesUsed, config.DefaultAuthorities) {
		t.Errorf("AuthoritiesUsed = %v", r.AuthoritiesUsed)
	}
}

func TestAnalyze_AllPagesEmpty(t *testing.T) {
	o := newOrchestrator(setup{})
	r := o.Analyze(context.Background(), Request{
		Pages: map[models.PageRole]*pages.Upload{
			models.FrontCover:    upload(""),
			models.BackCover:     upload("  "),
			models.CopyrightPage: upload(""),
			models.TOCPage:       upload("\n"),
		},
		MinConfidence: 0.98,
	})

	assertWellFormed(t, r, 0.98)
	if r.LanguageInfo != models.UnknownLanguage() {
		t.Errorf("LanguageInfo = %+v, want unknown", r.LanguageInfo)
	}
	if len(r.SuggestedSubjects) != 0 || r.OverallConfidence != 0 {
		t.Errorf("suggested = %v overall = %v", r.SuggestedSubjects, r.OverallConfidence)
	}
	md := r.Metadata
	if md.ISBN != nil || md.Year != nil || md.Publisher != nil || md.LCCN != nil || md.Language != nil || len(md.Subjects) != 0 || len(md.Chapters) != 0 {
		t.Errorf("Metadata = %+v, want all-default", md)
	}
	if len(r.AuthoritiesUsed) != 0 {
		t.Errorf("AuthoritiesUsed = %v, want empty when nothing was retrieved", r.AuthoritiesUsed)
	}
}

func TestAnalyze_RetrievalFailure(t *testing.T) {
	netErr := &loc.ServiceError{Op: "search", URL: "https://www.loc.gov/search", Err: errors.New("dial tcp: connection refused")}
	req := Request{
		Pages:         map[models.PageRole]*pages.Upload{models.FrontCover: upload("The Great Gatsby F. Scott Fitzgerald")},
		MinConfidence: 0.98,
	}

	t.Run("empty result by default", func(t *testing.T) {
		o := newOrchestrator(setup{searcher: &fakeSearcher{err: netErr}})

		r := o.Analyze(context.Background(), req)
		assertWellFormed(t, r, 0.98)
		if !reflect.DeepEqual(r, models.EmptyAnalysisResult()) {
			t.Errorf("result = %+v, want the empty result", r)
		}

		_, err := o.Run(context.Background(), req)
		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != StageSubjectsRetrieved {
			t.Errorf("err = %v, want StageError at subjects_retrieved", err)
		}
		var se *loc.ServiceError
		if !errors.As(err, &se) {
			t.Error("Expected the ServiceError to be preserved")
		}
	})

	t.Run("degrade subjects only", func(t *testing.T) {
		o := newOrchestrator(setup{searcher: &fakeSearcher{err: netErr}, policy: config.RetrievalFailureDegradeSubjects})

		r := o.Analyze(context.Background(), req)
		assertWellFormed(t, r, 0.98)
		if r.ExtractedText["front_cover"] == "" {
			t.Error("Expected extracted text to be kept")
		}
		if r.LanguageInfo.IsUnknown() {
			t.Error("Expected language to be kept")
		}
		if len(r.SuggestedSubjects) != 0 || len(r.ConfidenceScores) != 0 || r.OverallConfidence != 0 {
			t.Errorf("Expected no subjects, got %v", r.SuggestedSubjects)
		}
	})
}

func TestAnalyze_SubsetAndMonotonicFilter(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.SubjectHeading{
		"Title": {
			heading("a", "A"), heading("b", "B"), heading("c", "C"), heading("d", "D"), heading("e", "E"),
		},
	}}
	scorer := fixedScorer{"A": 0.99, "B": 0.97, "C": 0.95, "D": 0.91, "E": 1.0}
	o := newOrchestrator(setup{searcher: searcher, scorer: scorer, classifier: fixedClassifier{}})

	all := []string{"A", "B", "C", "D", "E"}
	prev := math.MaxInt
	for _, minConf := range []float64{0.90, 0.92, 0.95, 0.96, 0.98, 0.99, 1.0} {
		r := o.Analyze(context.Background(), Request{
			Pages:         map[models.PageRole]*pages.Upload{models.FrontCover: upload("Title")},
			MinConfidence: minConf,
		})
		assertWellFormed(t, r, minConf)

		for _, s := range r.SuggestedSubjects {
			if !slices.Contains(all, s.Title) {
				t.Errorf("suggested %q not among candidates", s.Title)
			}
			if s.Confidence != scorer[s.Title] {
				t.Errorf("Confidence = %v, want %v", s.Confidence, scorer[s.Title])
			}
		}
		if !reflect.DeepEqual(r.Metadata.Subjects, titles(r.SuggestedSubjects)) {
			t.Errorf("metadata.subjects = %v, want suggested titles", r.Metadata.Subjects)
		}
		if len(r.SuggestedSubjects) > prev {
			t.Errorf("raising min_confidence to %v increased suggestions to %d", minConf, len(r.SuggestedSubjects))
		}
		prev = len(r.SuggestedSubjects)
	}
}

func titles(s []models.SubjectHeading) []string {
	out := []string{}
	for _, h := range s {
		out = append(out, h.Title)
	}
	return out
}

func TestAnalyze_DedupAcrossQueries(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.SubjectHeading{
		"Gatsby": {heading("sh1", "Millionaires")},
		"Daisy":  {heading("sh1", "Millionaires"), heading("sh2", "Fiction")},
	}}
	scorer := fixedScorer{"Millionaires": 1.0, "Fiction": 1.0}
	o := newOrchestrator(setup{searcher: searcher, scorer: scorer, classifier: fixedClassifier{}})

	r := o.Analyze(context.Background(), Request{
		Pages:         map[models.PageRole]*pages.Upload{models.FrontCover: upload("Gatsby Daisy")},
		MinConfidence: 0.9,
	})

	count := 0
	for _, s := range r.SuggestedSubjects {
		if s.ID == "sh1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("sh1 appears %d times, want 1", count)
	}
	if len(r.ConfidenceScores) != 2 {
		t.Errorf("scores = %v, want 2", r.ConfidenceScores)
	}
}

func TestAnalyze_Panic(t *testing.T) {
	o := newOrchestrator(setup{classifier: panicClassifier{}})
	r := o.Analyze(context.Background(), Request{
		Pages:         map[models.PageRole]*pages.Upload{models.FrontCover: upload("Title")},
		MinConfidence: 0.98,
	})
	if !reflect.DeepEqual(r, models.EmptyAnalysisResult()) {
		t.Errorf("result = %+v, want the empty result", r)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := newOrchestrator(setup{}).Analyze(ctx, Request{
			Pages:         map[models.PageRole]*pages.Upload{models.FrontCover: upload("Title")},
			MinConfidence: 0.98,
		})
		if !reflect.DeepEqual(r, models.EmptyAnalysisResult()) {
			t.Errorf("result = %+v, want the empty result", r)
		}
	})

	t.Run("during extraction", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		done := make(chan *models.BookAnalysisResult, 1)
		go func() {
			done <- newOrchestrator(setup{pages: textPages{block: true}}).Analyze(ctx, Request{
				Pages: map[models.PageRole]*pages.Upload{
					models.FrontCover: upload("Title"),
					models.BackCover:  upload("Blurb"),
				},
				MinConfidence: 0.98,
			})
		}()

		select {
		case r := <-done:
			if !reflect.DeepEqual(r, models.EmptyAnalysisResult()) {
				t.Errorf("result = %+v, want the empty result", r)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Analyze did not return after cancellation")
		}
	})
}

func TestAnalyzeExtractions(t *testing.T) {
	o := newOrchestrator(setup{})
	r := o.AnalyzeExtractions(context.Background(), []models.PageExtraction{
		{Role: models.CopyrightPage, RawText: "Copyright © 1925 ISBN 0-7432-7356-7"},
	}, 0.98)
	if r.Metadata.ISBN == nil || *r.Metadata.ISBN != "9780743273565" {
		t.Errorf("ISBN = %v", r.Metadata.ISBN)
	}
}

func TestValidateMinConfidence(t *testing.T) {
	tests := []struct {
		v       float64
		wantErr bool
	}{
		{0.90, false},
		{0.98, false},
		{1.0, false},
		{0.89, true},
		{1.01, true},
		{math.NaN(), true},
	}
	for _, tt := range tests {
		if err := ValidateMinConfidence(tt.v); (err != nil) != tt.wantErr {
			t.Errorf("ValidateMinConfidence(%v) error = %v, wantErr %v", tt.v, err, tt.wantErr)
		}
	}
}

func TestStageString(t *testing.T) {
	if StageSubjectsRetrieved.String() != "subjects_retrieved" {
		t.Errorf("String() = %q", StageSubjectsRetrieved.String())
	}
	if Stage(42).String() != "stage(42)" {
		t.Errorf("String() = %q", Stage(42).String())
	}
}
