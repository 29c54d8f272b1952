package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/analysis"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/storage"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/subjects"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	requests []analysis.Request
	result   *models.BookAnalysisResult
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req analysis.Request) *models.BookAnalysisResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.result != nil {
		return f.result
	}
	return models.EmptyAnalysisResult()
}

type fakeAuthority struct {
	search  []models.SubjectHeading
	details map[string]*models.SubjectHeading
	marc    map[string]map[string][]loc.DataField
	err     error

	gotTypes []string
}

func (f *fakeAuthority) SearchAuthority(ctx context.Context, authority, query string, limit int) ([]models.SubjectHeading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.search) > limit {
		return f.search[:limit], nil
	}
	return f.search, nil
}

func (f *fakeAuthority) GetDetails(ctx context.Context, id string) (*models.SubjectHeading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.details[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("subject %s: %w", id, loc.ErrNotFound)
}

func (f *fakeAuthority) SearchAuthorities(ctx context.Context, query string, types []string) (map[string][]models.SubjectHeading, error) {
	f.gotTypes = types
	if f.err != nil {
		return nil, f.err
	}
	return map[string][]models.SubjectHeading{"LCSH": f.search}, nil
}

func (f *fakeAuthority) MARCFields(ctx context.Context, lccn string) (map[string][]loc.DataField, error) {
	if f.err != nil {
		return nil, f.err
	}
	fields, ok := f.marc[lccn]
	if !ok {
		return nil, fmt.Errorf("lccn %s: %w", lccn, loc.ErrNotFound)
	}
	return fields, nil
}

type fakeSuggester struct {
	suggestions []models.SubjectHeading
	gotSubjects []string
	gotCheckAll bool
	err         error
}

func (f *fakeSuggester) Suggest(ctx context.Context, text string, limit int) ([]models.SubjectHeading, error) {
	return f.suggestions, f.err
}

func (f *fakeSuggester) Validate(ctx context.Context, in []string, checkAll bool) ([]subjects.ValidationResult, error) {
	f.gotSubjects = in
	f.gotCheckAll = checkAll
	if f.err != nil {
		return nil, f.err
	}
	out := make([]subjects.ValidationResult, 0, len(in))
	for _, s := range in {
		out = append(out, subjects.ValidationResult{Subject: s, Valid: s == "Fiction", Suggestions: []string{}})
	}
	return out, nil
}

type testServer struct {
	router    http.Handler
	analyzer  *fakeAnalyzer
	authority *fakeAuthority
	suggester *fakeSuggester
	history   *storage.AnalysisStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		analyzer: &fakeAnalyzer{},
		authority: &fakeAuthority{
			search: []models.SubjectHeading{
				{ID: "sh85048050", Title: "Fiction", Type: []string{"Topic"}},
				{ID: "n79021164", Title: "Fitzgerald, F. Scott", Type: []string{"PersonalName"}},
			},
			details: map[string]*models.SubjectHeading{
				"sh85048050": {ID: "sh85048050", Title: "Fiction"},
			},
			marc: map[string]map[string][]loc.DataField{
				"2003012345": {"650": {{Tag: "650", Heading: "Rich people -- Fiction"}}, "651": {}, "655": {}},
				"2003099999": {"650": {}, "651": {}, "655": {}},
			},
		},
		suggester: &fakeSuggester{
			suggestions: []models.SubjectHeading{{ID: "sh1", Title: "Gatsby"}},
		},
		history: storage.NewAnalysisStore(10),
	}
	h := New(ts.analyzer, ts.authority, ts.suggester, ts.history, Options{Version: "test", MaxUploadBytes: 1024})
	ts.router = h.Router()
	return ts
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) upload(t *testing.T, target string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rr.Body.String(), err)
	}
}

func TestServiceInfoAndHealthcheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/healthcheck")
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("healthcheck = %d %q", rr.Code, rr.Body.String())
	}

	rr = ts.get(t, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rr.Code)
	}
	var info struct {
		Version     string          `json:"version"`
		Authorities []AuthorityInfo `json:"authorities"`
	}
	decode(t, rr, &info)
	if info.Version != "test" {
		t.Errorf("version = %q", info.Version)
	}
	if len(info.Authorities) != len(loc.Authorities) {
		t.Errorf("authorities = %d, want %d", len(info.Authorities), len(loc.Authorities))
	}
}

func TestAnalyzeBook(t *testing.T) {
	ts := newTestServer(t)
	ts.analyzer.result = &models.BookAnalysisResult{
		Metadata:          models.NewBookMetadata(),
		SuggestedSubjects: []models.SubjectHeading{{ID: "sh1", Title: "Fiction", Confidence: 0.99}},
		ConfidenceScores:  map[string]float64{"Fiction": 0.99},
		ExtractedText:     map[string]string{"front_cover": "The Great Gatsby"},
		AuthoritiesUsed:   []string{"LCSH"},
		LanguageInfo:      models.LanguageInfo{Language: "English", Confidence: 0.9, Script: "roman"},
		OverallConfidence: 0.99,
	}

	rr := ts.upload(t, "/api/analyze-book/?min_confidence=0.95", map[string][]byte{
		"front_cover":    []byte("front"),
		"copyright_page": []byte("copyright"),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	id := rr.Header().Get("X-Analysis-ID")
	if id == "" {
		t.Fatal("missing X-Analysis-ID header")
	}
	if _, ok := ts.history.Get(id); !ok {
		t.Errorf("analysis %s was not stored", id)
	}

	var result models.BookAnalysisResult
	decode(t, rr, &result)
	if len(result.SuggestedSubjects) != 1 || result.LanguageInfo.Language != "English" {
		t.Errorf("unexpected result %+v", result)
	}

	if len(ts.analyzer.requests) != 1 {
		t.Fatalf("analyzer called %d times, want 1", len(ts.analyzer.requests))
	}
	req := ts.analyzer.requests[0]
	if req.MinConfidence != 0.95 {
		t.Errorf("MinConfidence = %v, want 0.95", req.MinConfidence)
	}
	if len(req.Pages) != 2 {
		t.Errorf("pages = %d, want 2", len(req.Pages))
	}
	if got := string(req.Pages[models.CopyrightPage].Data); got != "copyright" {
		t.Errorf("copyright page data = %q", got)
	}
	if _, ok := req.Pages[models.BackCover]; ok {
		t.Error("absent back_cover must not be passed to the analyzer")
	}
}

func TestAnalyzeBook_DefaultMinConfidence(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.upload(t, "/api/analyze-book/", map[string][]byte{"front_cover": []byte("front")})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := ts.analyzer.requests[0].MinConfidence; got != analysis.DefaultMinConfidence {
		t.Errorf("MinConfidence = %v, want %v", got, analysis.DefaultMinConfidence)
	}

	var result models.BookAnalysisResult
	decode(t, rr, &result)
	if result.SuggestedSubjects == nil || result.ExtractedText == nil {
		t.Error("empty result must serialize with empty collections")
	}
}

func TestAnalyzeBook_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		target string
		files  map[string][]byte
	}{
		{"missing front cover", "/api/analyze-book/", map[string][]byte{"back_cover": []byte("back")}},
		{"min confidence too low", "/api/analyze-book/?min_confidence=0.5", map[string][]byte{"front_cover": []byte("front")}},
		{"min confidence too high", "/api/analyze-book/?min_confidence=1.5", map[string][]byte{"front_cover": []byte("front")}},
		{"upload too large", "/api/analyze-book/", map[string][]byte{"front_cover": bytes.Repeat([]byte("x"), 4096)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.upload(t, tt.target, tt.files)
			if rr.Code < 400 || rr.Code > 499 {
				t.Errorf("status = %d, want 4xx; body = %s", rr.Code, rr.Body.String())
			}
			if len(ts.analyzer.requests) != 0 {
				t.Error("pipeline must not run on invalid input")
			}
		})
	}
}

func TestAnalyzeCover(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.upload(t, "/api/analyze-cover/?confidence_threshold=0.2", map[string][]byte{"file": []byte("cover")})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	req := ts.analyzer.requests[0]
	if req.MinConfidence != 0.2 {
		t.Errorf("MinConfidence = %v, want 0.2", req.MinConfidence)
	}
	if req.Pages[models.FrontCover] == nil {
		t.Error("file should be analyzed as the front cover")
	}

	rr = ts.upload(t, "/api/analyze-cover/", map[string][]byte{"other": []byte("x")})
	if rr.Code < 400 || rr.Code > 499 {
		t.Errorf("missing file status = %d, want 4xx", rr.Code)
	}
}

func TestAnalyzeBook_EmptyPagesStillAnalyzed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.upload(t, "/api/analyze-book/", map[string][]byte{
		"front_cover":    {},
		"back_cover":     {},
		"copyright_page": {},
		"toc_page":       {},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(ts.analyzer.requests) != 1 {
		t.Fatalf("analyzer requests = %d, want 1", len(ts.analyzer.requests))
	}
	got := ts.analyzer.requests[0].Pages
	if len(got) != 4 {
		t.Fatalf("pages = %d, want 4", len(got))
	}
	for role, upload := range got {
		if upload == nil || len(upload.Data) != 0 {
			t.Errorf("%s upload = %+v, want present and empty", role, upload)
		}
	}
}

func TestReconfigure(t *testing.T) {
	ts := newTestServer(t)
	h := New(ts.analyzer, ts.authority, ts.suggester, ts.history, Options{})
	ts.router = h.Router()

	analyzer := &fakeAnalyzer{}
	suggester := &fakeSuggester{suggestions: []models.SubjectHeading{{ID: "sh85052028", Title: "Fiction"}}}
	h.Reconfigure(analyzer, suggester)

	rr := ts.upload(t, "/api/analyze-book/", map[string][]byte{"front_cover": []byte("front")})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(analyzer.requests) != 1 || len(ts.analyzer.requests) != 0 {
		t.Error("requests should go to the replacement analyzer")
	}

	rr = ts.get(t, "/api/subjects/suggest/?text=novels")
	if rr.Code != http.StatusOK {
		t.Fatalf("suggest status = %d", rr.Code)
	}
	var out struct {
		Results []models.SubjectHeading `json:"results"`
	}
	decode(t, rr, &out)
	if len(out.Results) != 1 || out.Results[0].ID != "sh85052028" {
		t.Errorf("suggestions = %+v, want the replacement suggester's", out.Results)
	}

	rr = ts.get(t, "/api/subjects/validate/?subjects=Fiction")
	if rr.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rr.Code)
	}
	if len(suggester.gotSubjects) != 1 || len(ts.suggester.gotSubjects) != 0 {
		t.Error("validation should go to the replacement suggester")
	}
}

func TestSearchSubjects(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/api/subjects/search/?q=gatsby")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Total   int                     `json:"total"`
		Results []models.SubjectHeading `json:"results"`
	}
	decode(t, rr, &out)
	if out.Total != 2 {
		t.Errorf("total = %d, want 2", out.Total)
	}

	rr = ts.get(t, "/api/subjects/search/?q=gatsby&authority_type=topic")
	decode(t, rr, &out)
	if out.Total != 1 || out.Results[0].ID != "sh85048050" {
		t.Errorf("filtered results = %+v", out.Results)
	}
}

func TestSearchSubjects_Validation(t *testing.T) {
	ts := newTestServer(t)
	for _, target := range []string{
		"/api/subjects/search/",
		"/api/subjects/search/?q=a",
		"/api/subjects/search/?q=gatsby&limit=0",
		"/api/subjects/search/?q=gatsby&limit=101",
		"/api/subjects/suggest/?text=a",
	} {
		rr := ts.get(t, target)
		if rr.Code < 400 || rr.Code > 499 {
			t.Errorf("%s status = %d, want 4xx", target, rr.Code)
		}
	}
}

func TestSearchSubjects_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.authority.err = &loc.ServiceError{Op: "search", URL: "http://loc", StatusCode: http.StatusServiceUnavailable}

	rr := ts.get(t, "/api/subjects/search/?q=gatsby")
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "failed to search subjects") {
		t.Errorf("body = %s, want failure message", rr.Body.String())
	}
}

func TestGetSubject(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/api/subjects/sh85048050")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var subject models.SubjectHeading
	decode(t, rr, &subject)
	if subject.Title != "Fiction" {
		t.Errorf("title = %q", subject.Title)
	}

	rr = ts.get(t, "/api/subjects/sh00000000")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing subject status = %d, want 404", rr.Code)
	}
}

func TestSuggestSubjects(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/api/subjects/suggest/?text=great+gatsby")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		Results []models.SubjectHeading `json:"results"`
	}
	decode(t, rr, &out)
	if len(out.Results) != 1 || out.Results[0].Title != "Gatsby" {
		t.Errorf("results = %+v", out.Results)
	}
}

func TestValidateSubjects(t *testing.T) {
	ts := newTestServer(t)

	q := url.Values{}
	q.Add("subjects", "Fiction")
	q.Add("subjects", "Gatsby, Jay (Fictitious character)")
	q.Set("check_all_authorities", "true")

	rr := ts.get(t, "/api/subjects/validate/?"+q.Encode())
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Valid int `json:"valid"`
		Total int `json:"total"`
	}
	decode(t, rr, &out)
	if out.Total != 2 || out.Valid != 1 {
		t.Errorf("valid/total = %d/%d, want 1/2", out.Valid, out.Total)
	}
	if !ts.suggester.gotCheckAll {
		t.Error("check_all_authorities was not passed through")
	}
	if len(ts.suggester.gotSubjects) != 2 || ts.suggester.gotSubjects[1] != "Gatsby, Jay (Fictitious character)" {
		t.Errorf("subjects = %q", ts.suggester.gotSubjects)
	}
}

func TestSearchAuthorities(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/api/authorities/search/?q=gatsby&types=LCSH,LCNAF")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(ts.authority.gotTypes) != 2 {
		t.Errorf("types = %q, want 2", ts.authority.gotTypes)
	}

	rr = ts.get(t, "/api/authorities/search/?q=gatsby&types=BOGUS")
	if rr.Code < 400 || rr.Code > 499 {
		t.Errorf("unknown type status = %d, want 4xx", rr.Code)
	}
}

func TestMARCFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/api/marc-fields/2003012345")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out struct {
		LCCN   string                     `json:"lccn"`
		Fields map[string][]loc.DataField `json:"fields"`
	}
	decode(t, rr, &out)
	if len(out.Fields["650"]) != 1 {
		t.Errorf("650 fields = %+v", out.Fields["650"])
	}

	for _, lccn := range []string{"2003099999", "2001000001"} {
		rr = ts.get(t, "/api/marc-fields/"+lccn)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", lccn, rr.Code)
		}
	}
}

func TestAnalysesHistory(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.upload(t, "/api/analyze-book/", map[string][]byte{"front_cover": []byte("front")})
	}

	rr := ts.get(t, "/api/analyses?limit=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		Total    int               `json:"total"`
		Analyses []AnalysisSummary `json:"analyses"`
	}
	decode(t, rr, &out)
	if out.Total != 3 || len(out.Analyses) != 2 {
		t.Fatalf("total/len = %d/%d, want 3/2", out.Total, len(out.Analyses))
	}

	rr = ts.get(t, "/api/analyses/"+out.Analyses[0].ID)
	if rr.Code != http.StatusOK {
		t.Errorf("get analysis status = %d", rr.Code)
	}
	rr = ts.get(t, "/api/analyses/missing")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing analysis status = %d, want 404", rr.Code)
	}
}
