package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

func TestNew_Defaults(t *testing.T) {
	a, err := New(context.Background(), config.DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Redis != nil {
		t.Error("Redis should be disabled without redis.url")
	}
	if a.OCR.Name() != "ollama" {
		t.Errorf("OCR provider = %q, want ollama", a.OCR.Name())
	}
	if a.Orchestrator(config.DefaultConfig()) == nil {
		t.Error("Orchestrator() returned nil")
	}
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Redis == nil {
		t.Fatal("expected Redis client")
	}
	a.Cache.Set(context.Background(), "k", []models.SubjectHeading{{ID: "sh1"}})
	if !mr.Exists("bookanalyzer:k") {
		t.Error("cache entry was not written to Redis")
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OCR.Provider = "carrier-pigeon"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("Expected error for unknown OCR provider")
	}

	cfg = config.DefaultConfig()
	cfg.Redis.URL = "redis://127.0.0.1:1"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("Expected error for unreachable Redis")
	}
}

func TestOrchestrator_EndToEndText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"id": "http://id.loc.gov/authorities/subjects/sh85114072", "title": "Rich people", "original_format": ["LCSH"]}
		]}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.LOC.BaseURL = server.URL
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	result := a.Orchestrator(cfg).AnalyzeExtractions(context.Background(), []models.PageExtraction{
		{Role: models.FrontCover, RawText: "The Great Gatsby"},
		{Role: models.CopyrightPage, RawText: "Copyright 1925 by Charles Scribner's Sons. ISBN 0-7432-7356-7"},
	}, 0.9)

	if result.Metadata.ISBN == nil || *result.Metadata.ISBN != "9780743273565" {
		t.Errorf("ISBN = %v, want 9780743273565", result.Metadata.ISBN)
	}
	if _, ok := result.ExtractedText[string(models.FrontCover)]; !ok {
		t.Error("front_cover text missing from result")
	}
	if result.OverallConfidence < 0 || result.OverallConfidence > 1 {
		t.Errorf("OverallConfidence = %v out of range", result.OverallConfidence)
	}
}
