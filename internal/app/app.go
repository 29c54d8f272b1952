package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/analysis"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/language"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/metadata"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/ocr"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/pages"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/scoring"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/storage"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/subjects"
	"github.com/redis/go-redis/v9"
)

// App holds the long-lived collaborators built from one configuration
type App struct {
	Cache *storage.SearchCache
	Redis *redis.Client
	LOC   *loc.Client
	OCR   *ocr.Service
}

// New connects the authority client, its cache and the OCR engine.
// The Redis tier is only used when redis.url is set.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	if cfg.Redis.URL != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		slog.Info("Using Redis search cache", "ttl", cfg.Redis.TTL)
	}

	cache, err := storage.NewSearchCache(cfg.Cache.Size, a.Redis, cfg.Redis.TTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = cache
	a.LOC = loc.NewClient(cfg.LOC, cache)

	engine, err := ocr.NewServiceFromConfig(cfg.OCR)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to configure OCR: %w", err)
	}
	a.OCR = engine

	slog.Debug("Components configured",
		"ocr_provider", engine.Name(),
		"ocr_model", engine.Model(),
		"loc", cfg.LOC.BaseURL,
		"cache_size", cfg.Cache.Size)

	return a, nil
}

// Retriever builds a subject retriever over the authority client
func (a *App) Retriever(cfg *config.Config) *subjects.Retriever {
	return subjects.NewRetriever(a.LOC, cfg.Analysis.TokenLimit)
}

// Orchestrator builds the analysis pipeline for cfg. It is cheap enough to
// call again whenever the configuration changes.
func (a *App) Orchestrator(cfg *config.Config) *analysis.Orchestrator {
	return analysis.New(
		pages.NewExtractor(a.OCR, cfg.OCR.Languages),
		language.NewClassifier(cfg.Language, cfg.OCR.Languages...),
		metadata.NewExtractor(),
		a.Retriever(cfg),
		scoring.NewAggregator(cfg.Scoring),
		analysis.OptionsFromConfig(cfg.Analysis),
	)
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("Failed to close Redis client", "err", err)
		}
	}
}
