package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultLanguageNames maps ISO 639-3 codes to display names.
// Codes missing here fall back to the detector's own name.
var DefaultLanguageNames = map[string]string{
	"eng": "English",
	"spa": "Spanish",
	"fra": "French",
	"deu": "German",
	"rus": "Russian",
	"cmn": "Chinese",
	"jpn": "Japanese",
	"kor": "Korean",
	"arb": "Arabic",
	"ita": "Italian",
	"por": "Portuguese",
}

// DefaultAuthorities are the vocabularies an analysis draws from
var DefaultAuthorities = []string{"LCSH", "LCNAF", "LCGFT"}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8888",
			MaxUploadBytes: 10 * 1024 * 1024,
			HistorySize:    500,
		},
		OCR: OCRConfig{
			Provider:      "ollama",
			Timeout:       120 * time.Second,
			Languages:     []string{"eng", "spa", "fra", "deu", "rus", "ita", "por", "chi_sim", "chi_tra", "jpn", "kor", "ara"},
			OllamaURL:     "http://localhost:11434",
			TesseractPath: "tesseract",
		},
		LOC: LOCConfig{
			BaseURL:     "https://www.loc.gov",
			LCCNBaseURL: "https://lccn.loc.gov",
			Timeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Size: 1024,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Language: LanguageConfig{
			FullConfidenceRunes:  200,
			ShortTextRunes:       20,
			ShortTextCap:         0.3,
			MixedScriptThreshold: 0.8,
			MixedScriptCap:       0.5,
			Names:                DefaultLanguageNames,
		},
		Scoring: ScoringConfig{
			RankDecay:      0.05,
			LanguageWeight: 1.0,
			CoverageFloor:  0.5,
		},
		Analysis: AnalysisConfig{
			CandidateLimit:   20,
			TokenLimit:       5,
			RetrievalFailure: RetrievalFailureEmptyResult,
			Authorities:      DefaultAuthorities,
		},
	}
}

// setDefaults registers every leaf key so env overrides resolve
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.history_size", d.Server.HistorySize)

	v.SetDefault("ocr.provider", d.OCR.Provider)
	v.SetDefault("ocr.model", d.OCR.Model)
	v.SetDefault("ocr.timeout", d.OCR.Timeout)
	v.SetDefault("ocr.languages", d.OCR.Languages)
	v.SetDefault("ocr.ollama_url", d.OCR.OllamaURL)
	v.SetDefault("ocr.tesseract_path", d.OCR.TesseractPath)

	v.SetDefault("loc.base_url", d.LOC.BaseURL)
	v.SetDefault("loc.lccn_base_url", d.LOC.LCCNBaseURL)
	v.SetDefault("loc.timeout", d.LOC.Timeout)

	v.SetDefault("cache.size", d.Cache.Size)

	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("language.full_confidence_runes", d.Language.FullConfidenceRunes)
	v.SetDefault("language.short_text_runes", d.Language.ShortTextRunes)
	v.SetDefault("language.short_text_cap", d.Language.ShortTextCap)
	v.SetDefault("language.mixed_script_threshold", d.Language.MixedScriptThreshold)
	v.SetDefault("language.mixed_script_cap", d.Language.MixedScriptCap)
	v.SetDefault("language.names", d.Language.Names)

	v.SetDefault("scoring.rank_decay", d.Scoring.RankDecay)
	v.SetDefault("scoring.language_weight", d.Scoring.LanguageWeight)
	v.SetDefault("scoring.coverage_floor", d.Scoring.CoverageFloor)

	v.SetDefault("analysis.candidate_limit", d.Analysis.CandidateLimit)
	v.SetDefault("analysis.token_limit", d.Analysis.TokenLimit)
	v.SetDefault("analysis.retrieval_failure", d.Analysis.RetrievalFailure)
	v.SetDefault("analysis.authorities", d.Analysis.Authorities)
}
