package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "BOOKANALYZER"

// Retrieval failure policies for the analysis pipeline
const (
	RetrievalFailureEmptyResult     = "empty_result"
	RetrievalFailureDegradeSubjects = "degrade_subjects"
)

// Config is the complete service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	LOC      LOCConfig      `mapstructure:"loc"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Language LanguageConfig `mapstructure:"language"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Port           string `mapstructure:"port"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	HistorySize    int    `mapstructure:"history_size"`
}

// OCRConfig selects the OCR provider. API keys are read from the
// provider's own environment variables (OPENAI_API_KEY, GEMINI_API_KEY).
type OCRConfig struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Languages     []string      `mapstructure:"languages"`
	OllamaURL     string        `mapstructure:"ollama_url"`
	TesseractPath string        `mapstructure:"tesseract_path"`
}

type LOCConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	LCCNBaseURL string        `mapstructure:"lccn_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// RedisConfig enables the shared search-cache tier when URL is set
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type LanguageConfig struct {
	FullConfidenceRunes  int               `mapstructure:"full_confidence_runes"`
	ShortTextRunes       int               `mapstructure:"short_text_runes"`
	ShortTextCap         float64           `mapstructure:"short_text_cap"`
	MixedScriptThreshold float64           `mapstructure:"mixed_script_threshold"`
	MixedScriptCap       float64           `mapstructure:"mixed_script_cap"`
	Names                map[string]string `mapstructure:"names"`
}

type ScoringConfig struct {
	RankDecay      float64 `mapstructure:"rank_decay"`
	LanguageWeight float64 `mapstructure:"language_weight"`
	CoverageFloor  float64 `mapstructure:"coverage_floor"`
}

type AnalysisConfig struct {
	CandidateLimit   int      `mapstructure:"candidate_limit"`
	TokenLimit       int      `mapstructure:"token_limit"`
	RetrievalFailure string   `mapstructure:"retrieval_failure"`
	Authorities      []string `mapstructure:"authorities"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
// An empty cfgFile searches ./config.yaml and $HOME/.bookanalyzer/config.yaml.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v)

	// BOOKANALYZER_SCORING_RANK_DECAY overrides scoring.rank_decay
	cm.v.SetEnvPrefix(envPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.bookanalyzer")
	}

	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the config was read from, if any
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the config file.
// Invalid edits are logged and the previous config stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			slog.Error("Ignoring invalid config change", "file", e.Name, "err", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		slog.Info("Config reloaded", "file", e.Name, "op", e.Op.String())
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// Validate checks value ranges that the pipeline relies on
func (c *Config) Validate() error {
	if err := checkUnit("scoring.language_weight", c.Scoring.LanguageWeight); err != nil {
		return err
	}
	if err := checkUnit("scoring.coverage_floor", c.Scoring.CoverageFloor); err != nil {
		return err
	}
	if c.Scoring.RankDecay < 0 {
		return fmt.Errorf("scoring.rank_decay must be >= 0, got %v", c.Scoring.RankDecay)
	}
	for name, v := range map[string]float64{
		"language.short_text_cap":         c.Language.ShortTextCap,
		"language.mixed_script_threshold": c.Language.MixedScriptThreshold,
		"language.mixed_script_cap":       c.Language.MixedScriptCap,
	} {
		if err := checkUnit(name, v); err != nil {
			return err
		}
	}
	if c.Language.FullConfidenceRunes <= 0 {
		return fmt.Errorf("language.full_confidence_runes must be positive")
	}
	switch c.Analysis.RetrievalFailure {
	case RetrievalFailureEmptyResult, RetrievalFailureDegradeSubjects:
	default:
		return fmt.Errorf("analysis.retrieval_failure must be %q or %q, got %q",
			RetrievalFailureEmptyResult, RetrievalFailureDegradeSubjects, c.Analysis.RetrievalFailure)
	}
	if c.Analysis.CandidateLimit <= 0 || c.Analysis.TokenLimit <= 0 {
		return fmt.Errorf("analysis.candidate_limit and analysis.token_limit must be positive")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive")
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", name, v)
	}
	return nil
}
