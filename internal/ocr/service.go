package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/gemini"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/ollama"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/openai"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/providers"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/tesseract"
)

// Engine turns a page image into raw text
type Engine interface {
	Name() string
	Extract(ctx context.Context, image []byte, mimeType string, languages []string) (string, error)
}

// Service handles OCR extraction from images through a provider
type Service struct {
	provider providers.Provider
	model    string
	timeout  time.Duration
}

// NewService creates a new OCR service. A zero timeout disables the per-page limit.
func NewService(provider providers.Provider, model string, timeout time.Duration) *Service {
	if model == "" {
		model = defaultModel(provider.Name())
	}
	return &Service{
		provider: provider,
		model:    model,
		timeout:  timeout,
	}
}

// NewServiceFromConfig selects the provider named in cfg
func NewServiceFromConfig(cfg config.OCRConfig) (*Service, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(provider, cfg.Model, cfg.Timeout), nil
}

// NewProvider returns the OCR provider with the given name
func NewProvider(cfg config.OCRConfig) (providers.Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return ollama.New(cfg.OllamaURL), nil
	case "openai":
		return openai.New(), nil
	case "gemini":
		return gemini.New(), nil
	case "tesseract":
		return tesseract.New(cfg.TesseractPath), nil
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", cfg.Provider)
	}
}

func (s *Service) Name() string {
	return s.provider.Name()
}

func (s *Service) Model() string {
	return s.model
}

// Extract runs OCR on one page image. The returned text is trimmed.
func (s *Service) Extract(ctx context.Context, image []byte, mimeType string, languages []string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.provider.ExtractText(ctx, providers.Config{
		Model:       s.model,
		Temperature: 0.0,
		Prompt:      buildOCRPrompt(languages),
		Image:       image,
		MimeType:    mimeType,
		Languages:   languages,
	})
	if err != nil {
		return "", fmt.Errorf("%s OCR failed: %w", s.provider.Name(), err)
	}

	text = strings.TrimSpace(text)
	slog.Debug("Extracted OCR text", "provider", s.provider.Name(), "model", s.model, "length", len(text), "duration", time.Since(start))
	return text, nil
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return envOr("OPENAI_MODEL", "gpt-4o")
	case "ollama":
		return envOr("OLLAMA_MODEL", "mistral-small3.2:24b")
	case "gemini":
		return envOr("GEMINI_MODEL", "gemini-2.0-flash")
	default:
		return ""
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildOCRPrompt(languages []string) string {
	var hint string
	if len(languages) > 0 {
		hint = "\nThe page may be written in any of these languages (ISO 639 codes): " + strings.Join(languages, ", ") +
			". Transcribe in the original script; do not translate.\n"
	}
	return `You are performing OCR (Optical Character Recognition) on a photographed book page.
The page is a front cover, back cover, copyright page or table of contents.

Your task is to extract ALL visible text from the image exactly as it appears, preserving:
- Line breaks and formatting
- Capitalization
- Punctuation
- Special characters
- Order of text elements
` + hint + `
INSTRUCTIONS:
1. Read the image carefully from top to bottom
2. Transcribe every piece of visible text
3. Preserve the original line breaks
4. Do not add any interpretation, commentary, or explanations
5. Do not skip any text, no matter how small or decorative
6. If text is partially obscured or unclear, transcribe what you can see and use [?] for illegible portions

OUTPUT FORMAT:
Provide ONLY the extracted text. Do not include phrases like "Here is the text:" or "The image contains:".
If the image contains no text, return nothing.`
}
