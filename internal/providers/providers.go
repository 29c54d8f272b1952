package providers

import (
	"context"
)

// Config represents a single OCR request to a provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte
	MimeType    string
	// Languages are Tesseract-style language codes (eng, chi_sim, ...)
	Languages []string
}

// Provider defines the interface for an OCR-capable provider
type Provider interface {
	Name() string
	ExtractText(ctx context.Context, config Config) (string, error)
}
