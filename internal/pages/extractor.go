package pages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/ocr"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Upload is one page image (or single-page PDF) supplied by a caller
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Extractor turns uploads into raw page text through an OCR engine.
// It never returns an error: failures yield empty text and a degrade reason.
type Extractor struct {
	engine    ocr.Engine
	languages []string
}

func NewExtractor(engine ocr.Engine, languages []string) *Extractor {
	return &Extractor{engine: engine, languages: languages}
}

var errNoPDFImage = errors.New("no image on first PDF page")

// Extract returns the raw text for one page role
func (e *Extractor) Extract(ctx context.Context, role models.PageRole, upload *Upload) (result models.PageExtraction) {
	start := time.Now()
	result.Role = role
	if upload == nil {
		result.Diagnostics.Degraded = "no upload"
		return result
	}

	result.Diagnostics.Bytes = len(upload.Data)
	result.Diagnostics.Engine = e.engine.Name()
	defer func() {
		result.Diagnostics.Duration = time.Since(start)
	}()

	img, mimeType, err := e.prepare(upload, &result.Diagnostics)
	if err != nil {
		slog.Warn("Unreadable page payload", "role", role, "filename", upload.Filename, "err", err)
		result.Diagnostics.Degraded = err.Error()
		return result
	}

	text, err := e.engine.Extract(ctx, img, mimeType, e.languages)
	if err != nil {
		slog.Warn("OCR failed", "role", role, "engine", e.engine.Name(), "err", err)
		result.Diagnostics.Degraded = err.Error()
		return result
	}

	result.RawText = text
	if !result.HasText() {
		result.Diagnostics.Degraded = "no text recognised"
	}
	return result
}

// prepare validates the payload and returns image bytes ready for OCR
func (e *Extractor) prepare(upload *Upload, diag *models.ExtractionDiagnostics) ([]byte, string, error) {
	if len(upload.Data) == 0 {
		return nil, "", fmt.Errorf("empty payload")
	}

	data := upload.Data
	if isPDF(data) {
		diag.Format = "pdf"
		img, count, err := firstPDFImage(data)
		diag.PageCount = count
		if err != nil {
			return nil, "", err
		}
		data = img
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("not a decodable image: %w", err)
	}
	if diag.Format == "" {
		diag.Format = format
	}
	diag.Width = cfg.Width
	diag.Height = cfg.Height

	return data, mimeTypeFor(format, data), nil
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// firstPDFImage returns the first raster image embedded on page 1
func firstPDFImage(data []byte) ([]byte, int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	if count == 0 {
		return nil, 0, errNoPDFImage
	}

	pageImages, err := api.ExtractImagesRaw(bytes.NewReader(data), []string{"1"}, conf)
	if err != nil {
		return nil, count, fmt.Errorf("failed to extract PDF images: %w", err)
	}
	for _, imgs := range pageImages {
		for _, objNr := range slices.Sorted(maps.Keys(imgs)) {
			img := imgs[objNr]
			if img.Reader == nil {
				continue
			}
			b, err := io.ReadAll(img)
			if err != nil || len(b) == 0 {
				continue
			}
			return b, count, nil
		}
	}
	return nil, count, errNoPDFImage
}

func mimeTypeFor(format string, data []byte) string {
	switch format {
	case "jpeg", "png", "gif", "bmp", "tiff", "webp":
		return "image/" + format
	default:
		return http.DetectContentType(data)
	}
}
