package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/providers"
)

// Tesseract runs the tesseract CLI as an OCR provider.
// The prompt is ignored; Languages select the trained data.
type Tesseract struct {
	path string
}

// New returns a provider that execs the binary at path ("tesseract" if empty)
func New(path string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{path: path}
}

func (t *Tesseract) Name() string {
	return "tesseract"
}

// ExtractText pipes the image through `tesseract stdin stdout`
func (t *Tesseract) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	if len(config.Image) == 0 {
		return "", fmt.Errorf("no image supplied")
	}

	cmd := exec.CommandContext(ctx, t.path, args(config.Languages)...)
	cmd.Stdin = bytes.NewReader(config.Image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

func args(languages []string) []string {
	a := []string{"stdin", "stdout"}
	if len(languages) > 0 {
		a = append(a, "-l", strings.Join(languages, "+"))
	}
	return a
}
