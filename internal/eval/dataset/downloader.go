package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	HFDatasetRepo = "instdin/institutional-books-1.0"

	// HFBaseURL serves raw files as {base}/datasets/{repo}/resolve/main/{file}
	HFBaseURL = "https://huggingface.co"

	// DefaultShard is the first Parquet shard of the training split
	DefaultShard = "data/train-00000-of-09831.parquet"

	DefaultCacheDir = "~/.cache/huggingface/datasets"
)

type DownloadConfig struct {
	BaseURL       string
	CacheDir      string
	ForceDownload bool
	Token         string // HF_TOKEN; the dataset is gated
}

// Downloader fetches dataset shards from HuggingFace into a local cache
type Downloader struct {
	config DownloadConfig
	client *http.Client
}

func NewDownloader(config DownloadConfig) *Downloader {
	if config.BaseURL == "" {
		config.BaseURL = HFBaseURL
	}
	if config.CacheDir == "" {
		config.CacheDir = DefaultCacheDir
	}
	if strings.HasPrefix(config.CacheDir, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			config.CacheDir = filepath.Join(homeDir, config.CacheDir[1:])
		}
	}

	return &Downloader{
		config: config,
		client: &http.Client{},
	}
}

// CachePath is where filename is stored once downloaded
func (d *Downloader) CachePath(filename string) string {
	return filepath.Join(d.config.CacheDir, HFDatasetRepo, filepath.FromSlash(filename))
}

// Download returns the cached path of filename, fetching it first if needed
func (d *Downloader) Download(ctx context.Context, filename string) (string, error) {
	cachedPath := d.CachePath(filename)
	if err := os.MkdirAll(filepath.Dir(cachedPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	if !d.config.ForceDownload {
		if _, err := os.Stat(cachedPath); err == nil {
			slog.Info("Using cached dataset", "path", cachedPath)
			return cachedPath, nil
		}
	}

	url := fmt.Sprintf("%s/datasets/%s/resolve/main/%s", strings.TrimRight(d.config.BaseURL, "/"), HFDatasetRepo, filename)
	slog.Info("Downloading dataset from HuggingFace", "repo", HFDatasetRepo, "file", filename)

	if err := d.downloadFile(ctx, url, cachedPath); err != nil {
		return "", fmt.Errorf("failed to download dataset: %w", err)
	}

	slog.Info("Dataset downloaded", "path", cachedPath)
	return cachedPath, nil
}

// downloadFile writes to a temp file and renames it so an interrupted
// download never looks cached
func (d *Downloader) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if d.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("download failed: %w", err)
	}
	slog.Debug("Download finished", "bytes", written)

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}
