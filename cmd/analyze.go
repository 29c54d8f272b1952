package cmd

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/analysis"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/app"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/images"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/pages"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	paths := make(map[models.PageRole]*string, len(models.PageRoles))
	var minConfidence float64
	var coverISBN string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze book page photographs",
		Long: `Runs the full analysis pipeline on page images and prints the result:
raw text per page, metadata, language and script, and scored subject
headings.

Pages may be local files or http(s) URLs. A front cover is required; the
other pages are optional. With --isbn and no --front-cover, the cover is
downloaded from Open Library.`,
		Example: `  bookanalyzer analyze --front-cover cover.jpg
  bookanalyzer analyze --front-cover cover.jpg --copyright-page verso.png --toc-page contents.pdf -o json
  bookanalyzer analyze --isbn 9780306406157 --copyright-page https://example.org/scans/verso.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := analysis.ValidateMinConfidence(minConfidence); err != nil {
				return err
			}

			sources := make(map[models.PageRole]string, len(paths))
			for role, p := range paths {
				if *p != "" {
					sources[role] = *p
				}
			}

			fetcher := images.NewFetcher()
			uploads, err := loadPages(cmd.Context(), fetcher, sources)
			if err != nil {
				return err
			}
			if uploads[models.FrontCover] == nil && coverISBN != "" {
				cover, err := fetcher.OpenLibraryCover(cmd.Context(), coverISBN)
				if err != nil {
					return err
				}
				uploads[models.FrontCover] = cover
			}
			if uploads[models.FrontCover] == nil {
				return fmt.Errorf("a front cover is required (--front-cover or --isbn)")
			}

			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				result := a.Orchestrator(cfg).Analyze(cmd.Context(), analysis.Request{
					Pages:         uploads,
					MinConfidence: minConfidence,
				})
				return opts.print(cmd.OutOrStdout(), result)
			})
		},
	}

	for _, role := range models.PageRoles {
		paths[role] = new(string)
		cmd.Flags().StringVar(paths[role], flagName(role), "", fmt.Sprintf("Image, single-page PDF or URL of the %s", role))
	}
	cmd.Flags().StringVar(&coverISBN, "isbn", "", "Fetch the front cover from Open Library by ISBN")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", analysis.DefaultMinConfidence, "Minimum subject confidence (0.90-1.0)")

	return cmd
}

// flagName turns front_cover into front-cover
func flagName(role models.PageRole) string {
	name := []byte(role)
	for i, c := range name {
		if c == '_' {
			name[i] = '-'
		}
	}
	return string(name)
}

// loadPages reads or downloads each page source
func loadPages(ctx context.Context, fetcher *images.Fetcher, sources map[models.PageRole]string) (map[models.PageRole]*pages.Upload, error) {
	uploads := make(map[models.PageRole]*pages.Upload, len(sources))
	for role, source := range sources {
		var upload *pages.Upload
		var err error
		if images.IsURL(source) {
			upload, err = fetcher.Fetch(ctx, source)
		} else {
			upload, err = readFile(source)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", role, err)
		}
		uploads[role] = upload
	}
	return uploads, nil
}

// readFile takes the content type from the extension, falling back to
// sniffing the first bytes
func readFile(path string) (*pages.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &pages.Upload{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
