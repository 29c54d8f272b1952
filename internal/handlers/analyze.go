package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/analysis"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/pages"
)

type AnalyzeBookInput struct {
	MinConfidence float64 `query:"min_confidence" default:"0.98" minimum:"0.9" maximum:"1" doc:"Minimum confidence for a subject to be suggested"`
	RawBody       multipart.Form
}

type AnalyzeCoverInput struct {
	ConfidenceThreshold float64 `query:"confidence_threshold" default:"0.5" minimum:"0" maximum:"1" doc:"Minimum confidence for a subject to be suggested"`
	RawBody             multipart.Form
}

type AnalysisOutput struct {
	AnalysisID string `header:"X-Analysis-ID"`
	Body       *models.BookAnalysisResult
}

func (h *Handler) registerAnalysis(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:  "AnalyzeBook",
		Method:       http.MethodPost,
		Path:         "/api/analyze-book/",
		Summary:      "Analyze book pages",
		Description:  "Upload front_cover (required) and optionally back_cover, copyright_page and toc_page. Always returns a result; pages that cannot be read contribute no text.",
		Tags:         []string{"Analysis"},
		MaxBodyBytes: h.opts.MaxUploadBytes,
	}, func(ctx context.Context, input *AnalyzeBookInput) (*AnalysisOutput, error) {
		if err := analysis.ValidateMinConfidence(input.MinConfidence); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		uploads, err := h.readPages(&input.RawBody, map[string]models.PageRole{
			string(models.FrontCover):    models.FrontCover,
			string(models.BackCover):     models.BackCover,
			string(models.CopyrightPage): models.CopyrightPage,
			string(models.TOCPage):       models.TOCPage,
		})
		if err != nil {
			return nil, err
		}
		if uploads[models.FrontCover] == nil {
			return nil, huma.Error400BadRequest("front_cover is required")
		}

		return h.analyze(ctx, uploads, input.MinConfidence), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:  "AnalyzeCover",
		Method:       http.MethodPost,
		Path:         "/api/analyze-cover/",
		Summary:      "Analyze a single cover",
		Description:  "Quick analysis of one cover image uploaded as file.",
		Tags:         []string{"Analysis"},
		MaxBodyBytes: h.opts.MaxUploadBytes,
	}, func(ctx context.Context, input *AnalyzeCoverInput) (*AnalysisOutput, error) {
		uploads, err := h.readPages(&input.RawBody, map[string]models.PageRole{
			"file": models.FrontCover,
		})
		if err != nil {
			return nil, err
		}
		if uploads[models.FrontCover] == nil {
			return nil, huma.Error400BadRequest("file is required")
		}

		return h.analyze(ctx, uploads, input.ConfidenceThreshold), nil
	})
}

func (h *Handler) analyze(ctx context.Context, uploads map[models.PageRole]*pages.Upload, minConfidence float64) *AnalysisOutput {
	result := h.currentAnalyzer().Analyze(ctx, analysis.Request{
		Pages:         uploads,
		MinConfidence: minConfidence,
	})

	roles := make([]models.PageRole, 0, len(uploads))
	for _, role := range models.PageRoles {
		if _, ok := uploads[role]; ok {
			roles = append(roles, role)
		}
	}
	id := h.history.Save(&models.AnalysisRecord{
		MinConfidence: minConfidence,
		Roles:         roles,
		Result:        result,
	})

	slog.Info("Book analyzed",
		"id", id,
		"roles", roles,
		"subjects", len(result.SuggestedSubjects),
		"language", result.LanguageInfo.Language,
		"overall_confidence", result.OverallConfidence)

	return &AnalysisOutput{AnalysisID: id, Body: result}
}

// readPages loads the named form files. A field that is present but empty
// still yields an upload; the extractor degrades it to empty text.
func (h *Handler) readPages(form *multipart.Form, fields map[string]models.PageRole) (map[models.PageRole]*pages.Upload, error) {
	uploads := make(map[models.PageRole]*pages.Upload, len(fields))
	for field, role := range fields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		if fh.Size > h.opts.MaxUploadBytes {
			return nil, huma.Error413RequestEntityTooLarge(fmt.Sprintf("%s exceeds %d bytes", field, h.opts.MaxUploadBytes))
		}
		data, err := readFormFile(fh)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unable to read %s", field), err)
		}
		uploads[role] = &pages.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return uploads, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
