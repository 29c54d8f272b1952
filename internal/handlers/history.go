package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

type AnalysisSummary struct {
	ID                string            `json:"id"`
	CreatedAt         string            `json:"created_at"`
	Roles             []models.PageRole `json:"roles"`
	MinConfidence     float64           `json:"min_confidence"`
	Language          string            `json:"language"`
	Subjects          int               `json:"subjects"`
	OverallConfidence float64           `json:"overall_confidence"`
}

type ListAnalysesInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum number of analyses, newest first"`
}

type ListAnalysesOutput struct {
	Body struct {
		Total    int               `json:"total"`
		Analyses []AnalysisSummary `json:"analyses"`
	}
}

type AnalysisIDInput struct {
	ID string `path:"id" doc:"Analysis identifier returned in X-Analysis-ID"`
}

type AnalysisRecordOutput struct {
	Body *models.AnalysisRecord
}

func (h *Handler) registerHistory(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "ListAnalyses",
		Method:      http.MethodGet,
		Path:        "/api/analyses",
		Summary:     "List recent analyses",
		Tags:        []string{"Analysis"},
	}, func(ctx context.Context, input *ListAnalysesInput) (*ListAnalysesOutput, error) {
		records := h.history.List()

		resp := &ListAnalysesOutput{}
		resp.Body.Total = len(records)
		if len(records) > input.Limit {
			records = records[:input.Limit]
		}
		resp.Body.Analyses = make([]AnalysisSummary, 0, len(records))
		for _, rec := range records {
			resp.Body.Analyses = append(resp.Body.Analyses, summarize(rec))
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetAnalysis",
		Method:      http.MethodGet,
		Path:        "/api/analyses/{id}",
		Summary:     "Get an analysis",
		Tags:        []string{"Analysis"},
	}, func(ctx context.Context, input *AnalysisIDInput) (*AnalysisRecordOutput, error) {
		rec, ok := h.history.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("analysis not found")
		}
		return &AnalysisRecordOutput{Body: rec}, nil
	})
}

func summarize(rec *models.AnalysisRecord) AnalysisSummary {
	s := AnalysisSummary{
		ID:            rec.ID,
		CreatedAt:     rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Roles:         rec.Roles,
		MinConfidence: rec.MinConfidence,
	}
	if rec.Result != nil {
		s.Language = rec.Result.LanguageInfo.Language
		s.Subjects = len(rec.Result.SuggestedSubjects)
		s.OverallConfidence = rec.Result.OverallConfidence
	}
	return s
}
