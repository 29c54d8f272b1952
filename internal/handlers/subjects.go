package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/isbn"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/metadata"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/subjects"
)

type SearchSubjectsInput struct {
	Query         string `query:"q" required:"true" minLength:"2" doc:"Search query"`
	Limit         int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum number of results"`
	AuthorityType string `query:"authority_type" doc:"Only return headings whose type matches (case-insensitive)"`
}

type SubjectsOutput struct {
	Body struct {
		Query   string                  `json:"query"`
		Total   int                     `json:"total"`
		Results []models.SubjectHeading `json:"results"`
	}
}

type SubjectIDInput struct {
	SubjectID string `path:"subject_id" doc:"Authority record identifier, e.g. sh85061212"`
}

type SubjectOutput struct {
	Body *models.SubjectHeading
}

type SuggestSubjectsInput struct {
	Text  string `query:"text" required:"true" minLength:"2" doc:"Text to suggest subjects for"`
	Limit int    `query:"limit" default:"10" minimum:"1" maximum:"50" doc:"Maximum number of suggestions"`
}

type ValidateSubjectsInput struct {
	Subjects            []string `query:"subjects,explode" required:"true" doc:"Subject headings to validate; repeat the parameter for each"`
	CheckAllAuthorities bool     `query:"check_all_authorities" default:"false" doc:"Check every authority vocabulary, not only LCSH"`
}

type ValidateSubjectsOutput struct {
	Body struct {
		Results []subjects.ValidationResult `json:"results"`
		Valid   int                         `json:"valid"`
		Total   int                         `json:"total"`
	}
}

type SearchAuthoritiesInput struct {
	Query string   `query:"q" required:"true" minLength:"2" doc:"Search query"`
	Types []string `query:"types" doc:"Authority codes to search (LCSH, LCNAF, LCGFT, CYAC, LCDGT, GAC, LCMPT); all when omitted"`
}

type SearchAuthoritiesOutput struct {
	Body struct {
		Query   string                             `json:"query"`
		Results map[string][]models.SubjectHeading `json:"results"`
	}
}

type MARCFieldsInput struct {
	LCCN string `path:"lccn" doc:"Library of Congress Control Number"`
}

type MARCFieldsOutput struct {
	Body struct {
		LCCN   string                     `json:"lccn"`
		Fields map[string][]loc.DataField `json:"fields"`
	}
}

func (h *Handler) registerSubjects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "SearchSubjects",
		Method:      http.MethodGet,
		Path:        "/api/subjects/search/",
		Summary:     "Search subject headings",
		Description: "Search Library of Congress Subject Headings",
		Tags:        []string{"Subjects"},
	}, func(ctx context.Context, input *SearchSubjectsInput) (*SubjectsOutput, error) {
		results, err := h.authority.SearchAuthority(ctx, loc.LCSH, input.Query, input.Limit)
		if err != nil {
			return nil, upstreamError("failed to search subjects", err)
		}
		if input.AuthorityType != "" {
			results = filterByType(results, input.AuthorityType)
		}

		resp := &SubjectsOutput{}
		resp.Body.Query = input.Query
		resp.Body.Total = len(results)
		resp.Body.Results = results
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "SuggestSubjects",
		Method:      http.MethodGet,
		Path:        "/api/subjects/suggest/",
		Summary:     "Suggest subject headings",
		Description: "Suggest subject headings for free text",
		Tags:        []string{"Subjects"},
	}, func(ctx context.Context, input *SuggestSubjectsInput) (*SubjectsOutput, error) {
		results, err := h.currentSuggester().Suggest(ctx, input.Text, input.Limit)
		if err != nil {
			return nil, upstreamError("failed to suggest subjects", err)
		}

		resp := &SubjectsOutput{}
		resp.Body.Query = input.Text
		resp.Body.Total = len(results)
		resp.Body.Results = results
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ValidateSubjects",
		Method:      http.MethodGet,
		Path:        "/api/subjects/validate/",
		Summary:     "Validate subject headings",
		Description: "Check that each heading exists verbatim in an authority vocabulary",
		Tags:        []string{"Subjects"},
	}, func(ctx context.Context, input *ValidateSubjectsInput) (*ValidateSubjectsOutput, error) {
		results, err := h.currentSuggester().Validate(ctx, input.Subjects, input.CheckAllAuthorities)
		if err != nil {
			return nil, upstreamError("failed to validate subjects", err)
		}

		resp := &ValidateSubjectsOutput{}
		resp.Body.Results = results
		resp.Body.Total = len(results)
		for _, r := range results {
			if r.Valid {
				resp.Body.Valid++
			}
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetSubject",
		Method:      http.MethodGet,
		Path:        "/api/subjects/{subject_id}",
		Summary:     "Get subject heading",
		Description: "Fetch the full authority record for a subject heading",
		Tags:        []string{"Subjects"},
	}, func(ctx context.Context, input *SubjectIDInput) (*SubjectOutput, error) {
		subject, err := h.authority.GetDetails(ctx, input.SubjectID)
		if errors.Is(err, loc.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("subject %s not found", input.SubjectID))
		}
		if err != nil {
			return nil, upstreamError("failed to fetch subject", err)
		}
		return &SubjectOutput{Body: subject}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "SearchAuthorities",
		Method:      http.MethodGet,
		Path:        "/api/authorities/search/",
		Summary:     "Search authority vocabularies",
		Description: "Search several Library of Congress vocabularies at once",
		Tags:        []string{"Authorities"},
	}, func(ctx context.Context, input *SearchAuthoritiesInput) (*SearchAuthoritiesOutput, error) {
		for _, t := range input.Types {
			if _, ok := loc.LookupAuthority(t); !ok {
				return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("unknown authority type %q", t))
			}
		}

		results, err := h.authority.SearchAuthorities(ctx, input.Query, input.Types)
		if err != nil {
			return nil, upstreamError("failed to search authorities", err)
		}

		resp := &SearchAuthoritiesOutput{}
		resp.Body.Query = input.Query
		resp.Body.Results = results
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetMARCFields",
		Method:      http.MethodGet,
		Path:        "/api/marc-fields/{lccn}",
		Summary:     "Get MARC subject fields",
		Description: "Fetch the 650, 651 and 655 fields of a catalog record by LCCN",
		Tags:        []string{"Authorities"},
	}, func(ctx context.Context, input *MARCFieldsInput) (*MARCFieldsOutput, error) {
		lccn := input.LCCN
		if normalized := metadata.NormalizeLCCN(lccn); normalized != "" {
			lccn = normalized
		} else if isbn.Normalize(lccn) != "" {
			return nil, huma.Error422UnprocessableEntity("expected an LCCN, got an ISBN")
		}

		fields, err := h.authority.MARCFields(ctx, lccn)
		if errors.Is(err, loc.ErrNotFound) || (err == nil && loc.Empty(fields)) {
			return nil, huma.Error404NotFound(fmt.Sprintf("no subject fields for lccn %s", lccn))
		}
		if err != nil {
			return nil, upstreamError("failed to fetch MARC record", err)
		}

		resp := &MARCFieldsOutput{}
		resp.Body.LCCN = lccn
		resp.Body.Fields = fields
		return resp, nil
	})
}

func filterByType(in []models.SubjectHeading, authorityType string) []models.SubjectHeading {
	out := make([]models.SubjectHeading, 0, len(in))
	for _, s := range in {
		for _, t := range s.Type {
			if strings.EqualFold(t, authorityType) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// upstreamError reports a collaborator failure. Authority service failures
// are a bad gateway; anything else is an internal error.
func upstreamError(msg string, err error) error {
	slog.Error(msg, "err", err)
	var serviceErr *loc.ServiceError
	if errors.As(err, &serviceErr) {
		return huma.Error502BadGateway(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}
