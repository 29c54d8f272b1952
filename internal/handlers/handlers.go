package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/analysis"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/storage"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/subjects"
)

// Analyzer runs a full book analysis. It never fails; degraded runs
// produce the empty result.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) *models.BookAnalysisResult
}

// Authority is the subset of the authority client the API exposes directly
type Authority interface {
	SearchAuthority(ctx context.Context, authority, query string, limit int) ([]models.SubjectHeading, error)
	GetDetails(ctx context.Context, id string) (*models.SubjectHeading, error)
	SearchAuthorities(ctx context.Context, query string, types []string) (map[string][]models.SubjectHeading, error)
	MARCFields(ctx context.Context, lccn string) (map[string][]loc.DataField, error)
}

type SubjectSuggester interface {
	Suggest(ctx context.Context, text string, limit int) ([]models.SubjectHeading, error)
	Validate(ctx context.Context, subjects []string, checkAll bool) ([]subjects.ValidationResult, error)
}

type Options struct {
	Version        string
	MaxUploadBytes int64
}

type Handler struct {
	mu        sync.RWMutex
	analyzer  Analyzer
	suggester SubjectSuggester

	authority Authority
	history   *storage.AnalysisStore
	opts      Options
}

func New(analyzer Analyzer, authority Authority, suggester SubjectSuggester, history *storage.AnalysisStore, opts Options) *Handler {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	return &Handler{
		analyzer:  analyzer,
		authority: authority,
		suggester: suggester,
		history:   history,
		opts:      opts,
	}
}

// Reconfigure swaps the pipeline and subject suggester used by new
// requests. In-flight requests keep the ones they started with.
func (h *Handler) Reconfigure(a Analyzer, s SubjectSuggester) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.analyzer = a
	h.suggester = s
}

func (h *Handler) currentAnalyzer() Analyzer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.analyzer
}

func (h *Handler) currentSuggester() SubjectSuggester {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.suggester
}

// Router builds the chi router with every API operation registered
func (h *Handler) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Analysis-ID"},
		AllowCredentials: false,
	}))

	config := huma.DefaultConfig("Book Analyzer API", h.opts.Version)
	config.OpenAPI.Info.Description = "Extracts bibliographic metadata and Library of Congress subject suggestions from photographs of book pages."
	api := humachi.New(router, config)

	h.registerInfo(api)
	h.registerAnalysis(api)
	h.registerSubjects(api)
	h.registerHistory(api)

	return router
}

type PlainOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type AuthorityInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ServiceInfoOutput struct {
	Body struct {
		Name                 string          `json:"name"`
		Version              string          `json:"version"`
		Authorities          []AuthorityInfo `json:"authorities"`
		DefaultMinConfidence float64         `json:"default_min_confidence"`
		Docs                 string          `json:"docs"`
	}
}

func (h *Handler) registerInfo(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "ServiceInfo",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Service information",
		Description: "Name, version and the authority vocabularies available for searching",
		Tags:        []string{"Info"},
	}, func(ctx context.Context, input *struct{}) (*ServiceInfoOutput, error) {
		resp := &ServiceInfoOutput{}
		resp.Body.Name = "Book Analyzer"
		resp.Body.Version = h.opts.Version
		resp.Body.DefaultMinConfidence = analysis.DefaultMinConfidence
		resp.Body.Docs = "/docs"
		resp.Body.Authorities = make([]AuthorityInfo, 0, len(loc.Authorities))
		for _, a := range loc.Authorities {
			resp.Body.Authorities = append(resp.Body.Authorities, AuthorityInfo{Code: a.Code, Name: a.Name})
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "HealthCheck",
		Method:      http.MethodGet,
		Path:        "/healthcheck",
		Summary:     "Health check",
		Description: "Check if the API is running",
		Tags:        []string{"Info"},
	}, func(ctx context.Context, input *struct{}) (*PlainOutput, error) {
		return &PlainOutput{
			ContentType: "text/plain",
			Body:        []byte("OK"),
		}, nil
	})
}
