package subjects

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// Searcher is the authority search the retriever composes queries for
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SubjectHeading, error)
}

// AuthoritySearcher can also search several vocabularies at once
type AuthoritySearcher interface {
	Searcher
	SearchAuthorities(ctx context.Context, query string, types []string) (map[string][]models.SubjectHeading, error)
}

const (
	DefaultTokenLimit = 5
	minTokenRunes     = 3
)

// Retriever turns free text into a deduplicated list of subject candidates
type Retriever struct {
	searcher   Searcher
	tokenLimit int
}

func NewRetriever(searcher Searcher, tokenLimit int) *Retriever {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	return &Retriever{searcher: searcher, tokenLimit: tokenLimit}
}

// Retrieve searches with the whole text first. Only when that finds
// nothing does it search each token longer than two characters. Results
// are deduplicated by ID in first-seen order and truncated to limit.
// Search failures are returned unchanged.
func (r *Retriever) Retrieve(ctx context.Context, text string, lang models.LanguageInfo, limit int) ([]models.SubjectHeading, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []models.SubjectHeading{}, nil
	}

	results, err := r.searcher.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		tokens := Tokens(text)
		slog.Debug("Whole-text search empty, falling back to tokens", "tokens", len(tokens), "language", lang.Language)
		for _, token := range tokens {
			tokenResults, err := r.searcher.Search(ctx, token, r.tokenLimit)
			if err != nil {
				return nil, err
			}
			results = append(results, tokenResults...)
		}
	}

	return Dedupe(results, limit), nil
}

// Suggest retrieves candidates for arbitrary text outside an analysis
func (r *Retriever) Suggest(ctx context.Context, text string, limit int) ([]models.SubjectHeading, error) {
	return r.Retrieve(ctx, text, models.UnknownLanguage(), limit)
}

// Tokens splits text on whitespace and keeps distinct tokens longer than two runes
func Tokens(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, f := range strings.Fields(text) {
		if utf8.RuneCountInString(f) < minTokenRunes || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// Dedupe keeps the first occurrence of each ID and truncates to limit
func Dedupe(in []models.SubjectHeading, limit int) []models.SubjectHeading {
	seen := make(map[string]bool, len(in))
	out := make([]models.SubjectHeading, 0, min(len(in), max(limit, 0)))
	for _, s := range in {
		if len(out) >= limit {
			break
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// ValidationResult reports whether a heading exists verbatim in an authority
type ValidationResult struct {
	Subject     string   `json:"subject" yaml:"subject"`
	Valid       bool     `json:"valid" yaml:"valid"`
	Authority   string   `json:"authority,omitempty" yaml:"authority,omitempty"`
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	URI         string   `json:"uri,omitempty" yaml:"uri,omitempty"`
	Suggestions []string `json:"suggestions" yaml:"suggestions"`
}

const validationLimit = 10

// Validate checks each subject for an exact (case-insensitive) title match.
// With checkAll every authority vocabulary is consulted, not just LCSH.
func (r *Retriever) Validate(ctx context.Context, subjects []string, checkAll bool) ([]ValidationResult, error) {
	var all AuthoritySearcher
	if checkAll {
		var ok bool
		if all, ok = r.searcher.(AuthoritySearcher); !ok {
			return nil, fmt.Errorf("searcher does not support multi-authority search")
		}
	}

	results := make([]ValidationResult, 0, len(subjects))
	for _, subject := range subjects {
		subject = strings.TrimSpace(subject)
		if subject == "" {
			continue
		}

		found := map[string][]models.SubjectHeading{}
		if checkAll {
			var err error
			if found, err = all.SearchAuthorities(ctx, subject, nil); err != nil {
				return nil, err
			}
		} else {
			lcsh, err := r.searcher.Search(ctx, subject, validationLimit)
			if err != nil {
				return nil, err
			}
			found["LCSH"] = lcsh
		}
		results = append(results, validate(subject, found))
	}
	return results, nil
}

func validate(subject string, found map[string][]models.SubjectHeading) ValidationResult {
	res := ValidationResult{Subject: subject, Suggestions: []string{}}
	want := normalizeHeading(subject)

	for _, authority := range sortedKeys(found) {
		for _, s := range found[authority] {
			if normalizeHeading(s.Title) == want {
				res.Valid = true
				res.Authority = authority
				res.ID = s.ID
				res.URI = s.URI
				return res
			}
		}
	}

	for _, authority := range sortedKeys(found) {
		for _, s := range found[authority] {
			if len(res.Suggestions) >= 5 {
				return res
			}
			res.Suggestions = append(res.Suggestions, s.Title)
		}
	}
	return res
}

// sortedKeys orders LCSH first so a subject heading wins over a name or genre match
func sortedKeys(m map[string][]models.SubjectHeading) []string {
	keys := make([]string, 0, len(m))
	if _, ok := m["LCSH"]; ok {
		keys = append(keys, "LCSH")
	}
	rest := make([]string, 0, len(m))
	for k := range m {
		if k != "LCSH" {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func normalizeHeading(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ".")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
