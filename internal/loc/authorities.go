package loc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"golang.org/x/sync/errgroup"
)

// Authority vocabulary codes
const (
	LCSH  = "LCSH"
	LCNAF = "LCNAF"
	LCGFT = "LCGFT"
	CYAC  = "CYAC"
	LCDGT = "LCDGT"
	GAC   = "GAC"
	LCMPT = "LCMPT"
)

// Authority describes one searchable vocabulary
type Authority struct {
	Code       string `json:"code" yaml:"code"`
	Name       string `json:"name" yaml:"name"`
	Collection string `json:"-" yaml:"-"`
}

// Authorities lists every vocabulary the client can search
var Authorities = []Authority{
	{LCSH, "LCSH (Subject Headings)", "subjects"},
	{LCNAF, "LCNAF (Name Authority)", "names"},
	{LCGFT, "LCGFT (Genre/Form Terms)", "genreForms"},
	{CYAC, "Children's Subject Headings", "childrensSubjects"},
	{LCDGT, "Demographic Terms", "demographicTerms"},
	{GAC, "Geographic Areas", "geographicAreas"},
	{LCMPT, "Medium of Performance", "performanceMediums"},
}

// DefaultAuthorityLimit is the per-vocabulary result count for SearchAuthorities
const DefaultAuthorityLimit = 10

// LookupAuthority finds an authority by code, case-insensitively
func LookupAuthority(code string) (Authority, bool) {
	for _, a := range Authorities {
		if strings.EqualFold(a.Code, code) {
			return a, true
		}
	}
	return Authority{}, false
}

// SearchAuthorities searches the given vocabularies concurrently, or all of
// them when types is empty. Any single failure fails the whole search.
func (c *Client) SearchAuthorities(ctx context.Context, query string, types []string) (map[string][]models.SubjectHeading, error) {
	selected := Authorities
	if len(types) > 0 {
		selected = nil
		for _, t := range types {
			a, ok := LookupAuthority(t)
			if !ok {
				return nil, fmt.Errorf("unknown authority %q", t)
			}
			selected = append(selected, a)
		}
	}

	var mu sync.Mutex
	results := make(map[string][]models.SubjectHeading, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range selected {
		g.Go(func() error {
			subjects, err := c.SearchAuthority(gctx, a.Code, query, DefaultAuthorityLimit)
			if err != nil {
				return fmt.Errorf("%s: %w", a.Code, err)
			}
			mu.Lock()
			results[a.Code] = subjects
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
