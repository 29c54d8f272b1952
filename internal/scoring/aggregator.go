package scoring

import (
	"math"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// Aggregator fuses retrieval rank, language confidence and page coverage
// into one confidence per candidate:
//
//	rank     = 1 / (1 + RankDecay*i)
//	language = 1 - LanguageWeight*(1 - languageConfidence)
//	coverage = CoverageFloor + (1 - CoverageFloor) * nonEmptyPages/4
//	score    = clamp01(rank * language * coverage)
//
// Each factor lies in [0,1] and is monotonic in its input.
type Aggregator struct {
	cfg config.ScoringConfig
}

func NewAggregator(cfg config.ScoringConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Score returns a confidence per candidate title. When two candidates share
// a title the earlier (higher ranked) one keeps its score.
func (a *Aggregator) Score(pages []models.PageExtraction, candidates []models.SubjectHeading, lang models.LanguageInfo) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	language := a.LanguageFactor(lang.Confidence)
	coverage := a.CoverageFactor(pages)

	for i, c := range candidates {
		if _, exists := scores[c.Title]; exists {
			continue
		}
		scores[c.Title] = clamp01(a.RankFactor(i) * language * coverage)
	}
	return scores
}

func (a *Aggregator) RankFactor(i int) float64 {
	if i < 0 {
		i = 0
	}
	return 1 / (1 + a.cfg.RankDecay*float64(i))
}

func (a *Aggregator) LanguageFactor(confidence float64) float64 {
	return clamp01(1 - a.cfg.LanguageWeight*(1-clamp01(confidence)))
}

// CoverageFactor rewards each page role that produced text
func (a *Aggregator) CoverageFactor(pages []models.PageExtraction) float64 {
	covered := make(map[models.PageRole]bool, len(models.PageRoles))
	for _, p := range pages {
		if p.Role.Valid() && p.HasText() {
			covered[p.Role] = true
		}
	}
	frac := float64(len(covered)) / float64(len(models.PageRoles))
	return clamp01(a.cfg.CoverageFloor + (1-a.cfg.CoverageFloor)*frac)
}

// Overall is the arithmetic mean of scores, or 0 when there are none
func Overall(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return clamp01(sum / float64(len(scores)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
