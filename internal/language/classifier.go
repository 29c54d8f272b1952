package language

import (
	"math"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// Script tags
const (
	ScriptRoman      = "roman"
	ScriptCyrillic   = "cyrillic"
	ScriptCJK        = "cjk"
	ScriptArabic     = "arabic"
	ScriptGreek      = "greek"
	ScriptHebrew     = "hebrew"
	ScriptDevanagari = "devanagari"
)

// scriptTables is checked in order; letters matching none count as roman
var scriptTables = []struct {
	script string
	tables []*unicode.RangeTable
}{
	{ScriptCJK, []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul}},
	{ScriptCyrillic, []*unicode.RangeTable{unicode.Cyrillic}},
	{ScriptArabic, []*unicode.RangeTable{unicode.Arabic}},
	{ScriptGreek, []*unicode.RangeTable{unicode.Greek}},
	{ScriptHebrew, []*unicode.RangeTable{unicode.Hebrew}},
	{ScriptDevanagari, []*unicode.RangeTable{unicode.Devanagari}},
}

// Classifier determines the dominant language and script of a text
type Classifier struct {
	cfg     config.LanguageConfig
	options whatlanggo.Options
}

// NewClassifier restricts detection to the given OCR language codes
// (Tesseract names such as eng or chi_sim). With none, every language the
// detector knows is a candidate.
func NewClassifier(cfg config.LanguageConfig, ocrLanguages ...string) *Classifier {
	return &Classifier{
		cfg:     cfg,
		options: whatlanggo.Options{Whitelist: Whitelist(ocrLanguages)},
	}
}

// tesseractAliases maps Tesseract language names whatlanggo spells differently
var tesseractAliases = map[string]string{
	"chi_sim": "cmn",
	"chi_tra": "cmn",
	"ara":     "arb",
	"fas":     "pes",
	"aze":     "azj",
}

// Whitelist converts OCR language codes to detector languages, dropping
// codes the detector does not know. It returns nil when nothing maps.
func Whitelist(codes []string) map[whatlanggo.Lang]bool {
	var out map[whatlanggo.Lang]bool
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if alias, ok := tesseractAliases[code]; ok {
			code = alias
		}
		code, _, _ = strings.Cut(code, "_")
		lang := whatlanggo.CodeToLang(code)
		if lang == -1 {
			continue
		}
		if out == nil {
			out = make(map[whatlanggo.Lang]bool)
		}
		out[lang] = true
	}
	return out
}

// Classify returns the language of text, or the unknown LanguageInfo when
// the text has no letters or the detector cannot place it.
func (c *Classifier) Classify(text string) models.LanguageInfo {
	counts, letters := countScripts(text)
	if letters == 0 {
		return models.UnknownLanguage()
	}

	info := whatlanggo.DetectWithOptions(text, c.options)
	code := info.Lang.Iso6393()
	if info.Script == nil || code == "" {
		return models.UnknownLanguage()
	}

	script, dominant := dominantScript(counts)
	homogeneity := float64(dominant) / float64(letters)

	return models.LanguageInfo{
		Language:   c.displayName(code, info.Lang.String()),
		Confidence: c.confidence(info.Confidence, letters, homogeneity),
		Script:     script,
	}
}

// confidence = detector × length factor × homogeneity, then capped for
// short or mixed-script input
func (c *Classifier) confidence(detector float64, letters int, homogeneity float64) float64 {
	length := math.Min(1, float64(letters)/float64(c.cfg.FullConfidenceRunes))
	conf := clamp01(detector) * length * homogeneity

	if letters < c.cfg.ShortTextRunes {
		conf = math.Min(conf, c.cfg.ShortTextCap)
	}
	if homogeneity < c.cfg.MixedScriptThreshold {
		conf = math.Min(conf, c.cfg.MixedScriptCap)
	}
	return clamp01(conf)
}

func (c *Classifier) displayName(code, detectorName string) string {
	if name, ok := c.cfg.Names[code]; ok && name != "" {
		return name
	}
	if detectorName != "" {
		return detectorName
	}
	return code
}

// Script classifies the writing script of text by Unicode range
func Script(text string) string {
	counts, letters := countScripts(text)
	if letters == 0 {
		return models.Unknown
	}
	script, _ := dominantScript(counts)
	return script
}

func countScripts(text string) (map[string]int, int) {
	counts := make(map[string]int)
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		counts[scriptOf(r)]++
	}
	return counts, letters
}

func scriptOf(r rune) string {
	for _, st := range scriptTables {
		if unicode.In(r, st.tables...) {
			return st.script
		}
	}
	return ScriptRoman
}

// dominantScript picks the most frequent script; ties resolve in scriptTables
// order with roman last so the result is deterministic.
func dominantScript(counts map[string]int) (string, int) {
	best, bestCount := ScriptRoman, counts[ScriptRoman]
	for i := len(scriptTables) - 1; i >= 0; i-- {
		s := scriptTables[i].script
		if counts[s] >= bestCount && counts[s] > 0 {
			best, bestCount = s, counts[s]
		}
	}
	return best, bestCount
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
