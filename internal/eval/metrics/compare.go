package metrics

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/isbn"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/metadata"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// Compared fields, in report order
const (
	FieldISBN     = "isbn"
	FieldLCCN     = "lccn"
	FieldYear     = "year"
	FieldLanguage = "language"
)

var Fields = []string{FieldISBN, FieldLCCN, FieldYear, FieldLanguage}

// Match methods
const (
	MethodExact           = "exact"
	MethodNoMatch         = "no_match"
	MethodActualMissing   = "actual_missing"
	MethodExpectedMissing = "expected_missing"
	MethodBothMissing     = "both_missing"
)

// FieldMatch is the comparison of one extracted field with the catalog record
type FieldMatch struct {
	Expected string  `json:"expected" yaml:"expected"`
	Actual   string  `json:"actual" yaml:"actual"`
	Score    float64 `json:"score" yaml:"score"`
	Method   string  `json:"method" yaml:"method"`
}

// Scored reports whether the field counts toward accuracy: only fields the
// catalog record actually has are scored
func (m FieldMatch) Scored() bool {
	return m.Method != MethodExpectedMissing && m.Method != MethodBothMissing
}

// GroundTruth is the catalog data a volume is evaluated against
type GroundTruth struct {
	ISBNs    []string
	LCCNs    []string
	Year     string
	Language string // ISO 639-3
}

// Compare scores every field of an analysis result against the ground truth.
// names maps ISO 639-3 codes to the display names the classifier reports.
func Compare(truth GroundTruth, result *models.BookAnalysisResult, names map[string]string) map[string]FieldMatch {
	md := result.Metadata
	return map[string]FieldMatch{
		FieldISBN:     CompareISBN(truth.ISBNs, deref(md.ISBN)),
		FieldLCCN:     CompareLCCN(truth.LCCNs, deref(md.LCCN)),
		FieldYear:     CompareYear(truth.Year, deref(md.Year)),
		FieldLanguage: CompareLanguage(truth.Language, result.LanguageInfo, names),
	}
}

// CompareISBN matches when the extracted ISBN equals any catalog ISBN after
// both are converted to ISBN-13
func CompareISBN(expected []string, actual string) FieldMatch {
	return compareAny(expected, actual, isbn.Normalize)
}

func CompareLCCN(expected []string, actual string) FieldMatch {
	return compareAny(expected, actual, metadata.NormalizeLCCN)
}

func CompareYear(expected, actual string) FieldMatch {
	expected = strings.TrimSpace(expected)
	return compareAny([]string{expected}, actual, strings.TrimSpace)
}

// CompareLanguage accepts either the configured display name or the
// detector's own name for the catalog's language code
func CompareLanguage(expectedCode string, detected models.LanguageInfo, names map[string]string) FieldMatch {
	code := strings.ToLower(strings.TrimSpace(expectedCode))
	actual := ""
	if !detected.IsUnknown() {
		actual = detected.Language
	}

	// und, mul and zxx carry no single language to detect
	if code == "" || code == "und" || code == "mul" || code == "zxx" {
		return missing("", actual)
	}

	m := FieldMatch{Expected: code, Actual: actual}
	accepted := []string{code}
	if lang := whatlanggo.CodeToLang(code); lang != -1 {
		m.Expected = lang.String()
		accepted = append(accepted, m.Expected)
	}
	if name, ok := names[code]; ok {
		m.Expected = name
		accepted = append(accepted, name)
	}

	if actual == "" {
		m.Method = MethodActualMissing
		return m
	}
	for _, a := range accepted {
		if a != "" && strings.EqualFold(a, actual) {
			m.Method = MethodExact
			m.Score = 1
			return m
		}
	}
	m.Method = MethodNoMatch
	return m
}

func compareAny(expected []string, actual string, normalize func(string) string) FieldMatch {
	var norm []string
	for _, e := range expected {
		if n := normalize(e); n != "" {
			norm = append(norm, n)
		}
	}
	act := ""
	if actual != "" {
		act = normalize(actual)
	}

	if len(norm) == 0 {
		return missing("", act)
	}

	m := FieldMatch{Expected: strings.Join(norm, "|"), Actual: act}
	if act == "" {
		m.Method = MethodActualMissing
		return m
	}
	for _, n := range norm {
		if n == act {
			m.Method = MethodExact
			m.Score = 1
			return m
		}
	}
	m.Method = MethodNoMatch
	return m
}

func missing(expected, actual string) FieldMatch {
	if actual == "" {
		return FieldMatch{Expected: expected, Method: MethodBothMissing}
	}
	return FieldMatch{Expected: expected, Actual: actual, Method: MethodExpectedMissing}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
