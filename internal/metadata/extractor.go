package metadata

import (
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/isbn"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// searchOrder is the order pages are consulted for bibliographic fields
var searchOrder = []models.PageRole{
	models.CopyrightPage,
	models.FrontCover,
	models.BackCover,
	models.TOCPage,
}

const (
	minYear         = 1450
	maxPublisherLen = 80
)

// Extractor pulls bibliographic fields out of page text.
// A field that does not match is left nil; nothing is synthesized.
type Extractor struct {
	now func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract returns the metadata found on the given pages
func (e *Extractor) Extract(pages []models.PageExtraction, lang models.LanguageInfo) models.BookMetadata {
	md := models.NewBookMetadata()

	texts := orderedTexts(pages)
	tag := ruleLanguage(lang.Language)

	md.ISBN = firstMatch(texts, findISBN)
	md.LCCN = firstMatch(texts, findLCCN)
	md.Year = e.findYear(texts)
	md.Publisher = firstMatch(texts, func(text string) string {
		return findPublisher(text, tag)
	})

	for _, p := range pages {
		if p.Role == models.TOCPage {
			md.Chapters = findChapters(p.RawText)
		}
	}

	if !lang.IsUnknown() {
		l := lang
		md.Language = &l
	}

	return md
}

func orderedTexts(pages []models.PageExtraction) []string {
	byRole := make(map[models.PageRole]string, len(pages))
	for _, p := range pages {
		if p.HasText() {
			byRole[p.Role] = p.RawText
		}
	}
	texts := make([]string, 0, len(byRole))
	for _, role := range searchOrder {
		if text, ok := byRole[role]; ok {
			texts = append(texts, text)
		}
	}
	return texts
}

func firstMatch(texts []string, find func(string) string) *string {
	for _, text := range texts {
		if v := find(text); v != "" {
			return &v
		}
	}
	return nil
}

// findISBN returns the first checksum-valid ISBN as ISBN-13
func findISBN(text string) string {
	for _, m := range isbnLabelled.FindAllStringSubmatch(text, -1) {
		if v := normalizeCapturedISBN(m[1]); v != "" {
			return v
		}
	}
	for _, m := range isbnBare.FindAllStringSubmatch(text, -1) {
		if v := isbn.Normalize(m[1]); v != "" {
			return v
		}
	}
	return ""
}

// normalizeCapturedISBN handles captures that ran into following digits
func normalizeCapturedISBN(raw string) string {
	cleaned := isbn.Clean(raw)
	if v := isbn.Normalize(cleaned); v != "" {
		return v
	}
	if len(cleaned) > 13 {
		if v := isbn.Normalize(cleaned[:13]); v != "" {
			return v
		}
	}
	if len(cleaned) > 10 {
		return isbn.Normalize(cleaned[:10])
	}
	return ""
}

// findYear searches pages in order; within a page a year next to a
// copyright marker beats any other plausible year.
func (e *Extractor) findYear(texts []string) *string {
	maxYear := e.now().Year() + 1
	valid := func(s string) bool {
		y, err := strconv.Atoi(s)
		return err == nil && y >= minYear && y <= maxYear
	}

	for _, text := range texts {
		for _, m := range yearMarked.FindAllStringSubmatch(text, -1) {
			if valid(m[1]) {
				return &m[1]
			}
		}
		for _, m := range yearAny.FindAllStringSubmatch(stripIdentifiers(text), -1) {
			if valid(m[1]) {
				return &m[1]
			}
		}
	}
	return nil
}

// stripIdentifiers removes ISBN and LCCN runs so their digit groups are not read as years
func stripIdentifiers(text string) string {
	text = isbnLabelled.ReplaceAllString(text, " ")
	text = isbnBare.ReplaceAllString(text, " ")
	return lccnLabelled.ReplaceAllString(text, " ")
}

func findLCCN(text string) string {
	for _, m := range lccnLabelled.FindAllStringSubmatch(text, -1) {
		if v := NormalizeLCCN(m[1]); v != "" {
			return v
		}
	}
	return ""
}

// NormalizeLCCN applies the Library of Congress normalization rules:
// remove blanks, drop anything after a slash, and left-pad the serial
// after a hyphen to six digits. Returns "" when the result is not a
// well-formed LCCN.
func NormalizeLCCN(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "-"); i >= 0 {
		serial := s[i+1:]
		if len(serial) > 6 {
			return ""
		}
		s = s[:i] + strings.Repeat("0", 6-len(serial)) + serial
	}
	if !lccnNormal.MatchString(s) {
		return ""
	}
	return s
}

func findPublisher(text, lang string) string {
	for _, r := range orderedRules(publisherRules, lang) {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if p := cleanPublisher(m[1]); p != "" {
				return p
			}
		}
	}
	return ""
}

func cleanPublisher(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, " .:;,-")
	if !letterPattern.MatchString(s) || len(s) > maxPublisherLen {
		return ""
	}
	return s
}

// findChapters lists table-of-contents entries in page order
func findChapters(text string) []string {
	chapters := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || tocHeadings[strings.ToLower(strings.TrimRight(line, ":."))] {
			continue
		}
		if !isChapterLine(line) {
			continue
		}
		if entry := stripPageNumber(line); letterPattern.MatchString(entry) {
			chapters = append(chapters, entry)
		}
	}
	return chapters
}

func isChapterLine(line string) bool {
	for _, r := range chapterRules {
		if r.re.MatchString(line) {
			return true
		}
	}
	return false
}

func stripPageNumber(line string) string {
	if loc := leaderPageNumber.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[:loc[0]])
	}
	if loc := trailingPageNumber.FindStringIndex(line); loc != nil {
		rest := strings.TrimSpace(line[:loc[0]])
		if !endsWithKeyword.MatchString(rest) {
			return rest
		}
	}
	return line
}
