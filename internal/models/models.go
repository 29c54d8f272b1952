package models

import (
	"strings"
	"time"
)

// PageRole identifies which physical page of a book an upload depicts
type PageRole string

const (
	FrontCover    PageRole = "front_cover"
	BackCover     PageRole = "back_cover"
	CopyrightPage PageRole = "copyright_page"
	TOCPage       PageRole = "toc_page"
)

// PageRoles is the fixed order in which page texts are combined.
// Language detection depends on it, so it must not follow map iteration order.
var PageRoles = []PageRole{FrontCover, BackCover, CopyrightPage, TOCPage}

// Valid reports whether r is one of the known page roles
func (r PageRole) Valid() bool {
	for _, role := range PageRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ExtractionDiagnostics describes how a page's text was (or was not) produced
type ExtractionDiagnostics struct {
	Format    string        `json:"format,omitempty" yaml:"format,omitempty"`
	Bytes     int           `json:"bytes" yaml:"bytes"`
	Width     int           `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int           `json:"height,omitempty" yaml:"height,omitempty"`
	PageCount int           `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	Engine    string        `json:"engine,omitempty" yaml:"engine,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	// Degraded is set when the page produced no text because of a failure
	Degraded string `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// PageExtraction is the raw text extracted from one page role
type PageExtraction struct {
	Role        PageRole              `json:"role" yaml:"role"`
	RawText     string                `json:"raw_text" yaml:"raw_text"`
	Diagnostics ExtractionDiagnostics `json:"diagnostics" yaml:"diagnostics"`
}

// HasText reports whether the extraction produced any non-whitespace text
func (p PageExtraction) HasText() bool {
	return strings.TrimSpace(p.RawText) != ""
}

// CombineText joins non-empty page texts in PageRoles order, separated by a space.
func CombineText(pages []PageExtraction) string {
	byRole := make(map[PageRole]string, len(pages))
	for _, p := range pages {
		if p.HasText() {
			byRole[p.Role] = strings.TrimSpace(p.RawText)
		}
	}
	parts := make([]string, 0, len(byRole))
	for _, role := range PageRoles {
		if text, ok := byRole[role]; ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// LanguageInfo is the detected language and writing script of a book
type LanguageInfo struct {
	Language   string  `json:"language" yaml:"language"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Script     string  `json:"script" yaml:"script"` // "roman", "cyrillic", "cjk", "arabic", etc.
}

const Unknown = "unknown"

// UnknownLanguage is the result of an ambiguous or impossible detection
func UnknownLanguage() LanguageInfo {
	return LanguageInfo{Language: Unknown, Confidence: 0.0, Script: Unknown}
}

// IsUnknown reports whether no language could be determined
func (l LanguageInfo) IsUnknown() bool {
	return l.Language == "" || l.Language == Unknown
}

// ClassificationNumber holds classification numbers attached to an authority record
type ClassificationNumber struct {
	LCC    string `json:"lcc,omitempty" yaml:"lcc,omitempty"`
	DDC    string `json:"ddc,omitempty" yaml:"ddc,omitempty"`
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	OCLC   string `json:"oclc,omitempty" yaml:"oclc,omitempty"`
}

// BookMetadata holds the bibliographic fields found on the book's pages.
// Every field is optional.
type BookMetadata struct {
	ISBN      *string       `json:"isbn" yaml:"isbn"`
	Year      *string       `json:"year" yaml:"year"`
	Publisher *string       `json:"publisher" yaml:"publisher"`
	LCCN      *string       `json:"lccn" yaml:"lccn"`
	Language  *LanguageInfo `json:"language" yaml:"language"`
	Subjects  []string      `json:"subjects" yaml:"subjects"`
	Chapters  []string      `json:"chapters" yaml:"chapters"`
}

// NewBookMetadata returns metadata with empty (non-nil) lists
func NewBookMetadata() BookMetadata {
	return BookMetadata{Subjects: []string{}, Chapters: []string{}}
}

// SubjectHeading is a subject record from an authority vocabulary.
// ID is the identity: two headings with the same ID are the same subject.
type SubjectHeading struct {
	ID             string                `json:"id" yaml:"id"`
	Title          string                `json:"title" yaml:"title"`
	URI            string                `json:"uri,omitempty" yaml:"uri,omitempty"`
	Type           []string              `json:"type" yaml:"type"`
	Broader        []string              `json:"broader" yaml:"broader"`
	Narrower       []string              `json:"narrower" yaml:"narrower"`
	Related        []string              `json:"related" yaml:"related"`
	Classification *ClassificationNumber `json:"classification,omitempty" yaml:"classification,omitempty"`
	Metadata       map[string]any        `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Note           string                `json:"note,omitempty" yaml:"note,omitempty"`
	Created        string                `json:"created,omitempty" yaml:"created,omitempty"`
	Modified       string                `json:"modified,omitempty" yaml:"modified,omitempty"`
	Variants       []string              `json:"variants" yaml:"variants"`
	Confidence     float64               `json:"confidence" yaml:"confidence"`
}

// BookAnalysisResult is the single artifact produced by one pipeline run
type BookAnalysisResult struct {
	Metadata          BookMetadata       `json:"metadata" yaml:"metadata"`
	SuggestedSubjects []SubjectHeading   `json:"suggested_subjects" yaml:"suggested_subjects"`
	ConfidenceScores  map[string]float64 `json:"confidence_scores" yaml:"confidence_scores"`
	ExtractedText     map[string]string  `json:"extracted_text" yaml:"extracted_text"`
	AuthoritiesUsed   []string           `json:"authorities_used" yaml:"authorities_used"`
	LanguageInfo      LanguageInfo       `json:"language_info" yaml:"language_info"`
	OverallConfidence float64            `json:"overall_confidence" yaml:"overall_confidence"`
}

// EmptyAnalysisResult is the fully-defaulted, zero-confidence result
func EmptyAnalysisResult() *BookAnalysisResult {
	return &BookAnalysisResult{
		Metadata:          NewBookMetadata(),
		SuggestedSubjects: []SubjectHeading{},
		ConfidenceScores:  map[string]float64{},
		ExtractedText:     map[string]string{},
		AuthoritiesUsed:   []string{},
		LanguageInfo:      UnknownLanguage(),
		OverallConfidence: 0.0,
	}
}

// AnalysisRecord is a stored pipeline run
type AnalysisRecord struct {
	ID            string              `json:"id"`
	MinConfidence float64             `json:"min_confidence"`
	Roles         []PageRole          `json:"roles"`
	Result        *BookAnalysisResult `json:"result"`
	CreatedAt     time.Time           `json:"created_at"`
}
