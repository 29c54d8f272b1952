package dataset

import (
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
)

// Record is one volume of the Institutional Books 1.0 dataset.
// Only the columns the evaluation reads are mapped.
// Dataset: https://huggingface.co/datasets/instdin/institutional-books-1.0
type Record struct {
	BarcodeSource string `json:"barcode_src" parquet:"barcode_src"`
	TitleSource   string `json:"title_src" parquet:"title_src"`
	AuthorSource  string `json:"author_src" parquet:"author_src"`
	Date1Source   string `json:"date1_src" parquet:"date1_src"`
	Date2Source   string `json:"date2_src" parquet:"date2_src"`

	LanguageSource       string `json:"language_src" parquet:"language_src"` // ISO 639-3
	TopicOrSubjectSource string `json:"topic_or_subject_src" parquet:"topic_or_subject_src"`

	IdentifiersSource Identifiers `json:"identifiers_src" parquet:"identifiers_src"`

	TextByPageSource []string `json:"text_by_page_src" parquet:"text_by_page_src,list"`
	TextByPageGen    []string `json:"text_by_page_gen" parquet:"text_by_page_gen,list"`

	PageCountSource int `json:"page_count_src" parquet:"page_count_src"`
}

type Identifiers struct {
	LCCN []string `json:"lccn" parquet:"lccn,list"`
	ISBN []string `json:"isbn" parquet:"isbn,list"`
	OCLC []string `json:"ocolc" parquet:"ocolc,list"`
}

// Pages returns post-processed OCR text when present, otherwise the source OCR
func (r *Record) Pages() []string {
	if len(r.TextByPageGen) > 0 {
		return r.TextByPageGen
	}
	return r.TextByPageSource
}

// Year returns the first publication date when it is a plain four-digit year
func (r *Record) Year() string {
	for _, d := range []string{r.Date1Source, r.Date2Source} {
		d = strings.TrimSpace(d)
		if len(d) == 4 && strings.Trim(d, "0123456789") == "" {
			return d
		}
	}
	return ""
}

var contentsHeading = regexp.MustCompile(`(?im)^\s*(contents|table of contents|índice|table des matières|inhalt|inhaltsverzeichnis|sommaire|indice)\s*\.?\s*$`)

// Extractions maps a scanned volume onto page roles. The first page with text
// is the front cover, the following pages up to frontMatter are joined as the
// copyright page, the first page carrying a contents heading within twice
// that range is the table of contents and the last page with text is the
// back cover.
func (r *Record) Extractions(frontMatter int) []models.PageExtraction {
	if frontMatter <= 0 {
		frontMatter = 10
	}

	pages := r.Pages()
	first := -1
	for i, p := range pages {
		if strings.TrimSpace(p) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}

	out := []models.PageExtraction{{Role: models.FrontCover, RawText: pages[first]}}

	end := min(len(pages), first+1+frontMatter)
	var front []string
	for _, p := range pages[first+1 : end] {
		if strings.TrimSpace(p) != "" {
			front = append(front, p)
		}
	}
	if len(front) > 0 {
		out = append(out, models.PageExtraction{Role: models.CopyrightPage, RawText: strings.Join(front, "\n")})
	}

	tocEnd := min(len(pages), first+1+2*frontMatter)
	for _, p := range pages[first+1 : tocEnd] {
		if contentsHeading.MatchString(p) {
			out = append(out, models.PageExtraction{Role: models.TOCPage, RawText: p})
			break
		}
	}

	for i := len(pages) - 1; i >= end; i-- {
		if strings.TrimSpace(pages[i]) != "" {
			out = append(out, models.PageExtraction{Role: models.BackCover, RawText: pages[i]})
			break
		}
	}

	return out
}
