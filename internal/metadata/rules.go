package metadata

import (
	"regexp"
	"strings"
)

// rule is a pattern tagged with the ISO 639-1 code of the language it targets.
// An empty lang marks a language-neutral rule.
type rule struct {
	lang string
	re   *regexp.Regexp
}

var (
	// "ISBN 978-0-7432-7356-5", "ISBN-10: 0-7432-7356-7"
	isbnLabelled = regexp.MustCompile(`(?i)ISBN(?:-?1[03])?[\s:#.]*([0-9][0-9Xx\-\s]{8,18}[0-9Xx])`)
	// bare EAN forms without a label
	isbnBare = regexp.MustCompile(`\b(97[89](?:[-\s]?[0-9]){10})\b`)

	yearAny = regexp.MustCompile(`\b(1[4-9][0-9]{2}|20[0-9]{2})\b`)
	// years close to a copyright or publication marker
	yearMarked = regexp.MustCompile(`(?i)(?:©|\(c\)|copyright|published|first\s+(?:published|edition)|publicado|publié|édition|edición|veröffentlicht|auflage|pubblicato|edizione|edição)[^0-9\n]{0,24}(1[4-9][0-9]{2}|20[0-9]{2})`)

	lccnLabelled = regexp.MustCompile(`(?i)(?:LCCN|Library\s+of\s+Congress\s+(?:Control|Catalog(?:ing)?(?:\s+Card)?)\s+(?:Number|No\.?))[\s:#.]*([a-z]{0,3}\s?[0-9]{2,4}[-\s]?[0-9]{1,6})`)
	lccnNormal   = regexp.MustCompile(`^(?:[a-z]{0,3}[0-9]{8}|[a-z]{0,2}[0-9]{10})$`)

	// dot leaders followed by a page number
	leaderPageNumber   = regexp.MustCompile(`\s*(?:\.{2,}|…+|·{2,}|_{2,})\s*[0-9]{1,4}\s*$`)
	trailingPageNumber = regexp.MustCompile(`\s+[0-9]{1,4}\s*$`)
	endsWithKeyword    = regexp.MustCompile(`(?i)\b(?:chapter|part|book|capítulo|capitulo|parte|chapitre|partie|livre|kapitel|teil|buch|capitolo|libro|livro)$`)
	letterPattern      = regexp.MustCompile(`\pL`)
)

var publisherRules = []rule{
	{"en", regexp.MustCompile(`(?i)\b(?:published|issued)\s+by\s+([^\n,;]+)`)},
	{"en", regexp.MustCompile(`(?im)^\s*publishers?\s*:\s*([^\n,;]+)`)},
	{"es", regexp.MustCompile(`(?i)\b(?:publicado|editado)\s+por\s+([^\n,;]+)`)},
	{"es", regexp.MustCompile(`(?im)^\s*editorial\s*:\s*([^\n,;]+)`)},
	{"fr", regexp.MustCompile(`(?i)\b(?:publié|édité)\s+par\s+([^\n,;]+)`)},
	{"fr", regexp.MustCompile(`(?im)^\s*éditeur\s*:\s*([^\n,;]+)`)},
	{"de", regexp.MustCompile(`(?i)\b(?:herausgegeben|veröffentlicht)\s+von\s+([^\n,;]+)`)},
	{"de", regexp.MustCompile(`(?i)\berschienen\s+(?:im|bei)\s+([^\n,;]+)`)},
	{"it", regexp.MustCompile(`(?i)\b(?:pubblicato|edito)\s+da\s+([^\n,;]+)`)},
	{"it", regexp.MustCompile(`(?im)^\s*(?:casa\s+editrice|editore)\s*:\s*([^\n,;]+)`)},
	{"pt", regexp.MustCompile(`(?i)\b(?:publicado|editado)\s+pela?\s+([^\n,;]+)`)},
	{"pt", regexp.MustCompile(`(?im)^\s*editora\s*:\s*([^\n,;]+)`)},
	// "Éditions Gallimard", "Editorial Planeta", "Casa Editrice Einaudi"
	{"", regexp.MustCompile(`(?m)^\s*((?:Éditions|Editions|Editorial|Editora|Editrice|Casa\s+Editrice|Verlag)\s+[^\n,;]+?)\s*$`)},
	// "Charles Scribner's Sons", "Penguin Books", "Suhrkamp Verlag"
	{"", regexp.MustCompile(`(?m)^\s*([\pL][\pL&.'’ -]*?\s(?:Press|Publishers?|Publishing(?:\s+(?:Company|Co\.|Group|House))?|Books|Verlag|Sons|Inc\.|Ltd\.?|GmbH|S\.A\.|Editores|Éditeur))\s*$`)},
}

var chapterRules = []rule{
	{"en", regexp.MustCompile(`(?i)^\s*(?:chapter|part|book)\s+(?:[0-9]+|[ivxlcdm]+|[a-z]+)\b`)},
	{"es", regexp.MustCompile(`(?i)^\s*(?:capítulo|capitulo|parte)\s+(?:[0-9]+|[ivxlcdm]+|[a-z]+)\b`)},
	{"fr", regexp.MustCompile(`(?i)^\s*(?:chapitre|partie|livre)\s+(?:[0-9]+|[ivxlcdm]+|[a-zé]+)\b`)},
	{"de", regexp.MustCompile(`(?i)^\s*(?:kapitel|teil|buch)\s+(?:[0-9]+|[ivxlcdm]+|[a-zäöü]+)\b`)},
	{"it", regexp.MustCompile(`(?i)^\s*(?:capitolo|parte|libro)\s+(?:[0-9]+|[ivxlcdm]+|[a-z]+)\b`)},
	{"pt", regexp.MustCompile(`(?i)^\s*(?:capítulo|parte|livro)\s+(?:[0-9]+|[ivxlcdm]+|[a-z]+)\b`)},
	// "1. The Valley of Ashes", "IV) Gatsby"
	{"", regexp.MustCompile(`^\s*(?:[0-9]{1,3}|[IVXLC]{1,6})[.)]\s+\S`)},
	// "Introduction ........ 1"
	{"", regexp.MustCompile(`^\s*\S.*?(?:\.{2,}|…+|·{2,}|\s{3,})\s*[0-9]{1,4}\s*$`)},
}

// tocHeadings are skipped when listing chapters
var tocHeadings = map[string]bool{
	"contents":           true,
	"table of contents":  true,
	"índice":             true,
	"indice":             true,
	"table des matières": true,
	"sommaire":           true,
	"inhalt":             true,
	"inhaltsverzeichnis": true,
	"sumário":            true,
	"sumario":            true,
}

// languageCodes maps detected language names to rule tags
var languageCodes = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
}

// orderedRules returns the rules for lang first, then the rest in declared order
func orderedRules(rules []rule, lang string) []rule {
	if lang == "" {
		return rules
	}
	out := make([]rule, 0, len(rules))
	for _, r := range rules {
		if r.lang == lang {
			out = append(out, r)
		}
	}
	for _, r := range rules {
		if r.lang != lang {
			out = append(out, r)
		}
	}
	return out
}

func ruleLanguage(language string) string {
	return languageCodes[strings.ToLower(strings.TrimSpace(language))]
}
