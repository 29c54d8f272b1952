package loc

import (
	"strings"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"golang.org/x/net/html"
)

type searchResponse struct {
	Results []searchItem `json:"results"`
}

// searchItem fields vary in shape between records (string or list),
// so they are decoded loosely.
type searchItem struct {
	ID             string `json:"id"`
	Title          any    `json:"title"`
	OriginalFormat any    `json:"original_format"`
	Date           any    `json:"date"`
	Contributor    any    `json:"contributor"`
	Subject        any    `json:"subject"`
	Location       any    `json:"location"`
}

func (i searchItem) toSubject() models.SubjectHeading {
	return models.SubjectHeading{
		ID:    i.ID,
		Title: plainText(firstString(i.Title)),
		URI:   i.ID,
		Type:  nonEmpty(stringList(i.OriginalFormat)),
		Metadata: map[string]any{
			"date":        firstString(i.Date),
			"contributor": stringList(i.Contributor),
			"subject":     stringList(i.Subject),
			"location":    stringList(i.Location),
		},
		Broader:  []string{},
		Narrower: []string{},
		Related:  []string{},
		Variants: []string{},
	}
}

type detailsResponse struct {
	Title          any            `json:"title"`
	URI            string         `json:"uri"`
	Type           any            `json:"type"`
	Broader        any            `json:"broader"`
	Narrower       any            `json:"narrower"`
	Related        any            `json:"related"`
	Metadata       map[string]any `json:"metadata"`
	Note           any            `json:"note"`
	Created        string         `json:"created"`
	Modified       string         `json:"modified"`
	Variants       any            `json:"variants"`
	Classification *struct {
		LCC    string `json:"lcc"`
		DDC    string `json:"ddc"`
		Scheme string `json:"scheme"`
		OCLC   string `json:"oclc"`
	} `json:"classification"`
}

func (d detailsResponse) toSubject(id string) models.SubjectHeading {
	s := models.SubjectHeading{
		ID:       id,
		Title:    plainText(firstString(d.Title)),
		URI:      d.URI,
		Type:     nonEmpty(stringList(d.Type)),
		Broader:  nonEmpty(stringList(d.Broader)),
		Narrower: nonEmpty(stringList(d.Narrower)),
		Related:  nonEmpty(stringList(d.Related)),
		Metadata: d.Metadata,
		Note:     plainText(strings.Join(stringList(d.Note), " ")),
		Created:  d.Created,
		Modified: d.Modified,
		Variants: nonEmpty(stringList(d.Variants)),
	}
	if c := d.Classification; c != nil {
		s.Classification = &models.ClassificationNumber{LCC: c.LCC, DDC: c.DDC, Scheme: c.Scheme, OCLC: c.OCLC}
	}
	return s
}

// stringList accepts a string, a list of strings, or a list of anything
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func firstString(v any) string {
	if l := stringList(v); len(l) > 0 {
		return l[0]
	}
	return ""
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// plainText strips markup and decodes entities found in authority titles and notes
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}
