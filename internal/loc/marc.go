package loc

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SubjectTags are the MARC subject-access fields returned by MARCFields
var SubjectTags = []string{"650", "651", "655"}

type Subfield struct {
	Code  string `xml:"code,attr" json:"code"`
	Value string `xml:",chardata" json:"value"`
}

// DataField is one MARC variable data field
type DataField struct {
	Tag       string     `xml:"tag,attr" json:"tag"`
	Ind1      string     `xml:"ind1,attr" json:"ind1"`
	Ind2      string     `xml:"ind2,attr" json:"ind2"`
	Subfields []Subfield `xml:"subfield" json:"subfields"`
	Heading   string     `xml:"-" json:"heading"`
}

// MARCFields fetches the MARCXML record for lccn and returns its subject
// fields keyed by tag. Every tag in SubjectTags is present in the map.
func (c *Client) MARCFields(ctx context.Context, lccn string) (map[string][]DataField, error) {
	endpoint := c.lccnBaseURL + "/" + url.PathEscape(strings.TrimSpace(lccn)) + "/marcxml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "marcxml", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("lccn %s: %w", lccn, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{Op: "marcxml", URL: endpoint, StatusCode: resp.StatusCode}
	}

	fields, err := parseSubjectFields(resp.Body)
	if err != nil {
		return nil, &ServiceError{Op: "marcxml", URL: endpoint, Err: err}
	}
	return fields, nil
}

// parseSubjectFields reads datafield elements anywhere in the document,
// so both bare <record> and <collection> wrappers work.
func parseSubjectFields(r io.Reader) (map[string][]DataField, error) {
	fields := make(map[string][]DataField, len(SubjectTags))
	for _, tag := range SubjectTags {
		fields[tag] = []DataField{}
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse MARCXML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "datafield" {
			continue
		}

		var df DataField
		if err := dec.DecodeElement(&df, &start); err != nil {
			return nil, fmt.Errorf("failed to parse datafield: %w", err)
		}
		if _, wanted := fields[df.Tag]; !wanted {
			continue
		}
		df.Heading = heading(df.Subfields)
		fields[df.Tag] = append(fields[df.Tag], df)
	}

	return fields, nil
}

// heading joins $a and subdivision subfields the way catalogers display them
func heading(subfields []Subfield) string {
	var parts []string
	for _, sf := range subfields {
		v := strings.TrimRight(strings.TrimSpace(sf.Value), ".")
		if v == "" {
			continue
		}
		switch sf.Code {
		case "a", "b", "c", "d":
			if len(parts) == 0 {
				parts = append(parts, v)
			} else {
				parts[len(parts)-1] += " " + v
			}
		case "v", "x", "y", "z":
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " -- ")
}

// Empty reports whether no subject fields were found
func Empty(fields map[string][]DataField) bool {
	for _, tag := range SubjectTags {
		if len(fields[tag]) > 0 {
			return false
		}
	}
	return true
}
