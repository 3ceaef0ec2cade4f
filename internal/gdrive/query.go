package gdrive

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Query is a conjunction of Drive search conditions. Trashed objects are
// always excluded.
type Query struct {
	Name         string   // exact name match
	NameContains []string // each must appear in the name
	MIMEType     string   // exact MIME type match
	ParentID     string   // restrict to direct children of this container
	Latest       bool     // most recently modified first, one result
}

// String renders the query in Drive's q syntax.
func (q Query) String() string {
	var terms []string

	if q.Name != "" {
		terms = append(terms, fmt.Sprintf("name = '%s'", escapeValue(q.Name)))
	}

	for _, s := range q.NameContains {
		if s == "" {
			continue
		}

		terms = append(terms, fmt.Sprintf("name contains '%s'", escapeValue(s)))
	}

	if q.MIMEType != "" {
		terms = append(terms, fmt.Sprintf("mimeType = '%s'", escapeValue(q.MIMEType)))
	}

	if q.ParentID != "" {
		terms = append(terms, fmt.Sprintf("'%s' in parents", escapeValue(q.ParentID)))
	}

	terms = append(terms, "trashed = false")

	return strings.Join(terms, " and ")
}

// orderBy returns the Drive orderBy parameter for the query, or "".
func (q Query) orderBy() string {
	if q.Latest {
		return "modifiedTime desc"
	}

	return ""
}

// escapeValue quotes a literal for Drive's query language. Drive stores
// names in NFC, so values are normalized before matching.
func escapeValue(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, `\`, `\\`)

	return strings.ReplaceAll(s, `'`, `\'`)
}
