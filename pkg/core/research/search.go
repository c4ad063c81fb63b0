// Package research gathers the evidence packet for a case: a structured
// case analysis plus statutes and precedents found through search providers.
package research

import (
	"context"
	"strings"
)

// SearchResult is the answer text of one query and the URLs it came from.
type SearchResult struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

func (r SearchResult) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// SearchProvider answers a free-text query, optionally restricted to sources.
type SearchProvider interface {
	Query(ctx context.Context, text string, sources []string) (SearchResult, error)
}

// Domains searched for statutory text.
var LegalSources = []string{
	"law.cornell.edu",
	"justia.com",
	"uscode.house.gov",
	"govinfo.gov",
	"supremecourt.gov",
}

// Domains searched for case law.
var CaseLawSources = []string{
	"scholar.google.com",
	"justia.com",
	"courtlistener.com",
	"law.cornell.edu",
	"casetext.com",
}
