package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/trial"
)

const (
	perQueryResults = 2
	maxFound        = 5
	extractionTemp  = 0.1
)

// searcher queries the primary provider and falls back to the secondary
// when the primary fails or finds nothing. Errors end up as empty results.
type searcher struct {
	primary   SearchProvider
	secondary SearchProvider
	logger    *slog.Logger
}

func (s searcher) query(ctx context.Context, text string, sources []string) SearchResult {
	for i, p := range []SearchProvider{s.primary, s.secondary} {
		if p == nil {
			continue
		}
		res, err := p.Query(ctx, text, sources)
		if err != nil {
			s.logger.Warn("search failed", "query", text, "provider", i, "error", err)
			continue
		}
		if !res.Empty() {
			return res
		}
	}
	return SearchResult{}
}

type extractor struct {
	svc     completion.Service
	prompts *prompt.Registry
	id      string
}

func newExtractor(src trial.ServiceSource, prompts *prompt.Registry, agentType, id string) extractor {
	system, _ := prompts.GetSystemPrompt(id)
	return extractor{svc: src.Service(agentType, system, extractionTemp), prompts: prompts, id: id}
}

// extract renders the extraction prompt for one search answer and decodes
// the completion into dst. Transport errors are returned; unparseable
// output leaves dst untouched.
func (e extractor) extract(ctx context.Context, query string, res SearchResult, dst interface{}) error {
	text, err := e.prompts.Render(e.id, map[string]interface{}{
		"Query":   query,
		"Text":    res.Text,
		"Sources": strings.Join(res.Sources, "\n"),
	})
	if err != nil {
		return err
	}
	raw, err := e.svc.Generate(ctx, text, completion.ShapeJSON)
	if err != nil {
		return err
	}
	completion.Decode(raw, dst)
	return nil
}

// StatuteFinder looks up the statutes that govern a trade secret dispute.
type StatuteFinder struct {
	search  searcher
	extract extractor
}

func NewStatuteFinder(src trial.ServiceSource, prompts *prompt.Registry, search, fallback SearchProvider) *StatuteFinder {
	return &StatuteFinder{
		search:  searcher{primary: search, secondary: fallback, logger: logging.New("research.statutes")},
		extract: newExtractor(src, prompts, "statute", prompt.PromptIDs.StatuteExtraction),
	}
}

func statuteQueries(issues []string) []string {
	queries := []string{
		"DTSA Defend Trade Secrets Act requirements elements",
		"UTSA Uniform Trade Secrets Act provisions",
	}
	for _, issue := range firstN(issues, 2) {
		queries = append(queries, "trade secret law "+issue)
	}
	return queries
}

// Find returns at most five statutes, deduplicated by citation.
func (f *StatuteFinder) Find(ctx context.Context, issues []string) []trial.Statute {
	var out []trial.Statute
	seen := map[string]bool{}
	for _, q := range statuteQueries(issues) {
		if ctx.Err() != nil {
			break
		}
		res := f.search.query(ctx, q, LegalSources)
		if res.Empty() {
			continue
		}
		var payload struct {
			Statutes []trial.Statute `json:"statutes"`
		}
		if err := f.extract.extract(ctx, q, res, &payload); err != nil {
			f.search.logger.Warn("statute extraction failed", "query", q, "error", err)
			continue
		}
		added := 0
		for _, s := range payload.Statutes {
			if added == perQueryResults {
				break
			}
			key := dedupeKey(s.Citation, s.Title)
			if key == "" || seen[key] {
				continue
			}
			if s.SourceURL == "" && len(res.Sources) > 0 {
				s.SourceURL = res.Sources[0]
			}
			seen[key] = true
			out = append(out, s)
			added++
		}
	}
	if len(out) > maxFound {
		out = out[:maxFound]
	}
	return out
}

// PrecedentFinder looks up case law for a dispute.
type PrecedentFinder struct {
	search  searcher
	extract extractor
}

func NewPrecedentFinder(src trial.ServiceSource, prompts *prompt.Registry, search, fallback SearchProvider) *PrecedentFinder {
	return &PrecedentFinder{
		search:  searcher{primary: search, secondary: fallback, logger: logging.New("research.precedents")},
		extract: newExtractor(src, prompts, "precedent", prompt.PromptIDs.PrecedentExtraction),
	}
}

func precedentQueries(issues []string, jurisdiction string) []string {
	queries := []string{
		"trade secret misappropriation cases " + jurisdiction,
		"landmark trade secret cases federal circuit",
	}
	for _, issue := range firstN(issues, 2) {
		queries = append(queries, "trade secret precedent "+issue)
	}
	return queries
}

type precedentPayload struct {
	CaseName   string      `json:"case_name"`
	Year       interface{} `json:"year"`
	Citation   string      `json:"citation"`
	Court      string      `json:"court"`
	CourtLevel string      `json:"court_level"`
	Holding    string      `json:"holding"`
	Rule       string      `json:"rule"`
	Outcome    string      `json:"outcome"`
	SourceURL  string      `json:"source_url"`
}

func (p precedentPayload) precedent() trial.Precedent {
	year := ""
	switch y := p.Year.(type) {
	case string:
		year = y
	case float64:
		year = fmt.Sprintf("%.0f", y)
	}
	return trial.Precedent{
		CaseName:   p.CaseName,
		Year:       year,
		Citation:   p.Citation,
		Court:      p.Court,
		CourtLevel: p.CourtLevel,
		Holding:    p.Holding,
		Rule:       p.Rule,
		Outcome:    p.Outcome,
		SourceURL:  p.SourceURL,
	}
}

// Find returns at most five precedents, deduplicated by case name.
func (f *PrecedentFinder) Find(ctx context.Context, issues []string, jurisdiction string) []trial.Precedent {
	var out []trial.Precedent
	seen := map[string]bool{}
	for _, q := range precedentQueries(issues, jurisdiction) {
		if ctx.Err() != nil {
			break
		}
		res := f.search.query(ctx, q, CaseLawSources)
		if res.Empty() {
			continue
		}
		var payload struct {
			Precedents []precedentPayload `json:"precedents"`
		}
		if err := f.extract.extract(ctx, q, res, &payload); err != nil {
			f.search.logger.Warn("precedent extraction failed", "query", q, "error", err)
			continue
		}
		added := 0
		for _, raw := range payload.Precedents {
			if added == perQueryResults {
				break
			}
			p := raw.precedent()
			key := dedupeKey(p.CaseName, p.Citation)
			if key == "" || seen[key] {
				continue
			}
			if p.SourceURL == "" && len(res.Sources) > 0 {
				p.SourceURL = res.Sources[0]
			}
			seen[key] = true
			out = append(out, p)
			added++
		}
	}
	if len(out) > maxFound {
		out = out[:maxFound]
	}
	return out
}

func dedupeKey(primary, secondary string) string {
	k := strings.ToLower(strings.TrimSpace(primary))
	if k == "" {
		k = strings.ToLower(strings.TrimSpace(secondary))
	}
	return k
}

func firstN(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
