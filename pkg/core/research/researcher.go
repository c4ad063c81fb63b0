package research

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/telemetry"
	"legal_simulation/pkg/core/trial"
)

const maxFacts = 5

// Researcher builds the base Evidence for a case.
type Researcher struct {
	analysis   completion.Service
	prompts    *prompt.Registry
	statutes   *StatuteFinder
	precedents *PrecedentFinder
	logger     *slog.Logger
}

// Options selects the search providers. Both may be nil, in which case
// the evidence carries no statutes or precedents.
type Options struct {
	Search   SearchProvider
	Fallback SearchProvider
}

func New(src trial.ServiceSource, prompts *prompt.Registry, opts Options) *Researcher {
	system, _ := prompts.GetSystemPrompt(prompt.PromptIDs.CaseAnalysis)
	return &Researcher{
		analysis:   src.Service("research", system, 0.3),
		prompts:    prompts,
		statutes:   NewStatuteFinder(src, prompts, opts.Search, opts.Fallback),
		precedents: NewPrecedentFinder(src, prompts, opts.Search, opts.Fallback),
		logger:     logging.New("research"),
	}
}

type caseAnalysis struct {
	LegalIssues      []string `json:"legal_issues"`
	KeyFacts         []string `json:"key_facts"`
	HasNDA           *bool    `json:"has_nda"`
	EvidenceStrength string   `json:"evidence_strength"`
	VenueBias        string   `json:"venue_bias"`
	PlaintiffClaims  []string `json:"plaintiff_claims"`
	DefendantClaims  []string `json:"defendant_claims"`
	DisputedFacts    []string `json:"disputed_facts"`
}

// GatherEvidence analyzes the case and searches for statutes and
// precedents. It never fails: anything that cannot be obtained falls back
// to defaults (no NDA, moderate evidence, neutral venue, empty lists).
func (r *Researcher) GatherEvidence(ctx context.Context, description, jurisdiction string) trial.Evidence {
	ctx, span := telemetry.Tracer("research").Start(ctx, "research.GatherEvidence")
	defer span.End()
	span.SetAttributes(attribute.String("jurisdiction", jurisdiction))

	a := r.analyze(ctx, description, jurisdiction)

	ev := trial.Evidence{
		CaseDescription:  description,
		Jurisdiction:     jurisdiction,
		EvidenceStrength: trial.EvidenceModerate,
		VenueBias:        trial.VenueNeutral,
		Statutes:         []trial.Statute{},
		Precedents:       []trial.Precedent{},
		Facts:            clean(a.KeyFacts, maxFacts),
		PlaintiffClaims:  clean(a.PlaintiffClaims, 0),
		DefendantClaims:  clean(a.DefendantClaims, 0),
		DisputedFacts:    clean(a.DisputedFacts, 0),
	}
	if a.HasNDA != nil {
		ev.HasNDA = *a.HasNDA
	}
	if s, err := trial.ParseEvidenceStrength(a.EvidenceStrength); err == nil {
		ev.EvidenceStrength = s
	}
	if v, err := trial.ParseVenueBias(a.VenueBias); err == nil {
		ev.VenueBias = v
	}

	issues := clean(a.LegalIssues, 0)
	if found := r.statutes.Find(ctx, issues); len(found) > 0 {
		ev.Statutes = found
	}
	if found := r.precedents.Find(ctx, issues, jurisdiction); len(found) > 0 {
		ev.Precedents = found
	}

	span.SetAttributes(
		attribute.Int("statutes", len(ev.Statutes)),
		attribute.Int("precedents", len(ev.Precedents)),
		attribute.Bool("has_nda", ev.HasNDA),
	)
	r.logger.Info("evidence gathered",
		"jurisdiction", jurisdiction,
		"statutes", len(ev.Statutes),
		"precedents", len(ev.Precedents),
		"facts", len(ev.Facts),
		"has_nda", ev.HasNDA,
		"evidence_strength", ev.EvidenceStrength,
	)
	return ev
}

func (r *Researcher) analyze(ctx context.Context, description, jurisdiction string) caseAnalysis {
	var a caseAnalysis
	text, err := r.prompts.Render(prompt.PromptIDs.CaseAnalysis, map[string]interface{}{
		"Description":  description,
		"Jurisdiction": jurisdiction,
	})
	if err != nil {
		r.logger.Error("case analysis prompt", "error", err)
		return a
	}
	raw, err := r.analysis.Generate(ctx, text, completion.ShapeJSON)
	if err != nil {
		r.logger.Warn("case analysis failed", "error", err)
		return a
	}
	if stage := completion.Decode(raw, &a); !stage.Structured() {
		r.logger.Warn("case analysis unparseable", "stage", stage.String())
	}
	return a
}

// clean drops blank entries and caps the list at limit when limit > 0.
func clean(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
