package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/store"
	"legal_simulation/pkg/core/trial"
)

const (
	SimulationTypeTrial    = "monte_carlo_trial"
	SimulationTypeExtended = "enhanced_trial"

	messageSpacing  = 30 * time.Second
	findingsLimit   = 5
	authorityDigest = 200
)

var trialAgents = []string{"Prosecutor", "Defense", "Judge"}

// Recorder mirrors a run into the document store: one research document
// for the run and one simulation document per trial. Store failures are
// logged and never reach the caller. A nil Recorder or one without a store
// does nothing.
type Recorder struct {
	store     store.Store
	logger    *slog.Logger
	ownLogger bool

	mu            sync.Mutex
	monteCarloID  string
	caseID        string
	description   string
	research      *store.ResearchDocument
	simulationIDs map[int]string
}

func NewRecorder(s store.Store) *Recorder {
	return &Recorder{
		store:         s,
		logger:        logging.New("recorder"),
		simulationIDs: map[int]string{},
	}
}

// SetLogger fixes the recorder's logger. Without it the recorder logs
// through the logger of the engine it is attached to.
func (r *Recorder) SetLogger(l *slog.Logger) {
	r.logger = l
	r.ownLogger = true
}

func (r *Recorder) enabled() bool {
	return r != nil && r.store != nil
}

// Begin creates the active research document for a run of planned trials.
func (r *Recorder) Begin(ctx context.Context, monteCarloID, description, jurisdiction string, planned int) {
	if !r.enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.monteCarloID = monteCarloID
	r.caseID = CaseID(monteCarloID)
	r.description = description
	r.simulationIDs = map[int]string{}
	r.research = &store.ResearchDocument{
		CaseID:        r.caseID,
		CaseName:      "Monte Carlo: " + truncate(description, 100),
		Topic:         "Monte Carlo Simulation Analysis",
		Description:   fmt.Sprintf("Monte Carlo simulation with %d trials for: %s", planned, description),
		KeyFindings:   []string{},
		Precedents:    []map[string]interface{}{},
		Statutes:      []map[string]interface{}{},
		SimulationIDs: []string{},
		Status:        store.ResearchActive,
		Tags:          []string{"monte_carlo", "simulation", strings.ToLower(jurisdiction)},
		CreatedAt:     time.Now().UTC(),
		Metadata: map[string]interface{}{
			"monte_carlo_id":        monteCarloID,
			"planned_simulations":   planned,
			"jurisdiction":          jurisdiction,
			"case_description_full": description,
		},
	}
	id, err := r.store.SaveResearch(ctx, r.research)
	if err != nil {
		r.logger.Warn("failed to create monte carlo document", "monte_carlo_id", monteCarloID, "error", err)
		return
	}
	r.research.ID = id
	r.logger.Info("monte carlo document created", "monte_carlo_id", monteCarloID, "id", id)
}

// RecordTrial stores one canonical trial and links it to the run. It
// returns the document id, or "" when nothing was stored.
func (r *Recorder) RecordTrial(ctx context.Context, res Result) string {
	if !r.enabled() {
		return ""
	}
	r.mu.Lock()
	mcID, caseID, desc := r.monteCarloID, r.caseID, r.description
	r.mu.Unlock()

	doc := TrialDocument(mcID, caseID, desc, res)
	return r.save(ctx, res.SimulationID, &doc)
}

// RecordExtended stores an extended trial with its full transcript.
func (r *Recorder) RecordExtended(ctx context.Context, id int, v Variables, rec trial.ExtendedRecord, execTime float64) string {
	if !r.enabled() {
		return ""
	}
	r.mu.Lock()
	mcID, caseID, desc := r.monteCarloID, r.caseID, r.description
	r.mu.Unlock()

	doc := ExtendedDocument(mcID, caseID, desc, id, v, rec, execTime)
	return r.save(ctx, id, &doc)
}

func (r *Recorder) save(ctx context.Context, simID int, doc *store.SimulationDocument) string {
	id, err := r.store.SaveSimulation(ctx, doc)
	if err != nil {
		r.logger.Warn("failed to save simulation", "simulation_id", simID, "error", err)
		return ""
	}

	r.mu.Lock()
	r.simulationIDs[simID] = id
	researchID := ""
	if r.research != nil {
		researchID = r.research.ID
	}
	r.mu.Unlock()

	if researchID != "" {
		if err := r.store.LinkSimulation(ctx, researchID, id); err != nil {
			r.logger.Warn("failed to link simulation", "simulation_id", simID, "research_id", researchID, "error", err)
		}
	}
	return id
}

// Complete marks the run's research document completed and attaches the
// findings, the researched authorities and the analysis.
func (r *Recorder) Complete(ctx context.Context, a Analysis, ev trial.Evidence) {
	if !r.enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.research == nil {
		return
	}

	doc := r.research
	doc.Status = store.ResearchCompleted
	doc.KeyFindings = KeyFindings(a)
	doc.SimulationIDs = r.orderedIDs()
	doc.Precedents = make([]map[string]interface{}, 0, findingsLimit)
	for _, p := range firstN(ev.Precedents, findingsLimit) {
		doc.Precedents = append(doc.Precedents, map[string]interface{}{
			"case_name": p.CaseName,
			"year":      p.Year,
			"citation":  p.Citation,
			"holding":   truncate(p.Holding, authorityDigest),
		})
	}
	doc.Statutes = make([]map[string]interface{}, 0, findingsLimit)
	for _, s := range firstN(ev.Statutes, findingsLimit) {
		doc.Statutes = append(doc.Statutes, map[string]interface{}{
			"title":    s.Title,
			"citation": s.Citation,
			"snippet":  truncate(s.Snippet, authorityDigest),
		})
	}
	doc.Metadata["analysis"] = a
	doc.Metadata["total_simulations"] = a.TotalSimulations
	doc.Metadata["completed_at"] = time.Now().UTC()

	id, err := r.store.SaveResearch(ctx, doc)
	if err != nil {
		r.logger.Warn("failed to complete monte carlo document", "monte_carlo_id", r.monteCarloID, "error", err)
		return
	}
	doc.ID = id
}

// ResearchID is the id of the run's research document, "" if none.
func (r *Recorder) ResearchID() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.research == nil {
		return ""
	}
	return r.research.ID
}

// SimulationIDs lists stored document ids by simulation number.
func (r *Recorder) SimulationIDs() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orderedIDs()
}

func (r *Recorder) orderedIDs() []string {
	keys := make([]int, 0, len(r.simulationIDs))
	for k := range r.simulationIDs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.simulationIDs[k]
	}
	return out
}

// TrialDocument converts a canonical trial into a simulation document.
// Arguments alternate prosecutor and defense 30 seconds apart and the
// verdict closes the transcript.
func TrialDocument(monteCarloID, caseID, description string, res Result) store.SimulationDocument {
	start := res.Timestamp
	offset := time.Duration(0)
	var history []store.AgentMessage

	argMessage := func(agent string, arg trial.LegalArgument, round int) {
		history = append(history, store.AgentMessage{
			AgentName: agent,
			Role:      "assistant",
			Content:   trial.FormatArgument(arg),
			Timestamp: start.Add(offset),
			Metadata: map[string]interface{}{
				"argument_type":    string(arg.Type),
				"cited_statutes":   arg.CitedStatutes,
				"cited_precedents": arg.CitedPrecedents,
				"key_points":       arg.KeyPoints,
				"phase":            fmt.Sprintf("round_%d", round),
			},
		})
		offset += messageSpacing
	}
	rounds := max(len(res.ProsecutorArguments), len(res.DefenseArguments))
	for i := 0; i < rounds; i++ {
		if i < len(res.ProsecutorArguments) {
			argMessage("Prosecutor", res.ProsecutorArguments[i], i+1)
		}
		if i < len(res.DefenseArguments) {
			argMessage("Defense", res.DefenseArguments[i], i+1)
		}
	}

	v := res.Verdict
	history = append(history, store.AgentMessage{
		AgentName: "Judge",
		Role:      "assistant",
		Content:   trial.FormatVerdict(v),
		Timestamp: start.Add(offset),
		Metadata: map[string]interface{}{
			"verdict":           v.Winner,
			"confidence":        v.ConfidenceScore,
			"key_factors":       v.KeyFactors,
			"cited_authorities": v.CitedAuthorities,
			"phase":             "verdict",
		},
	})

	status := store.SimulationCompleted
	meta := map[string]interface{}{
		"monte_carlo_id":         monteCarloID,
		"simulation_id":          res.SimulationID,
		"variables":              res.Variables,
		"confidence":             v.ConfidenceScore,
		"execution_time":         res.ExecutionTime,
		"total_messages":         len(history),
		"trial_duration_seconds": offset.Seconds(),
	}
	if res.Failed() {
		status = store.SimulationFailed
		meta[MetaError] = res.Metadata[MetaError]
	}
	completed := start.Add(offset)
	return store.SimulationDocument{
		CaseID:         caseID,
		CaseName:       fmt.Sprintf("Simulation #%d - %s", res.SimulationID, truncate(description, 50)),
		SimulationType: SimulationTypeTrial,
		Agents:         append([]string(nil), trialAgents...),
		ChatHistory:    history,
		Status:         status,
		CreatedAt:      start,
		CompletedAt:    &completed,
		Metadata:       meta,
		Outcome:        v.Winner,
		Summary:        fmt.Sprintf("Verdict: %s wins with %.1f%% confidence", v.Winner, v.ConfidenceScore*100),
	}
}

// ExtendedDocument converts an extended trial, keeping its transcript as is.
func ExtendedDocument(monteCarloID, caseID, description string, id int, v Variables, rec trial.ExtendedRecord, execTime float64) store.SimulationDocument {
	history := make([]store.AgentMessage, len(rec.Messages))
	agents := []string{}
	seen := map[string]bool{}
	for i, m := range rec.Messages {
		history[i] = store.AgentMessage{
			AgentName: m.AgentName,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Metadata:  m.Metadata,
		}
		if !seen[m.AgentName] {
			seen[m.AgentName] = true
			agents = append(agents, m.AgentName)
		}
	}
	doc := store.SimulationDocument{
		CaseID:         caseID,
		CaseName:       fmt.Sprintf("Extended Trial #%d - %s", id, truncate(description, 50)),
		SimulationType: SimulationTypeExtended,
		Agents:         agents,
		ChatHistory:    history,
		Status:         store.SimulationCompleted,
		Metadata: map[string]interface{}{
			"monte_carlo_id": monteCarloID,
			"simulation_id":  id,
			"variables":      v,
			"confidence":     rec.Verdict.ConfidenceScore,
			"execution_time": execTime,
			"total_messages": len(history),
		},
		Outcome: rec.Verdict.Winner,
		Summary: fmt.Sprintf("Verdict: %s wins with %.1f%% confidence", rec.Verdict.Winner, rec.Verdict.ConfidenceScore*100),
	}
	if n := len(rec.Messages); n > 0 {
		first, last := rec.Messages[0].Timestamp, rec.Messages[n-1].Timestamp
		doc.CreatedAt = first
		doc.CompletedAt = &last
		doc.Metadata["trial_duration_seconds"] = last.Sub(first).Seconds()
	}
	return doc
}

func firstN[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}
