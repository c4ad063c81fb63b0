// Package simulation exposes trial runs and stored transcripts over HTTP.
package simulation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"legal_simulation/pkg/core/export"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/montecarlo"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/store"
	"legal_simulation/pkg/core/trial"
)

const (
	defaultJurisdiction   = "Federal"
	defaultMaxSimulations = 10
	defaultExchanges      = 3
	maxExchanges          = 10

	ModeStandard = "standard"
	ModeExtended = "extended"
)

// Deps are the collaborators of the simulation endpoints. Store and
// Reports may be nil.
type Deps struct {
	Source         trial.ServiceSource
	Prompts        *prompt.Registry
	Research       montecarlo.EvidenceSource
	Store          store.Store
	Reports        export.Storage
	MaxSimulations int
	Parallelism    int
	TrialTimeout   time.Duration
}

// Handler holds dependencies for simulation endpoints
type Handler struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(deps Deps) *Handler {
	if deps.MaxSimulations <= 0 {
		deps.MaxSimulations = defaultMaxSimulations
	}
	if deps.Prompts == nil {
		deps.Prompts = prompt.Defaults()
	}
	return &Handler{deps: deps, logger: logging.New("api.simulation"), now: time.Now}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/run-simulation", h.HandleRunSimulation)
	mux.HandleFunc("/api/simulations", h.HandleListSimulations)
	mux.HandleFunc("/api/simulation/{id}", h.HandleGetSimulation)
	mux.HandleFunc("/api/simulation/{id}/stream", h.HandleStreamSimulation)
	mux.HandleFunc("/api/monte-carlo/{id}", h.HandleGetMonteCarlo)
	mux.HandleFunc("/api/case/{id}", h.HandleGetCase)
	mux.HandleFunc("/api/statistics", h.HandleStatistics)
}

// RunRequest is the body of POST /api/run-simulation. Empty fields take
// the defaults of a moderate, balanced case with an NDA.
type RunRequest struct {
	CaseDescription    string `json:"case_description"`
	Jurisdiction       string `json:"jurisdiction"`
	NumSimulations     int    `json:"num_simulations"`
	ProsecutorStrategy string `json:"prosecutor_strategy"`
	DefenseStrategy    string `json:"defense_strategy"`
	JudgeTemperament   string `json:"judge_temperament"`
	HasNDA             *bool  `json:"has_nda"`
	EvidenceStrength   string `json:"evidence_strength"`
	VenueBias          string `json:"venue_bias"`
	Mode               string `json:"mode"`
	NumExchanges       int    `json:"num_exchanges"`
}

// Variables applies the request's overrides to the default variables.
func (req RunRequest) Variables() (montecarlo.Variables, error) {
	v := montecarlo.DefaultVariables()
	if req.ProsecutorStrategy != "" {
		v.ProsecutorStrategy = trial.Strategy(req.ProsecutorStrategy)
	}
	if req.DefenseStrategy != "" {
		v.DefenseStrategy = trial.Strategy(req.DefenseStrategy)
	}
	if req.JudgeTemperament != "" {
		v.JudgeTemperament = trial.Temperament(req.JudgeTemperament)
	}
	if req.HasNDA != nil {
		v.HasNDA = *req.HasNDA
	}
	if req.EvidenceStrength != "" {
		v.EvidenceStrength = trial.EvidenceStrength(req.EvidenceStrength)
	}
	if req.VenueBias != "" {
		v.VenueBias = trial.VenueBias(req.VenueBias)
	}
	return v, v.Validate()
}

type SingleResponse struct {
	Status        string  `json:"status"`
	SimulationID  *string `json:"simulation_id"`
	MonteCarloID  string  `json:"monte_carlo_id"`
	Winner        string  `json:"winner"`
	Confidence    float64 `json:"confidence"`
	ExecutionTime float64 `json:"execution_time"`
	Mode          string  `json:"mode"`
}

type MonteCarloResponse struct {
	Status            string   `json:"status"`
	MonteCarloID      string   `json:"monte_carlo_id"`
	MonteCarloDocID   *string  `json:"monte_carlo_doc_id"`
	TotalSimulations  int      `json:"total_simulations"`
	PlaintiffWins     int      `json:"plaintiff_wins"`
	DefenseWins       int      `json:"defense_wins"`
	AverageConfidence float64  `json:"average_confidence"`
	SimulationIDs     []string `json:"simulation_ids"`
	ReportPath        string   `json:"report_path,omitempty"`
}

func (h *Handler) HandleRunSimulation(w http.ResponseWriter, r *http.Request) {
	cors(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CaseDescription) == "" {
		writeError(w, http.StatusBadRequest, "case_description is required")
		return
	}
	vars, err := req.Variables()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeStandard
	}
	if mode != ModeStandard && mode != ModeExtended {
		writeError(w, http.StatusBadRequest, "mode must be standard or extended")
		return
	}
	if req.Jurisdiction == "" {
		req.Jurisdiction = defaultJurisdiction
	}
	if req.NumSimulations < 1 {
		req.NumSimulations = 1
	}

	recorder := montecarlo.NewRecorder(h.deps.Store)
	engine := montecarlo.NewEngine(req.CaseDescription, req.Jurisdiction, h.deps.Source, h.deps.Prompts, h.deps.Research,
		montecarlo.WithRecorder(recorder),
		montecarlo.WithParallelism(h.deps.Parallelism),
		montecarlo.WithTrialTimeout(h.deps.TrialTimeout),
		montecarlo.WithBaseVariables(vars),
	)
	ctx := r.Context()
	engine.Research(ctx)

	if req.NumSimulations == 1 {
		resp := SingleResponse{Status: "success", Mode: mode}
		if mode == ModeExtended {
			exchanges := req.NumExchanges
			if exchanges <= 0 {
				exchanges = defaultExchanges
			}
			exchanges = min(exchanges, maxExchanges)
			rec, err := engine.RunExtended(ctx, vars, trial.ExtendedOptions{Exchanges: exchanges, Procedural: true})
			if err != nil {
				h.logger.Error("extended simulation failed", "error", err)
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			resp.Winner = rec.Verdict.Winner
			resp.Confidence = rec.Verdict.ConfidenceScore
		} else {
			res := engine.RunSingle(ctx, 1, vars)
			resp.Winner = res.Verdict.Winner
			resp.Confidence = res.Verdict.ConfidenceScore
		}
		if results := engine.Results(); len(results) > 0 {
			resp.ExecutionTime = results[0].ExecutionTime
		}
		resp.MonteCarloID = engine.ID()
		if ids := recorder.SimulationIDs(); len(ids) > 0 {
			resp.SimulationID = &ids[0]
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	n := min(req.NumSimulations, h.deps.MaxSimulations)
	a, err := engine.Run(ctx, n, montecarlo.RandomizeOptions{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := MonteCarloResponse{
		Status:            "success",
		MonteCarloID:      engine.ID(),
		TotalSimulations:  a.TotalSimulations,
		PlaintiffWins:     a.PlaintiffWins,
		DefenseWins:       a.DefenseWins,
		AverageConfidence: a.AverageConfidence,
		SimulationIDs:     recorder.SimulationIDs(),
	}
	if id := recorder.ResearchID(); id != "" {
		resp.MonteCarloDocID = &id
	}
	if resp.SimulationIDs == nil {
		resp.SimulationIDs = []string{}
	}
	if h.deps.Reports != nil {
		path, err := engine.SaveReport(ctx, h.deps.Reports)
		if err != nil {
			h.logger.Warn("failed to archive report", "monte_carlo_id", resp.MonteCarloID, "error", err)
		} else {
			resp.ReportPath = path
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SimulationSummary is one entry of GET /api/simulations.
type SimulationSummary struct {
	ID             string                 `json:"id"`
	CaseID         string                 `json:"case_id"`
	CaseName       string                 `json:"case_name"`
	SimulationType string                 `json:"simulation_type"`
	Agents         []string               `json:"agents_involved"`
	Status         store.SimulationStatus `json:"status"`
	CreatedAt      time.Time              `json:"created_at"`
	Outcome        string                 `json:"outcome"`
	Summary        string                 `json:"summary"`
	MessageCount   int                    `json:"message_count"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

func summarize(d store.SimulationDocument) SimulationSummary {
	return SimulationSummary{
		ID:             d.ID,
		CaseID:         d.CaseID,
		CaseName:       d.CaseName,
		SimulationType: d.SimulationType,
		Agents:         d.Agents,
		Status:         d.Status,
		CreatedAt:      d.CreatedAt,
		Outcome:        d.Outcome,
		Summary:        d.Summary,
		MessageCount:   len(d.ChatHistory),
		Metadata:       d.Metadata,
	}
}

func (h *Handler) HandleListSimulations(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	if !h.readable(w, r) {
		return
	}

	q := r.URL.Query()
	f := store.SimulationFilter{
		CaseName: q.Get("case_name"),
		Type:     q.Get("simulation_type"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		f.Limit = limit
	}
	f.Limit = store.NormalizeLimit(f.Limit)
	if status := q.Get("status"); status != "" && status != "all" {
		f.Status = store.SimulationStatus(status)
	}

	docs, err := h.deps.Store.SearchSimulations(r.Context(), f)
	if err != nil {
		h.storeError(w, err)
		return
	}
	out := make([]SimulationSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, summarize(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulations": out,
		"total":       len(out),
	})
}

// Detail is the full transcript returned by GET /api/simulation/{id}.
type Detail struct {
	SimulationSummary
	UpdatedAt time.Time            `json:"updated_at"`
	Messages  []store.AgentMessage `json:"messages"`
}

func (h *Handler) HandleGetSimulation(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	if !h.readable(w, r) {
		return
	}

	doc, err := h.deps.Store.GetSimulation(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	d := Detail{SimulationSummary: summarize(*doc), UpdatedAt: doc.UpdatedAt, Messages: doc.ChatHistory}
	if d.Metadata == nil {
		d.Metadata = map[string]interface{}{}
	}
	if d.Messages == nil {
		d.Messages = []store.AgentMessage{}
	}
	writeJSON(w, http.StatusOK, d)
}

// MonteCarloSimulation is one linked trial in GET /api/monte-carlo/{id}.
type MonteCarloSimulation struct {
	ID               string                 `json:"id"`
	SimulationNumber interface{}            `json:"simulation_number"`
	Outcome          string                 `json:"outcome"`
	Confidence       float64                `json:"confidence"`
	Variables        map[string]interface{} `json:"variables"`
}

type MonteCarloDetail struct {
	MonteCarloID string                 `json:"monte_carlo_id"`
	DocumentID   string                 `json:"document_id"`
	CaseName     string                 `json:"case_name"`
	CreatedAt    time.Time              `json:"created_at"`
	Status       store.ResearchStatus   `json:"status"`
	KeyFindings  []string               `json:"key_findings"`
	Simulations  []MonteCarloSimulation `json:"simulations"`
	Analysis     map[string]interface{} `json:"analysis"`
}

func (h *Handler) HandleGetMonteCarlo(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	if !h.readable(w, r) {
		return
	}

	ctx := r.Context()
	mcID := r.PathValue("id")
	doc, err := h.deps.Store.FindMonteCarlo(ctx, mcID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Monte Carlo run not found")
			return
		}
		h.storeError(w, err)
		return
	}

	out := MonteCarloDetail{
		MonteCarloID: mcID,
		DocumentID:   doc.ID,
		CaseName:     doc.CaseName,
		CreatedAt:    doc.CreatedAt,
		Status:       doc.Status,
		KeyFindings:  doc.KeyFindings,
		Simulations:  []MonteCarloSimulation{},
		Analysis:     map[string]interface{}{},
	}
	if a := store.AsMap(doc.Metadata["analysis"]); a != nil {
		out.Analysis = a
	}
	for _, id := range doc.SimulationIDs {
		sim, err := h.deps.Store.GetSimulation(ctx, id)
		if err != nil {
			h.logger.Warn("linked simulation missing", "monte_carlo_id", mcID, "simulation", id, "error", err)
			continue
		}
		entry := MonteCarloSimulation{
			ID:         sim.ID,
			Outcome:    sim.Outcome,
			Confidence: number(sim.Metadata["confidence"]),
			Variables:  store.AsMap(sim.Metadata["variables"]),
		}
		if n, ok := sim.Metadata["simulation_id"]; ok {
			entry.SimulationNumber = n
		}
		if entry.Variables == nil {
			entry.Variables = map[string]interface{}{}
		}
		out.Simulations = append(out.Simulations, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	if !h.readable(w, r) {
		return
	}

	caseID := r.PathValue("id")
	summary, err := h.deps.Store.CaseSummary(r.Context(), caseID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	if summary.TotalSimulations == 0 && summary.TotalResearch == 0 {
		writeError(w, http.StatusNotFound, "Case not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	if !h.readable(w, r) {
		return
	}

	stats, err := h.deps.Store.Statistics(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	db := "disconnected"
	if h.deps.Store != nil && h.deps.Store.Ping(r.Context()) == nil {
		db = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
		"mongodb":   db,
	})
}

// readable handles preflight, the method check and the store check shared
// by the read endpoints. It reports whether the handler should go on.
func (h *Handler) readable(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	if h.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database connection failed")
		return false
	}
	return true
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Simulation not found")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Database connection failed")
	default:
		h.logger.Error("store request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func cors(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// number reads a numeric metadata value whatever the backend decoded it as.
func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
