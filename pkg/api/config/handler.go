package config

import (
	"encoding/json"
	"net/http"

	"legal_simulation/pkg/core/agent"
)

type Response struct {
	ActiveProvider string                       `json:"active_provider"`
	Available      []string                     `json:"available"`
	Agents         map[string]agent.AgentConfig `json:"agents"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", h.HandleConfig)
	mux.HandleFunc("/api/config/switch", h.HandleSwitch)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// CORS for local front ends
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	resp := Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
		Agents:         h.AgentMgr.Agents(),
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
	})
}
