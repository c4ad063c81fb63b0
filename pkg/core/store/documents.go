// Package store persists simulation transcripts and research documents.
// Backends only serialize; all domain logic lives in the callers.
package store

import (
	"strings"
	"time"
)

const (
	SimulationsCollection = "case_simulations"
	ResearchCollection    = "case_research"
)

type SimulationStatus string

const (
	SimulationPending    SimulationStatus = "pending"
	SimulationInProgress SimulationStatus = "in_progress"
	SimulationCompleted  SimulationStatus = "completed"
	SimulationFailed     SimulationStatus = "failed"
	SimulationPaused     SimulationStatus = "paused"
)

var SimulationStatuses = []SimulationStatus{
	SimulationPending, SimulationInProgress, SimulationCompleted, SimulationFailed, SimulationPaused,
}

type ResearchStatus string

const (
	ResearchDraft     ResearchStatus = "draft"
	ResearchActive    ResearchStatus = "active"
	ResearchCompleted ResearchStatus = "completed"
	ResearchArchived  ResearchStatus = "archived"
)

var ResearchStatuses = []ResearchStatus{ResearchDraft, ResearchActive, ResearchCompleted, ResearchArchived}

// AgentMessage is one entry of a simulation's chat history.
type AgentMessage struct {
	AgentName string                 `json:"agent_name" bson:"agent_name"`
	Role      string                 `json:"role" bson:"role"`
	Content   string                 `json:"content" bson:"content"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// SimulationDocument is one trial transcript in case_simulations.
type SimulationDocument struct {
	ID             string                 `json:"id,omitempty" bson:"_id,omitempty"`
	CaseID         string                 `json:"case_id" bson:"case_id"`
	CaseName       string                 `json:"case_name" bson:"case_name"`
	SimulationType string                 `json:"simulation_type" bson:"simulation_type"`
	Agents         []string               `json:"agents_involved" bson:"agents_involved"`
	ChatHistory    []AgentMessage         `json:"chat_history" bson:"chat_history"`
	Status         SimulationStatus       `json:"status" bson:"status"`
	CreatedAt      time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" bson:"updated_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Outcome        string                 `json:"outcome,omitempty" bson:"outcome,omitempty"`
	Summary        string                 `json:"summary,omitempty" bson:"summary,omitempty"`
}

// ResearchDocument is a research entry in case_research. Monte Carlo runs
// are recorded as research documents linking their simulations.
type ResearchDocument struct {
	ID            string                   `json:"id,omitempty" bson:"_id,omitempty"`
	CaseID        string                   `json:"case_id" bson:"case_id"`
	CaseName      string                   `json:"case_name" bson:"case_name"`
	Topic         string                   `json:"research_topic" bson:"research_topic"`
	Description   string                   `json:"description" bson:"description"`
	KeyFindings   []string                 `json:"key_findings" bson:"key_findings"`
	Precedents    []map[string]interface{} `json:"legal_precedents" bson:"legal_precedents"`
	Statutes      []map[string]interface{} `json:"statutes" bson:"statutes"`
	SimulationIDs []string                 `json:"simulation_ids" bson:"simulation_ids"`
	Status        ResearchStatus           `json:"status" bson:"status"`
	CreatedAt     time.Time                `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at" bson:"updated_at"`
	Metadata      map[string]interface{}   `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Tags          []string                 `json:"tags" bson:"tags"`
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
)

// SimulationFilter narrows SearchSimulations. Zero values match everything.
type SimulationFilter struct {
	CaseName string // case-insensitive partial match
	Agent    string
	Status   SimulationStatus
	Type     string
	From     time.Time
	To       time.Time
	Limit    int
}

// ResearchFilter narrows SearchResearch. Zero values match everything.
type ResearchFilter struct {
	Topic  string // case-insensitive partial match
	CaseID string
	Status ResearchStatus
	Tag    string
	Limit  int
}

// NormalizeLimit applies the default and the cap.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

func (f SimulationFilter) Match(d *SimulationDocument) bool {
	if f.CaseName != "" && !containsFold(d.CaseName, f.CaseName) {
		return false
	}
	if f.Agent != "" && !contains(d.Agents, f.Agent) {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Type != "" && d.SimulationType != f.Type {
		return false
	}
	if !f.From.IsZero() && d.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && d.CreatedAt.After(f.To) {
		return false
	}
	return true
}

func (f ResearchFilter) Match(d *ResearchDocument) bool {
	if f.Topic != "" && !containsFold(d.Topic, f.Topic) {
		return false
	}
	if f.CaseID != "" && d.CaseID != f.CaseID {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Tag != "" && !contains(d.Tags, f.Tag) {
		return false
	}
	return true
}

// Statistics counts documents overall and per status.
type Statistics struct {
	TotalSimulations    int64            `json:"total_simulations"`
	TotalResearch       int64            `json:"total_research_entries"`
	SimulationsByStatus map[string]int64 `json:"simulations_by_status"`
	ResearchByStatus    map[string]int64 `json:"research_by_status"`
}

// CaseSimulationSummary is one line of a CaseSummary.
type CaseSimulationSummary struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Status       SimulationStatus `json:"status"`
	Agents       []string         `json:"agents"`
	MessageCount int              `json:"message_count"`
	CreatedAt    time.Time        `json:"created_at"`
}

type CaseResearchSummary struct {
	ID                string         `json:"id"`
	Topic             string         `json:"topic"`
	Status            ResearchStatus `json:"status"`
	LinkedSimulations int            `json:"linked_simulations"`
	CreatedAt         time.Time      `json:"created_at"`
}

// CaseSummary aggregates every document of one case.
type CaseSummary struct {
	CaseID           string                  `json:"case_id"`
	TotalSimulations int                     `json:"total_simulations"`
	TotalResearch    int                     `json:"total_research_entries"`
	SimulationTypes  []string                `json:"simulation_types"`
	Agents           []string                `json:"agents_involved"`
	ResearchTopics   []string                `json:"research_topics"`
	TotalMessages    int                     `json:"total_messages"`
	Simulations      []CaseSimulationSummary `json:"simulations"`
	Research         []CaseResearchSummary   `json:"research"`
}

// BuildCaseSummary aggregates documents already loaded for one case.
// Types and agents keep first-seen order.
func BuildCaseSummary(caseID string, sims []SimulationDocument, research []ResearchDocument) CaseSummary {
	s := CaseSummary{
		CaseID:           caseID,
		TotalSimulations: len(sims),
		TotalResearch:    len(research),
		SimulationTypes:  []string{},
		Agents:           []string{},
		ResearchTopics:   []string{},
		Simulations:      []CaseSimulationSummary{},
		Research:         []CaseResearchSummary{},
	}
	for _, d := range sims {
		if !contains(s.SimulationTypes, d.SimulationType) {
			s.SimulationTypes = append(s.SimulationTypes, d.SimulationType)
		}
		for _, a := range d.Agents {
			if !contains(s.Agents, a) {
				s.Agents = append(s.Agents, a)
			}
		}
		s.TotalMessages += len(d.ChatHistory)
		s.Simulations = append(s.Simulations, CaseSimulationSummary{
			ID:           d.ID,
			Type:         d.SimulationType,
			Status:       d.Status,
			Agents:       d.Agents,
			MessageCount: len(d.ChatHistory),
			CreatedAt:    d.CreatedAt,
		})
	}
	for _, r := range research {
		s.ResearchTopics = append(s.ResearchTopics, r.Topic)
		s.Research = append(s.Research, CaseResearchSummary{
			ID:                r.ID,
			Topic:             r.Topic,
			Status:            r.Status,
			LinkedSimulations: len(r.SimulationIDs),
			CreatedAt:         r.CreatedAt,
		})
	}
	return s
}

func newStatistics() Statistics {
	st := Statistics{
		SimulationsByStatus: map[string]int64{},
		ResearchByStatus:    map[string]int64{},
	}
	for _, s := range SimulationStatuses {
		st.SimulationsByStatus[string(s)] = 0
	}
	for _, s := range ResearchStatuses {
		st.ResearchByStatus[string(s)] = 0
	}
	return st
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
