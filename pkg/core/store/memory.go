package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps documents in process. Documents are copied on the way in
// and out so callers never share state with the store.
type Memory struct {
	mu          sync.RWMutex
	simulations map[string]SimulationDocument
	research    map[string]ResearchDocument
	now         func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		simulations: map[string]SimulationDocument{},
		research:    map[string]ResearchDocument{},
		now:         time.Now,
	}
}

func (m *Memory) SaveSimulation(ctx context.Context, doc *SimulationDocument) (string, error) {
	cp, err := deepCopy(doc)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	cp.UpdatedAt = m.now()
	m.simulations[cp.ID] = *cp
	doc.ID = cp.ID
	return cp.ID, nil
}

func (m *Memory) GetSimulation(ctx context.Context, id string) (*SimulationDocument, error) {
	m.mu.RLock()
	d, ok := m.simulations[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(&d)
}

func (m *Memory) SimulationsByCase(ctx context.Context, caseID string) ([]SimulationDocument, error) {
	return m.searchSimulations(func(d *SimulationDocument) bool { return d.CaseID == caseID }, 0)
}

func (m *Memory) SearchSimulations(ctx context.Context, f SimulationFilter) ([]SimulationDocument, error) {
	return m.searchSimulations(f.Match, NormalizeLimit(f.Limit))
}

func (m *Memory) searchSimulations(match func(*SimulationDocument) bool, limit int) ([]SimulationDocument, error) {
	m.mu.RLock()
	out := []SimulationDocument{}
	for _, d := range m.simulations {
		if match(&d) {
			cp, err := deepCopy(&d)
			if err != nil {
				m.mu.RUnlock()
				return nil, err
			}
			out = append(out, *cp)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteSimulation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.simulations[id]; !ok {
		return ErrNotFound
	}
	delete(m.simulations, id)
	for rid, r := range m.research {
		kept := r.SimulationIDs[:0:0]
		for _, sid := range r.SimulationIDs {
			if sid != id {
				kept = append(kept, sid)
			}
		}
		r.SimulationIDs = kept
		m.research[rid] = r
	}
	return nil
}

func (m *Memory) SaveResearch(ctx context.Context, doc *ResearchDocument) (string, error) {
	cp, err := deepCopy(doc)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	cp.UpdatedAt = m.now()
	m.research[cp.ID] = *cp
	doc.ID = cp.ID
	return cp.ID, nil
}

func (m *Memory) GetResearch(ctx context.Context, id string) (*ResearchDocument, error) {
	m.mu.RLock()
	d, ok := m.research[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(&d)
}

func (m *Memory) SearchResearch(ctx context.Context, f ResearchFilter) ([]ResearchDocument, error) {
	return m.searchResearch(f.Match, NormalizeLimit(f.Limit))
}

func (m *Memory) searchResearch(match func(*ResearchDocument) bool, limit int) ([]ResearchDocument, error) {
	m.mu.RLock()
	out := []ResearchDocument{}
	for _, d := range m.research {
		if match(&d) {
			cp, err := deepCopy(&d)
			if err != nil {
				m.mu.RUnlock()
				return nil, err
			}
			out = append(out, *cp)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) FindMonteCarlo(ctx context.Context, monteCarloID string) (*ResearchDocument, error) {
	found, err := m.searchResearch(func(d *ResearchDocument) bool {
		id, _ := d.Metadata["monte_carlo_id"].(string)
		return id == monteCarloID
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (m *Memory) LinkSimulation(ctx context.Context, researchID, simulationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.research[researchID]
	if !ok {
		return ErrNotFound
	}
	if !contains(r.SimulationIDs, simulationID) {
		r.SimulationIDs = append(append([]string(nil), r.SimulationIDs...), simulationID)
	}
	r.UpdatedAt = m.now()
	m.research[researchID] = r
	return nil
}

func (m *Memory) Statistics(ctx context.Context) (Statistics, error) {
	st := newStatistics()
	m.mu.RLock()
	defer m.mu.RUnlock()
	st.TotalSimulations = int64(len(m.simulations))
	st.TotalResearch = int64(len(m.research))
	for _, d := range m.simulations {
		st.SimulationsByStatus[string(d.Status)]++
	}
	for _, d := range m.research {
		st.ResearchByStatus[string(d.Status)]++
	}
	return st, nil
}

func (m *Memory) CaseSummary(ctx context.Context, caseID string) (CaseSummary, error) {
	sims, err := m.SimulationsByCase(ctx, caseID)
	if err != nil {
		return CaseSummary{}, err
	}
	research, err := m.searchResearch(func(d *ResearchDocument) bool { return d.CaseID == caseID }, 0)
	if err != nil {
		return CaseSummary{}, err
	}
	return BuildCaseSummary(caseID, sims, research), nil
}

func (m *Memory) Ping(ctx context.Context) error  { return nil }
func (m *Memory) Close(ctx context.Context) error { return nil }

// deepCopy round-trips through JSON, the same representation the other
// backends persist, so metadata comes back with the same value types.
func deepCopy[T any](in *T) (*T, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &out, nil
}
