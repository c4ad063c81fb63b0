package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrUnavailable = errors.New("document store unavailable")
)

// Store is the persistence surface used by the Monte Carlo recorder and
// the HTTP API. A nil Store means persistence is not configured.
type Store interface {
	SaveSimulation(ctx context.Context, doc *SimulationDocument) (string, error)
	GetSimulation(ctx context.Context, id string) (*SimulationDocument, error)
	SimulationsByCase(ctx context.Context, caseID string) ([]SimulationDocument, error)
	SearchSimulations(ctx context.Context, f SimulationFilter) ([]SimulationDocument, error)
	DeleteSimulation(ctx context.Context, id string) error

	SaveResearch(ctx context.Context, doc *ResearchDocument) (string, error)
	GetResearch(ctx context.Context, id string) (*ResearchDocument, error)
	SearchResearch(ctx context.Context, f ResearchFilter) ([]ResearchDocument, error)
	FindMonteCarlo(ctx context.Context, monteCarloID string) (*ResearchDocument, error)
	LinkSimulation(ctx context.Context, researchID, simulationID string) error

	Statistics(ctx context.Context) (Statistics, error)
	CaseSummary(ctx context.Context, caseID string) (CaseSummary, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Backend     string // mongo, postgres, memory, none
	MongoURI    string
	MongoDB     string
	DatabaseURL string
}

// Open connects to the configured backend. Backend "none" or "" returns a
// nil Store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "mongo", "mongodb":
		m, err := NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "postgres":
		p, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
