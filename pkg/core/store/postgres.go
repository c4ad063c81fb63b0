package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps each document as a JSONB blob next to the columns the
// searches filter on.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS case_simulations (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	case_name TEXT NOT NULL,
	simulation_type TEXT NOT NULL,
	status TEXT NOT NULL,
	agents TEXT[] NOT NULL DEFAULT '{}',
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS case_simulations_case_id ON case_simulations (case_id);
CREATE INDEX IF NOT EXISTS case_simulations_created_at ON case_simulations (created_at DESC);

CREATE TABLE IF NOT EXISTS case_research (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	status TEXT NOT NULL,
	tags TEXT[] NOT NULL DEFAULT '{}',
	monte_carlo_id TEXT,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS case_research_case_id ON case_research (case_id);
CREATE INDEX IF NOT EXISTS case_research_monte_carlo_id ON case_research (monte_carlo_id);
`

// NewPostgres opens a pool on databaseURL and creates the tables.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL environment variable not set", ErrUnavailable)
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveSimulation(ctx context.Context, doc *SimulationDocument) (string, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal simulation: %w", err)
	}
	agents := doc.Agents
	if agents == nil {
		agents = []string{}
	}
	query := `
		INSERT INTO case_simulations (id, case_id, case_name, simulation_type, status, agents, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			case_id = EXCLUDED.case_id,
			case_name = EXCLUDED.case_name,
			simulation_type = EXCLUDED.simulation_type,
			status = EXCLUDED.status,
			agents = EXCLUDED.agents,
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at`
	_, err = p.pool.Exec(ctx, query,
		doc.ID, doc.CaseID, doc.CaseName, doc.SimulationType, string(doc.Status), agents, jsonData, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save simulation: %w", err)
	}
	return doc.ID, nil
}

func (p *Postgres) GetSimulation(ctx context.Context, id string) (*SimulationDocument, error) {
	var jsonData []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM case_simulations WHERE id = $1`, id).Scan(&jsonData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load simulation: %w", err)
	}
	var doc SimulationDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulation: %w", err)
	}
	return &doc, nil
}

func (p *Postgres) SimulationsByCase(ctx context.Context, caseID string) ([]SimulationDocument, error) {
	return queryDocs[SimulationDocument](ctx, p.pool,
		`SELECT doc FROM case_simulations WHERE case_id = $1 ORDER BY created_at DESC, id`, caseID)
}

func (p *Postgres) SearchSimulations(ctx context.Context, f SimulationFilter) ([]SimulationDocument, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.CaseName != "" {
		add("case_name ILIKE '%%' || $%d || '%%'", escapeLike(f.CaseName))
	}
	if f.Agent != "" {
		add("$%d = ANY(agents)", f.Agent)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("simulation_type = $%d", f.Type)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	query := "SELECT doc FROM case_simulations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, NormalizeLimit(f.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))
	return queryDocs[SimulationDocument](ctx, p.pool, query, args...)
}

func (p *Postgres) DeleteSimulation(ctx context.Context, id string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM case_simulations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = tx.Exec(ctx, `
		UPDATE case_research
		SET doc = jsonb_set(doc, '{simulation_ids}', COALESCE((
				SELECT jsonb_agg(s) FROM jsonb_array_elements(doc->'simulation_ids') s WHERE s <> to_jsonb($1::text)
			), '[]'::jsonb)),
			updated_at = NOW()
		WHERE doc->'simulation_ids' ? $1`, id)
	if err != nil {
		return fmt.Errorf("failed to unlink simulation: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SaveResearch(ctx context.Context, doc *ResearchDocument) (string, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.SimulationIDs == nil {
		doc.SimulationIDs = []string{}
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal research: %w", err)
	}
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	var mcID *string
	if id, ok := doc.Metadata["monte_carlo_id"].(string); ok {
		mcID = &id
	}
	query := `
		INSERT INTO case_research (id, case_id, topic, status, tags, monte_carlo_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			case_id = EXCLUDED.case_id,
			topic = EXCLUDED.topic,
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			monte_carlo_id = EXCLUDED.monte_carlo_id,
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at`
	_, err = p.pool.Exec(ctx, query,
		doc.ID, doc.CaseID, doc.Topic, string(doc.Status), tags, mcID, jsonData, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save research: %w", err)
	}
	return doc.ID, nil
}

func (p *Postgres) GetResearch(ctx context.Context, id string) (*ResearchDocument, error) {
	var jsonData []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM case_research WHERE id = $1`, id).Scan(&jsonData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load research: %w", err)
	}
	var doc ResearchDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal research: %w", err)
	}
	return &doc, nil
}

func (p *Postgres) SearchResearch(ctx context.Context, f ResearchFilter) ([]ResearchDocument, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Topic != "" {
		add("topic ILIKE '%%' || $%d || '%%'", escapeLike(f.Topic))
	}
	if f.CaseID != "" {
		add("case_id = $%d", f.CaseID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Tag != "" {
		add("$%d = ANY(tags)", f.Tag)
	}

	query := "SELECT doc FROM case_research"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, NormalizeLimit(f.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))
	return queryDocs[ResearchDocument](ctx, p.pool, query, args...)
}

func (p *Postgres) FindMonteCarlo(ctx context.Context, monteCarloID string) (*ResearchDocument, error) {
	found, err := queryDocs[ResearchDocument](ctx, p.pool,
		`SELECT doc FROM case_research WHERE monte_carlo_id = $1 ORDER BY created_at DESC LIMIT 1`, monteCarloID)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (p *Postgres) LinkSimulation(ctx context.Context, researchID, simulationID string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE case_research
		SET doc = CASE
				WHEN doc->'simulation_ids' ? $2 THEN doc
				ELSE jsonb_set(doc, '{simulation_ids}', COALESCE(doc->'simulation_ids', '[]'::jsonb) || to_jsonb($2::text))
			END,
			updated_at = NOW()
		WHERE id = $1`, researchID, simulationID)
	if err != nil {
		return fmt.Errorf("failed to link simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Statistics(ctx context.Context) (Statistics, error) {
	st := newStatistics()
	count := func(table string, into map[string]int64, total *int64) error {
		rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, table))
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var n int64
			if err := rows.Scan(&status, &n); err != nil {
				return fmt.Errorf("failed to scan %s count: %w", table, err)
			}
			into[status] = n
			*total += n
		}
		return rows.Err()
	}
	if err := count("case_simulations", st.SimulationsByStatus, &st.TotalSimulations); err != nil {
		return st, err
	}
	if err := count("case_research", st.ResearchByStatus, &st.TotalResearch); err != nil {
		return st, err
	}
	return st, nil
}

func (p *Postgres) CaseSummary(ctx context.Context, caseID string) (CaseSummary, error) {
	sims, err := p.SimulationsByCase(ctx, caseID)
	if err != nil {
		return CaseSummary{}, err
	}
	research, err := queryDocs[ResearchDocument](ctx, p.pool,
		`SELECT doc FROM case_research WHERE case_id = $1 ORDER BY created_at DESC, id`, caseID)
	if err != nil {
		return CaseSummary{}, err
	}
	return BuildCaseSummary(caseID, sims, research), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

func queryDocs[T any](ctx context.Context, pool *pgxpool.Pool, query string, args ...interface{}) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var jsonData []byte
		if err := rows.Scan(&jsonData); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		var doc T
		if err := json.Unmarshal(jsonData, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
