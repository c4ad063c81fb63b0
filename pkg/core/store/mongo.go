package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultMongoDatabase = "legal_agent_system"

// Mongo stores documents in the case_simulations and case_research
// collections. Ids are ObjectID hex strings.
type Mongo struct {
	client      *mongo.Client
	simulations *mongo.Collection
	research    *mongo.Collection
}

var _ Store = (*Mongo)(nil)

func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: MONGODB_CONNECTION_STRING not set", ErrUnavailable)
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:      client,
		simulations: db.Collection(SimulationsCollection),
		research:    db.Collection(ResearchCollection),
	}
	if err := m.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) createIndexes(ctx context.Context) error {
	asc := func(field string) mongo.IndexModel { return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}} }
	desc := func(field string) mongo.IndexModel { return mongo.IndexModel{Keys: bson.D{{Key: field, Value: -1}}} }

	if _, err := m.simulations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		asc("case_id"), asc("case_name"), asc("status"), desc("created_at"), asc("agents_involved"),
		asc("metadata.monte_carlo_id"),
	}); err != nil {
		return fmt.Errorf("failed to create simulation indexes: %w", err)
	}
	if _, err := m.research.Indexes().CreateMany(ctx, []mongo.IndexModel{
		asc("case_id"), asc("status"), desc("created_at"), asc("tags"), asc("simulation_ids"),
		asc("metadata.monte_carlo_id"),
	}); err != nil {
		return fmt.Errorf("failed to create research indexes: %w", err)
	}
	return nil
}

// upsert replaces the document with the given id, inserting it when absent.
func upsert(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) SaveSimulation(ctx context.Context, doc *SimulationDocument) (string, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if err := upsert(ctx, m.simulations, doc.ID, doc); err != nil {
		return "", fmt.Errorf("failed to save simulation: %w", err)
	}
	return doc.ID, nil
}

func (m *Mongo) GetSimulation(ctx context.Context, id string) (*SimulationDocument, error) {
	var doc SimulationDocument
	if err := m.simulations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load simulation: %w", err)
	}
	return &doc, nil
}

func (m *Mongo) SimulationsByCase(ctx context.Context, caseID string) ([]SimulationDocument, error) {
	return findAll[SimulationDocument](ctx, m.simulations, bson.M{"case_id": caseID}, 0)
}

func (m *Mongo) SearchSimulations(ctx context.Context, f SimulationFilter) ([]SimulationDocument, error) {
	q := bson.M{}
	if f.CaseName != "" {
		q["case_name"] = bson.M{"$regex": regexp.QuoteMeta(f.CaseName), "$options": "i"}
	}
	if f.Agent != "" {
		q["agents_involved"] = f.Agent
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Type != "" {
		q["simulation_type"] = f.Type
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		created := bson.M{}
		if !f.From.IsZero() {
			created["$gte"] = f.From
		}
		if !f.To.IsZero() {
			created["$lte"] = f.To
		}
		q["created_at"] = created
	}
	return findAll[SimulationDocument](ctx, m.simulations, q, NormalizeLimit(f.Limit))
}

func (m *Mongo) DeleteSimulation(ctx context.Context, id string) error {
	res, err := m.simulations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = m.research.UpdateMany(ctx,
		bson.M{"simulation_ids": id},
		bson.M{"$pull": bson.M{"simulation_ids": id}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to unlink simulation: %w", err)
	}
	return nil
}

func (m *Mongo) SaveResearch(ctx context.Context, doc *ResearchDocument) (string, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.SimulationIDs == nil {
		doc.SimulationIDs = []string{}
	}
	if err := upsert(ctx, m.research, doc.ID, doc); err != nil {
		return "", fmt.Errorf("failed to save research: %w", err)
	}
	return doc.ID, nil
}

func (m *Mongo) GetResearch(ctx context.Context, id string) (*ResearchDocument, error) {
	var doc ResearchDocument
	if err := m.research.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load research: %w", err)
	}
	return &doc, nil
}

func (m *Mongo) SearchResearch(ctx context.Context, f ResearchFilter) ([]ResearchDocument, error) {
	q := bson.M{}
	if f.Topic != "" {
		q["research_topic"] = bson.M{"$regex": regexp.QuoteMeta(f.Topic), "$options": "i"}
	}
	if f.CaseID != "" {
		q["case_id"] = f.CaseID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Tag != "" {
		q["tags"] = f.Tag
	}
	return findAll[ResearchDocument](ctx, m.research, q, NormalizeLimit(f.Limit))
}

func (m *Mongo) FindMonteCarlo(ctx context.Context, monteCarloID string) (*ResearchDocument, error) {
	found, err := findAll[ResearchDocument](ctx, m.research, bson.M{"metadata.monte_carlo_id": monteCarloID}, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (m *Mongo) LinkSimulation(ctx context.Context, researchID, simulationID string) error {
	res, err := m.research.UpdateOne(ctx,
		bson.M{"_id": researchID},
		bson.M{"$addToSet": bson.M{"simulation_ids": simulationID}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to link simulation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Statistics(ctx context.Context) (Statistics, error) {
	st := newStatistics()
	var err error
	if st.TotalSimulations, err = m.simulations.CountDocuments(ctx, bson.M{}); err != nil {
		return st, fmt.Errorf("failed to count simulations: %w", err)
	}
	if st.TotalResearch, err = m.research.CountDocuments(ctx, bson.M{}); err != nil {
		return st, fmt.Errorf("failed to count research: %w", err)
	}
	for _, s := range SimulationStatuses {
		if st.SimulationsByStatus[string(s)], err = m.simulations.CountDocuments(ctx, bson.M{"status": s}); err != nil {
			return st, fmt.Errorf("failed to count simulations: %w", err)
		}
	}
	for _, s := range ResearchStatuses {
		if st.ResearchByStatus[string(s)], err = m.research.CountDocuments(ctx, bson.M{"status": s}); err != nil {
			return st, fmt.Errorf("failed to count research: %w", err)
		}
	}
	return st, nil
}

func (m *Mongo) CaseSummary(ctx context.Context, caseID string) (CaseSummary, error) {
	sims, err := m.SimulationsByCase(ctx, caseID)
	if err != nil {
		return CaseSummary{}, err
	}
	research, err := findAll[ResearchDocument](ctx, m.research, bson.M{"case_id": caseID}, 0)
	if err != nil {
		return CaseSummary{}, err
	}
	return BuildCaseSummary(caseID, sims, research), nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// findAll runs q newest first. limit 0 means no limit.
func findAll[T any](ctx context.Context, coll *mongo.Collection, q bson.M, limit int) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

// AsMap returns a nested metadata document as a plain map, whichever
// backend decoded it.
func AsMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case primitive.M:
		return m
	}
	return nil
}
