// Package store is the mongo-backed document store shared by every pipeline
// stage: raw emails, extracted ships and cargos, failed extraction entries,
// per-email extraction bundles and the geocoder cache.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ignite/chartermatch/internal/pkg/logger"
)

// Collection names.
const (
	CollEmails         = "emails"
	CollShips          = "ships"
	CollCargos         = "cargos"
	CollFailedEntries  = "failed_entries"
	CollExtractions    = "extractions"
	CollKnownLocations = "known_locations"
)

// Store wraps the mongo client and the six collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	emails      *mongo.Collection
	ships       *mongo.Collection
	cargos      *mongo.Collection
	failed      *mongo.Collection
	extractions *mongo.Collection
	locations   *mongo.Collection
}

// Connect dials mongo, pings it and returns the bound store. The caller owns
// Close.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:      client,
		db:          db,
		emails:      db.Collection(CollEmails),
		ships:       db.Collection(CollShips),
		cargos:      db.Collection(CollCargos),
		failed:      db.Collection(CollFailedEntries),
		extractions: db.Collection(CollExtractions),
		locations:   db.Collection(CollKnownLocations),
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the startup index set: the unique geocoder-cache
// name index and the three 2dsphere indexes the matching queries need.
// Creation is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := true
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.locations, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: &options.IndexOptions{Unique: &unique},
		}},
		{s.ships, mongo.IndexModel{
			Keys: bson.D{{Key: "location_geocoded.location", Value: "2dsphere"}},
		}},
		{s.cargos, mongo.IndexModel{
			Keys: bson.D{{Key: "location_from_geocoded.location", Value: "2dsphere"}},
		}},
		{s.cargos, mongo.IndexModel{
			Keys: bson.D{{Key: "location_to_geocoded.location", Value: "2dsphere"}},
		}},
	}
	for _, spec := range specs {
		name, err := spec.coll.Indexes().CreateOne(ctx, spec.model)
		if err != nil {
			return fmt.Errorf("creating index on %s: %w", spec.coll.Name(), err)
		}
		logger.Debug("index ensured", "collection", spec.coll.Name(), "index", name)
	}
	return nil
}

// Counts returns per-collection document counts, used by the health
// endpoint and the index bootstrap tool.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, 6)
	for _, coll := range []*mongo.Collection{
		s.emails, s.ships, s.cargos, s.failed, s.extractions, s.locations,
	} {
		n, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", coll.Name(), err)
		}
		out[coll.Name()] = n
	}
	return out, nil
}
