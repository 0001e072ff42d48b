package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/chartermatch/internal/entity"
)

// unpairedShipFilter matches ships whose pair list is still the empty
// sentinel. Ships matched to zero cargoes keep the empty list and stay in
// the pool, so they are retried as new cargo arrives.
func unpairedShipFilter() bson.M {
	return bson.M{"pairs_with": bson.M{"$size": 0}}
}

// UnpairedShips returns ships awaiting matching, newest first.
func (s *Store) UnpairedShips(ctx context.Context, limit int) ([]*entity.Ship, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp_created", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.ships.Find(ctx, unpairedShipFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("querying unpaired ships: %w", err)
	}
	var out []*entity.Ship
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding unpaired ships: %w", err)
	}
	return out, nil
}

// SetShipPairs stores the matching result. The update timestamp lands even
// for an empty list, recording that the engine has seen the ship.
func (s *Store) SetShipPairs(ctx context.Context, shipID primitive.ObjectID, cargoIDs []primitive.ObjectID) error {
	if cargoIDs == nil {
		cargoIDs = []primitive.ObjectID{}
	}
	update := bson.M{"$set": bson.M{
		"pairs_with":              cargoIDs,
		"timestamp_pairs_updated": time.Now().UTC(),
	}}
	if _, err := s.ships.UpdateByID(ctx, shipID, update); err != nil {
		return fmt.Errorf("updating ship pairs: %w", err)
	}
	return nil
}
