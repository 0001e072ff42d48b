package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignite/chartermatch/internal/entity"
)

// GetKnownLocation looks a place name up in the geocoder cache. A miss
// returns (nil, nil).
func (s *Store) GetKnownLocation(ctx context.Context, name string) (*entity.KnownLocation, error) {
	var loc entity.KnownLocation
	err := s.locations.FindOne(ctx, bson.M{"name": name}).Decode(&loc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading known location %q: %w", name, err)
	}
	return &loc, nil
}

// PutKnownLocation caches a geocoding result. Concurrent writers racing on
// the same name are resolved by the unique index; the loser's duplicate is
// discarded silently.
func (s *Store) PutKnownLocation(ctx context.Context, loc *entity.KnownLocation) error {
	_, err := s.locations.InsertOne(ctx, loc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("caching known location %q: %w", loc.Name, err)
	}
	return nil
}
