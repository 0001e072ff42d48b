package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
)

// ExtractionResult is everything one processed email produced.
type ExtractionResult struct {
	Email  *entity.Email
	Ships  []*entity.Ship
	Cargos []*entity.Cargo
	Failed []entity.FailedEntry
}

// CommitExtraction persists one email's extraction output: ships, cargos,
// failed entries, the audit bundle, and finally the email update. The
// email's extraction timestamp is written last and is the commit point; a
// crash before it leaves the email eligible for re-extraction, and the
// duplicate-tolerant downstream absorbs the replay.
func (s *Store) CommitExtraction(ctx context.Context, res *ExtractionResult) error {
	now := time.Now().UTC()

	shipIDs := make([]primitive.ObjectID, 0, len(res.Ships))
	if len(res.Ships) > 0 {
		docs := make([]interface{}, 0, len(res.Ships))
		for _, sh := range res.Ships {
			docs = append(docs, sh)
		}
		ins, err := s.ships.InsertMany(ctx, docs)
		if err != nil {
			return fmt.Errorf("inserting ships: %w", err)
		}
		for i, raw := range ins.InsertedIDs {
			if id, ok := raw.(primitive.ObjectID); ok {
				res.Ships[i].ID = id
				shipIDs = append(shipIDs, id)
			}
		}
	}

	cargoIDs := make([]primitive.ObjectID, 0, len(res.Cargos))
	if len(res.Cargos) > 0 {
		docs := make([]interface{}, 0, len(res.Cargos))
		for _, c := range res.Cargos {
			docs = append(docs, c)
		}
		ins, err := s.cargos.InsertMany(ctx, docs)
		if err != nil {
			return fmt.Errorf("inserting cargos: %w", err)
		}
		for i, raw := range ins.InsertedIDs {
			if id, ok := raw.(primitive.ObjectID); ok {
				res.Cargos[i].ID = id
				cargoIDs = append(cargoIDs, id)
			}
		}
	}

	if len(res.Failed) > 0 {
		docs := make([]interface{}, 0, len(res.Failed))
		for i := range res.Failed {
			res.Failed[i].TimestampCreated = now
			docs = append(docs, res.Failed[i])
		}
		if _, err := s.failed.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("inserting failed entries: %w", err)
		}
	}

	bundle := buildBundle(res, now)
	if _, err := s.extractions.InsertOne(ctx, bundle); err != nil {
		return fmt.Errorf("inserting extraction bundle: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"extracted_ship_ids":           shipIDs,
		"extracted_cargo_ids":          cargoIDs,
		"timestamp_entities_extracted": now,
	}}
	if _, err := s.emails.UpdateByID(ctx, res.Email.ID, update); err != nil {
		return fmt.Errorf("marking email extracted: %w", err)
	}
	res.Email.ExtractedShipIDs = shipIDs
	res.Email.ExtractedCargoIDs = cargoIDs
	res.Email.TimestampEntitiesExtracted = &now
	return nil
}

func buildBundle(res *ExtractionResult, now time.Time) *entity.ExtractionBundle {
	entities := make([]entity.BundleEntity, 0, len(res.Ships)+len(res.Cargos))
	for _, sh := range res.Ships {
		entities = append(entities, entity.BundleEntity{Type: "ship", Ship: sh})
	}
	for _, c := range res.Cargos {
		entities = append(entities, entity.BundleEntity{Type: "cargo", Cargo: c})
	}
	return &entity.ExtractionBundle{
		Email:            *res.Email,
		Entities:         entities,
		FailedEntries:    res.Failed,
		TimestampCreated: now,
	}
}
