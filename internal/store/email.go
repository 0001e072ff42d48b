package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/chartermatch/internal/entity"
)

// duplicateEmailFilter matches any stored email sharing the provider message
// id or the exact body. Empty fields contribute no clause, so two messages
// with missing ids never collide on the blank value.
func duplicateEmailFilter(e *entity.Email) bson.M {
	var or []bson.M
	if e.ProviderMessageID != "" {
		or = append(or, bson.M{"provider_message_id": e.ProviderMessageID})
	}
	if e.Body != "" {
		or = append(or, bson.M{"body": e.Body})
	}
	if len(or) == 0 {
		return nil
	}
	return bson.M{"$or": or}
}

// FindDuplicateEmail reports whether e is already stored, by provider
// message id or by identical body.
func (s *Store) FindDuplicateEmail(ctx context.Context, e *entity.Email) (bool, error) {
	filter := duplicateEmailFilter(e)
	if filter == nil {
		return false, nil
	}
	err := s.emails.FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing for duplicate email: %w", err)
	}
	return true, nil
}

// InsertEmail stores a new email and fills in its id.
func (s *Store) InsertEmail(ctx context.Context, e *entity.Email) error {
	res, err := s.emails.InsertOne(ctx, e)
	if err != nil {
		return fmt.Errorf("inserting email: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		e.ID = id
	}
	return nil
}

// UnextractedEmails returns stored emails whose entities were never
// extracted (the extraction timestamp is the commit marker), oldest first.
func (s *Store) UnextractedEmails(ctx context.Context, limit int) ([]*entity.Email, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp_added_to_db", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.emails.Find(ctx, bson.M{"timestamp_entities_extracted": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying unextracted emails: %w", err)
	}
	var out []*entity.Email
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding unextracted emails: %w", err)
	}
	return out, nil
}

// WatchEmailInserts tails the email collection's change stream and invokes
// fn with every freshly inserted document. Blocks until ctx is canceled or
// the stream breaks.
func (s *Store) WatchEmailInserts(ctx context.Context, fn func(*entity.Email)) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
	stream, err := s.emails.Watch(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("opening email change stream: %w", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var ev struct {
			FullDocument entity.Email `bson:"fullDocument"`
		}
		if err := stream.Decode(&ev); err != nil {
			return fmt.Errorf("decoding change stream event: %w", err)
		}
		doc := ev.FullDocument
		fn(&doc)
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("email change stream: %w", err)
	}
	return ctx.Err()
}
