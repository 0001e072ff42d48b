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

// CandidateQuery is the hard filter the matching engine runs against the
// cargo collection for one ship.
type CandidateQuery struct {
	// Capacity is the ship's deadweight; nil drops the quantity band clauses.
	Capacity *int
	// BandLow/BandHigh are the tolerance multipliers: a cargo qualifies when
	// its max quantity covers BandLow×capacity and its min quantity fits
	// under BandHigh×capacity.
	BandLow  float64
	BandHigh float64
	// Month is the ship's open month; nil drops the month clause. Cargoes
	// without a month never qualify while the clause is present.
	Month *int
	// MonthWindow is the allowed month distance, without year wraparound.
	MonthWindow int
	// Since excludes stale cargo orders.
	Since time.Time
	// CommissionCap is the maximum acceptable commission percentage.
	CommissionCap float64
	// Near, when set, restricts candidates to loading ports within
	// MaxDistanceMeters of the point and orders them nearest first.
	Near              *entity.GeoPoint
	MaxDistanceMeters float64
	// Limit caps the result set; 0 means no cap.
	Limit int
}

// candidateFilter builds the mongo filter for q. Null derived fields are
// excluded by the typed comparisons themselves: a null quantity or
// commission never satisfies $gte/$lte.
func candidateFilter(q CandidateQuery) bson.M {
	filter := bson.M{
		"timestamp_created":      bson.M{"$gte": q.Since},
		"commission_float":       bson.M{"$lte": q.CommissionCap},
		"location_from_geocoded": bson.M{"$ne": nil},
		"location_to_geocoded":   bson.M{"$ne": nil},
	}
	if q.Capacity != nil {
		filter["quantity_max_int"] = bson.M{"$gte": int(q.BandLow * float64(*q.Capacity))}
		filter["quantity_min_int"] = bson.M{"$lte": int(q.BandHigh * float64(*q.Capacity))}
	}
	if q.Month != nil {
		filter["month_int"] = bson.M{
			"$gte": *q.Month - q.MonthWindow,
			"$lte": *q.Month + q.MonthWindow,
		}
	}
	if q.Near != nil {
		filter["location_from_geocoded.location"] = bson.M{
			"$near": bson.M{
				"$geometry":    q.Near,
				"$maxDistance": q.MaxDistanceMeters,
			},
		}
	}
	return filter
}

// CandidateCargos runs the hard filter. With Near set the results come back
// ordered by loading-port distance; otherwise in collection order for the
// scoring pass to rank.
func (s *Store) CandidateCargos(ctx context.Context, q CandidateQuery) ([]*entity.Cargo, error) {
	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.cargos.Find(ctx, candidateFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("querying candidate cargos: %w", err)
	}
	var out []*entity.Cargo
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding candidate cargos: %w", err)
	}
	return out, nil
}

// CargosByIDs loads the given cargo documents, preserving the id order. The
// outbound composer uses this to render a paired ship's matches.
func (s *Store) CargosByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*entity.Cargo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.cargos.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("querying cargos by id: %w", err)
	}
	var found []*entity.Cargo
	if err := cur.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decoding cargos by id: %w", err)
	}
	byID := make(map[primitive.ObjectID]*entity.Cargo, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]*entity.Cargo, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
