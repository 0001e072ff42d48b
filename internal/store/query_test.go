package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ignite/chartermatch/internal/entity"
)

func TestDuplicateEmailFilter(t *testing.T) {
	t.Run("id and body", func(t *testing.T) {
		f := duplicateEmailFilter(&entity.Email{ProviderMessageID: "msg-1", Body: "open tonnage"})
		require.NotNil(t, f)
		or, ok := f["$or"].([]bson.M)
		require.True(t, ok)
		require.Len(t, or, 2)
		assert.Equal(t, "msg-1", or[0]["provider_message_id"])
		assert.Equal(t, "open tonnage", or[1]["body"])
	})

	t.Run("body only", func(t *testing.T) {
		f := duplicateEmailFilter(&entity.Email{Body: "open tonnage"})
		require.NotNil(t, f)
		or := f["$or"].([]bson.M)
		require.Len(t, or, 1)
		assert.Equal(t, "open tonnage", or[0]["body"])
	})

	t.Run("nothing to match on", func(t *testing.T) {
		assert.Nil(t, duplicateEmailFilter(&entity.Email{}))
	})
}

func TestUnpairedShipFilter(t *testing.T) {
	f := unpairedShipFilter()
	assert.Equal(t, bson.M{"pairs_with": bson.M{"$size": 0}}, f)
}

func TestCandidateFilter(t *testing.T) {
	capacity := 13898
	month := 12
	near := entity.NewGeoPoint(27.0, 38.5)
	since := time.Date(2026, 7, 25, 0, 0, 0, 0, time.UTC)

	q := CandidateQuery{
		Capacity:          &capacity,
		BandLow:           0.80,
		BandHigh:          1.20,
		Month:             &month,
		MonthWindow:       1,
		Since:             since,
		CommissionCap:     5.0,
		Near:              &near,
		MaxDistanceMeters: 1_500_000,
	}
	f := candidateFilter(q)

	assert.Equal(t, bson.M{"$gte": since}, f["timestamp_created"])
	assert.Equal(t, bson.M{"$gte": 11118}, f["quantity_max_int"])
	assert.Equal(t, bson.M{"$lte": 16677}, f["quantity_min_int"])
	assert.Equal(t, bson.M{"$lte": 5.0}, f["commission_float"])
	assert.Equal(t, bson.M{"$gte": 11, "$lte": 13}, f["month_int"])
	assert.Equal(t, bson.M{"$ne": nil}, f["location_from_geocoded"])
	assert.Equal(t, bson.M{"$ne": nil}, f["location_to_geocoded"])

	geo, ok := f["location_from_geocoded.location"].(bson.M)
	require.True(t, ok)
	nearClause, ok := geo["$near"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, &near, nearClause["$geometry"])
	assert.Equal(t, 1_500_000.0, nearClause["$maxDistance"])
}

func TestCandidateFilterWithoutMonthOrGeo(t *testing.T) {
	capacity := 30000
	q := CandidateQuery{
		Capacity:      &capacity,
		BandLow:       0.80,
		BandHigh:      1.20,
		Since:         time.Now().UTC(),
		CommissionCap: 5.0,
	}
	f := candidateFilter(q)

	_, hasMonth := f["month_int"]
	assert.False(t, hasMonth)
	_, hasNear := f["location_from_geocoded.location"]
	assert.False(t, hasNear)
	assert.Equal(t, bson.M{"$gte": 24000}, f["quantity_max_int"])
	assert.Equal(t, bson.M{"$lte": 36000}, f["quantity_min_int"])
}

func TestCandidateFilterWithoutCapacity(t *testing.T) {
	q := CandidateQuery{
		BandLow:       0.80,
		BandHigh:      1.20,
		Since:         time.Now().UTC(),
		CommissionCap: 5.0,
	}
	f := candidateFilter(q)

	_, hasMax := f["quantity_max_int"]
	assert.False(t, hasMax)
	_, hasMin := f["quantity_min_int"]
	assert.False(t, hasMin)
}
