// Package entity defines the document model shared by every pipeline stage:
// emails pulled from the mailbox, the ship and cargo records extracted from
// them, and the bookkeeping documents (failed entries, extraction bundles,
// geocoder cache rows) that surround them.
package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Email is the normalized mailbox message. Immutable after insert except for
// the two bookkeeping timestamps and the extracted-id lists.
type Email struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// ProviderMessageID is the remote mail provider's message id. Unique
	// across the collection when non-empty; Body is the secondary dedup key.
	ProviderMessageID string `bson:"provider_message_id" json:"provider_message_id"`

	Subject      string `bson:"subject" json:"subject"`
	Sender       string `bson:"sender" json:"sender"`
	Recipients   string `bson:"recipients" json:"recipients"`
	DateReceived string `bson:"date_received" json:"date_received"`
	IsRead       bool   `bson:"is_read" json:"is_read"`
	Body         string `bson:"body" json:"body"`

	TimestampAddedToDB         *time.Time `bson:"timestamp_added_to_db" json:"timestamp_added_to_db"`
	TimestampEntitiesExtracted *time.Time `bson:"timestamp_entities_extracted" json:"timestamp_entities_extracted"`

	ExtractedShipIDs  []primitive.ObjectID `bson:"extracted_ship_ids" json:"extracted_ship_ids"`
	ExtractedCargoIDs []primitive.ObjectID `bson:"extracted_cargo_ids" json:"extracted_cargo_ids"`
}

// Location is the raw {port, sea, ocean} triple the oracle extracts. Fields
// are free text and frequently empty.
type Location struct {
	Port  string `bson:"port" json:"port"`
	Sea   string `bson:"sea" json:"sea"`
	Ocean string `bson:"ocean" json:"ocean"`
}

// Empty reports whether no level of the location carries a name.
func (l Location) Empty() bool {
	return l.Port == "" && l.Sea == "" && l.Ocean == ""
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude], the
// order the store's 2dsphere indexes require.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a longitude/latitude pair.
func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

// Longitude returns the first coordinate, 0 when the point is malformed.
func (p GeoPoint) Longitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Latitude returns the second coordinate, 0 when the point is malformed.
func (p GeoPoint) Latitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// GeocodedLocation is a resolved place name with coordinates. Raw keeps the
// remote geocoder's response for audit.
type GeocodedLocation struct {
	Name     string                 `bson:"name" json:"name"`
	Address  string                 `bson:"address" json:"address"`
	Location GeoPoint               `bson:"location" json:"location"`
	Raw      map[string]interface{} `bson:"raw" json:"raw,omitempty"`
}

// KnownLocation is one row of the geocoder cache. Name is enforced unique at
// the store level; a cache hit bypasses the remote geocoder entirely.
type KnownLocation struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GeocodedLocation `bson:",inline"`
}

// Ship is an open-tonnage notice extracted from one email. The producing
// email is embedded by value; the email's extracted_ship_ids list is the
// inverse index.
type Ship struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Name        string   `bson:"name" json:"name"`
	Status      string   `bson:"status" json:"status"`
	Month       string   `bson:"month" json:"month"`
	Capacity    string   `bson:"capacity" json:"capacity"`
	Location    Location `bson:"location" json:"location"`
	KeywordData string   `bson:"keyword_data" json:"keyword_data"`

	// Derived on write, never trusted from input.
	CapacityInt      *int              `bson:"capacity_int" json:"capacity_int"`
	MonthInt         *int              `bson:"month_int" json:"month_int"`
	LocationGeocoded *GeocodedLocation `bson:"location_geocoded" json:"location_geocoded"`

	Email            Email     `bson:"email" json:"email"`
	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`

	// PairsWith == [] means "not yet matched"; matched-with-zero sets
	// TimestampPairsUpdated and leaves the list empty.
	PairsWith             []primitive.ObjectID `bson:"pairs_with" json:"pairs_with"`
	TimestampPairsUpdated *time.Time           `bson:"timestamp_pairs_updated" json:"timestamp_pairs_updated"`
}

// Cargo is a cargo order extracted from one email. Pairing fields are
// symmetric to Ship.
type Cargo struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Name         string   `bson:"name" json:"name"`
	Quantity     string   `bson:"quantity" json:"quantity"`
	LocationFrom Location `bson:"location_from" json:"location_from"`
	LocationTo   Location `bson:"location_to" json:"location_to"`
	Month        string   `bson:"month" json:"month"`
	Commission   string   `bson:"commission" json:"commission"`
	KeywordData  string   `bson:"keyword_data" json:"keyword_data"`

	QuantityMinInt *int `bson:"quantity_min_int" json:"quantity_min_int"`
	QuantityMaxInt *int `bson:"quantity_max_int" json:"quantity_max_int"`
	MonthInt       *int `bson:"month_int" json:"month_int"`

	// CommissionFloat defaults to 10.0 when the text is unparseable, which
	// keeps commission-less cargoes above the matching engine's 5.00 cap.
	CommissionFloat float64 `bson:"commission_float" json:"commission_float"`

	LocationFromGeocoded *GeocodedLocation `bson:"location_from_geocoded" json:"location_from_geocoded"`
	LocationToGeocoded   *GeocodedLocation `bson:"location_to_geocoded" json:"location_to_geocoded"`

	Email            Email     `bson:"email" json:"email"`
	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`

	PairsWith             []primitive.ObjectID `bson:"pairs_with" json:"pairs_with"`
	TimestampPairsUpdated *time.Time           `bson:"timestamp_pairs_updated" json:"timestamp_pairs_updated"`
}

// FailedEntry records one oracle entry that failed validation or geocoding,
// with the reason and the email it came from, for audit and replay.
type FailedEntry struct {
	ID               primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Type             string                 `bson:"type" json:"type"`
	Reason           string                 `bson:"reason" json:"reason"`
	Entry            map[string]interface{} `bson:"entry" json:"entry"`
	Email            Email                  `bson:"email" json:"email"`
	TimestampCreated time.Time              `bson:"timestamp_created" json:"timestamp_created"`
}

// BundleEntity is one extracted entity inside an ExtractionBundle, tagged by
// type so mixed ship/cargo lists stay decodable.
type BundleEntity struct {
	Type  string `bson:"type" json:"type"`
	Ship  *Ship  `bson:"ship,omitempty" json:"ship,omitempty"`
	Cargo *Cargo `bson:"cargo,omitempty" json:"cargo,omitempty"`
}

// ExtractionBundle is the audit record for one processed email: everything
// the oracle produced, successful or not, in one document.
type ExtractionBundle struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email            Email              `bson:"email" json:"email"`
	Entities         []BundleEntity     `bson:"entities" json:"entities"`
	FailedEntries    []FailedEntry      `bson:"failed_entries" json:"failed_entries"`
	TimestampCreated time.Time          `bson:"timestamp_created" json:"timestamp_created"`
}
