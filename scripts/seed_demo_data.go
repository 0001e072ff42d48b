//go:build ignore
// +build ignore

// Demo Data Seeder
// Loads a small broker data set into the document store: a geocoder cache of
// common ports plus two pre-extracted circulars (one open ship, two cargo
// orders), enough to exercise the matching and outbound stages without a
// mailbox or model key.
//
// Usage:
//   MONGO_URI=mongodb://localhost:27017 go run scripts/seed_demo_data.go
//
// Re-running is safe: seeded emails are detected by provider message id and
// skipped, cached locations by the unique name index.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/store"
)

var (
	mongoURI = getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017")
	mongoDB  = getEnvOrDefault("MONGO_DATABASE", "broker")
)

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// port coordinates, longitude then latitude
var ports = map[string][2]float64{
	"Singapore":    {103.8220, 1.2644},
	"Rotterdam":    {4.4792, 51.9225},
	"Santos":       {-46.3329, -23.9537},
	"Yuzhny":       {31.0120, 46.6043},
	"Iskenderun":   {36.1650, 36.5817},
	"Qingdao":      {120.3826, 36.0671},
	"Houston":      {-95.0167, 29.7433},
	"Richards Bay": {32.0383, -28.7807},
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	st, err := store.Connect(ctx, mongoURI, mongoDB)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer st.Close(ctx)
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}
	log.Printf("Connected to document store (database %s)", mongoDB)

	for name, c := range ports {
		row := entity.KnownLocation{GeocodedLocation: entity.GeocodedLocation{
			Name:     name,
			Address:  name,
			Location: entity.NewGeoPoint(c[0], c[1]),
		}}
		if err := st.PutKnownLocation(ctx, &row); err != nil {
			log.Fatalf("seeding location %s: %v", name, err)
		}
	}
	log.Printf("Geocoder cache seeded (%d ports)", len(ports))

	shipEmail := demoEmail("seed-tonnage-0001",
		"Open tonnage - MV OCEAN TRADER",
		"ops@shipowner.example",
		"MV OCEAN TRADER\n13898 dwt open Singapore mid December\nPlease propose suitable cargo.")
	cargoEmail := demoEmail("seed-cargo-0001",
		"Cargo orders December",
		"cargo@trader.example",
		"25/30 urea bulk Yuzhny to Santos, December dates, 2.5% ttl\n"+
			"15000 tons steel coils Iskenderun to Rotterdam, December, 3.75% ttl")

	seeded := 0
	for _, seed := range []struct {
		email  *entity.Email
		ships  []*entity.Ship
		cargos []*entity.Cargo
	}{
		{email: shipEmail, ships: []*entity.Ship{demoShip(shipEmail)}},
		{email: cargoEmail, cargos: demoCargos(cargoEmail)},
	} {
		dup, err := st.FindDuplicateEmail(ctx, seed.email)
		if err != nil {
			log.Fatalf("duplicate probe: %v", err)
		}
		if dup {
			log.Printf("  %s already seeded, skipping", seed.email.ProviderMessageID)
			continue
		}
		if err := st.InsertEmail(ctx, seed.email); err != nil {
			log.Fatalf("inserting email: %v", err)
		}
		res := &store.ExtractionResult{Email: seed.email, Ships: seed.ships, Cargos: seed.cargos}
		if err := st.CommitExtraction(ctx, res); err != nil {
			log.Fatalf("committing extraction: %v", err)
		}
		seeded++
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		log.Fatalf("counts: %v", err)
	}
	fmt.Printf("Seeded %d emails. Collection counts: ships=%d cargos=%d known_locations=%d\n",
		seeded, counts[store.CollShips], counts[store.CollCargos], counts[store.CollKnownLocations])
	log.Println("Done. Start match_producer and match_consumer to pair the seeded records.")
}

func demoEmail(providerID, subject, sender, body string) *entity.Email {
	now := time.Now().UTC()
	return &entity.Email{
		ProviderMessageID:  providerID,
		Subject:            subject,
		Sender:             sender,
		Recipients:         "chartering@broker.example",
		DateReceived:       now.Format(time.RFC3339),
		Body:               body,
		TimestampAddedToDB: &now,
	}
}

func demoShip(email *entity.Email) *entity.Ship {
	s := &entity.Ship{
		Name:             "mv ocean trader",
		Status:           "open",
		Month:            "December",
		Capacity:         "13898 dwt",
		Location:         entity.Location{Port: "Singapore"},
		KeywordData:      "mv ocean trader open Singapore December",
		Email:            *email,
		TimestampCreated: time.Now().UTC(),
		PairsWith:        []primitive.ObjectID{},
	}
	s.Normalize()
	s.LocationGeocoded = seededLocation("Singapore")
	return s
}

func demoCargos(email *entity.Email) []*entity.Cargo {
	now := time.Now().UTC()
	rows := []struct {
		name, quantity, from, to, commission string
	}{
		{"urea", "25/30", "Yuzhny", "Santos", "2.5%"},
		{"steel coils", "15000 tons", "Iskenderun", "Rotterdam", "3.75%"},
	}
	out := make([]*entity.Cargo, 0, len(rows))
	for _, r := range rows {
		c := &entity.Cargo{
			Name:             r.name,
			Quantity:         r.quantity,
			LocationFrom:     entity.Location{Port: r.from},
			LocationTo:       entity.Location{Port: r.to},
			Month:            "December",
			Commission:       r.commission,
			KeywordData:      fmt.Sprintf("%s %s %s December", r.name, r.from, r.to),
			Email:            *email,
			TimestampCreated: now,
			PairsWith:        []primitive.ObjectID{},
		}
		c.Normalize()
		c.LocationFromGeocoded = seededLocation(r.from)
		c.LocationToGeocoded = seededLocation(r.to)
		out = append(out, c)
	}
	return out
}

func seededLocation(name string) *entity.GeocodedLocation {
	c, ok := ports[name]
	if !ok {
		return nil
	}
	return &entity.GeocodedLocation{
		Name:     name,
		Address:  name,
		Location: entity.NewGeoPoint(c[0], c[1]),
	}
}
