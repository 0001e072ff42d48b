package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/ignite/chartermatch/internal/store"
)

// Index bootstrap for the document store. Mongo needs no schema migrations;
// this ensures the geocoder-cache unique index and the 2dsphere indexes the
// matching queries depend on, then prints per-collection counts.
func main() {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	database := os.Getenv("MONGO_DATABASE")
	if database == "" {
		database = "broker"
	}

	countsOnly := false
	for _, a := range os.Args[1:] {
		if a == "--counts" {
			countsOnly = true
		} else {
			database = a
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Connect(ctx, uri, database)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer st.Close(ctx)
	log.Printf("Connected to document store (database %s)", database)

	if countsOnly {
		printCounts(ctx, st)
		return
	}

	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}
	log.Println("Indexes ensured: known_locations.name (unique), 2dsphere on ship and cargo coordinates")

	printCounts(ctx, st)
	log.Println("Bootstrap complete")
}

func printCounts(ctx context.Context, st *store.Store) {
	counts, err := st.Counts(ctx)
	if err != nil {
		log.Fatalf("counts: %v", err)
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	var total int64
	for _, name := range names {
		fmt.Printf("  %-18s %d\n", name, counts[name])
		total += counts[name]
	}
	fmt.Printf("Total: %d documents across %d collections\n", total, len(names))
}
