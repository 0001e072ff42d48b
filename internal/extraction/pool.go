// Package extraction drains the extraction queue through the model oracle:
// a dispatcher feeds a weighted-semaphore worker pool, one goroutine per
// email, paced so the model API is never hammered. Every email commits
// atomically and fails alone.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/semaphore"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/oracle"
	"github.com/ignite/chartermatch/internal/pipeline"
	"github.com/ignite/chartermatch/internal/pkg/logger"
	"github.com/ignite/chartermatch/internal/store"
)

// Oracle is the model client surface the pool calls.
type Oracle interface {
	ExtractEntities(ctx context.Context, body string) ([]*oracle.Entry, error)
}

// Geocoder resolves extracted locations. A nil result is acceptable; the
// entity persists without coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, loc entity.Location) *entity.GeocodedLocation
}

// Store is the commit surface.
type Store interface {
	CommitExtraction(ctx context.Context, res *store.ExtractionResult) error
}

// Options tune the dispatcher.
type Options struct {
	// Pace is the minimum gap between dispatches.
	Pace time.Duration
	// IdleSleep is the pause when the queue runs empty.
	IdleSleep time.Duration
}

// Pool implements the extraction stage over the shared email queue.
type Pool struct {
	queue  *pipeline.Queue[*entity.Email]
	oracle Oracle
	geo    Geocoder
	store  Store
	log    *livelog.Log
	pace   time.Duration
	idle   time.Duration
}

// New wires a pool over the given queue and collaborators.
func New(queue *pipeline.Queue[*entity.Email], o Oracle, g Geocoder, s Store, log *livelog.Log, opts Options) *Pool {
	if opts.Pace <= 0 {
		opts.Pace = time.Second
	}
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = 2 * time.Second
	}
	return &Pool{
		queue:  queue,
		oracle: o,
		geo:    g,
		store:  s,
		log:    log,
		pace:   opts.Pace,
		idle:   opts.IdleSleep,
	}
}

// Run dispatches queued emails until the stop signal is raised, then waits
// for in-flight workers. A worker slot is acquired before the dequeue, so a
// stop request never strands an email between queue and pool.
func (p *Pool) Run(ctx context.Context, stop *pipeline.Signal, workers int) {
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	for {
		if stop.IsSet() || ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		e, err := p.queue.TryGet()
		if err != nil {
			sem.Release(1)
			p.pause(ctx, stop, p.idle)
			continue
		}
		go func(e *entity.Email) {
			defer sem.Release(1)
			p.process(ctx, e)
		}(e)
		p.pause(ctx, stop, p.pace)
	}
	// Uncommitted emails keep a nil extraction timestamp, so anything a hard
	// cancel interrupts comes back through the backfill scan.
	_ = sem.Acquire(context.Background(), int64(workers))
}

func (p *Pool) pause(ctx context.Context, stop *pipeline.Signal, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-stop.Done():
	case <-t.C:
	}
}

// process runs one email end to end. Any failure (a model error or a panic
// in entry handling) is reported on the gpt channel and ends this email
// only; without a commit the email stays eligible for re-extraction.
func (p *Pool) process(ctx context.Context, e *entity.Email) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extraction worker panicked", "email", e.ProviderMessageID, "panic", fmt.Sprint(r))
			p.log.Report(livelog.ChanGPT, "extraction crashed for email '%s': %v", e.Subject, r)
		}
	}()

	entries, err := p.oracle.ExtractEntities(ctx, e.Body)
	if err != nil {
		p.log.Report(livelog.ChanGPT, "extraction failed for email '%s': %v", e.Subject, err)
		return
	}

	res := p.buildResult(ctx, e, entries)
	if err := p.store.CommitExtraction(ctx, res); err != nil {
		p.log.Report(livelog.ChanGPT, "persisting extraction for email '%s' failed: %v", e.Subject, err)
		return
	}
	p.log.Report(livelog.ChanGPT, "extracted %d ships and %d cargos from email '%s'",
		len(res.Ships), len(res.Cargos), e.Subject)
}

// buildResult turns the oracle's entries into validated entities. Entries
// that fail validation become FailedEntry rows instead of silently vanishing.
func (p *Pool) buildResult(ctx context.Context, e *entity.Email, entries []*oracle.Entry) *store.ExtractionResult {
	res := &store.ExtractionResult{Email: e, Failed: []entity.FailedEntry{}}
	now := time.Now().UTC()
	for _, entry := range entries {
		switch entry.Type {
		case "ship":
			ship := p.buildShip(ctx, e, entry, now)
			if err := ship.Validate(); err != nil {
				res.Failed = append(res.Failed, failedEntry("ship", err, entry, e))
				p.log.Report(livelog.ChanExtra, "discarded ship entry from email '%s': %v", e.Subject, err)
				continue
			}
			res.Ships = append(res.Ships, ship)
		case "cargo":
			cargo := p.buildCargo(ctx, e, entry, now)
			if err := cargo.Validate(); err != nil {
				res.Failed = append(res.Failed, failedEntry("cargo", err, entry, e))
				p.log.Report(livelog.ChanExtra, "discarded cargo entry from email '%s': %v", e.Subject, err)
				continue
			}
			res.Cargos = append(res.Cargos, cargo)
		default:
			err := fmt.Errorf("unknown entry type '%s'", entry.Type)
			res.Failed = append(res.Failed, failedEntry(entry.Type, err, entry, e))
			p.log.Report(livelog.ChanExtra, "discarded entry from email '%s': %v", e.Subject, err)
		}
	}
	return res
}

func (p *Pool) buildShip(ctx context.Context, e *entity.Email, entry *oracle.Entry, now time.Time) *entity.Ship {
	capacity := entry.Capacity
	if capacity == "" {
		// The model occasionally labels a ship's tonnage as quantity.
		capacity = entry.Quantity
	}
	s := &entity.Ship{
		Name:             entry.Name,
		Status:           entry.Status,
		Month:            entry.Month,
		Capacity:         capacity,
		Location:         entry.Location,
		KeywordData:      keywordData(entry.Name, entry.Status, entry.Month, entry.Location),
		Email:            *e,
		TimestampCreated: now,
		PairsWith:        []primitive.ObjectID{},
	}
	s.Normalize()
	s.LocationGeocoded = p.geo.Resolve(ctx, s.Location)
	return s
}

func (p *Pool) buildCargo(ctx context.Context, e *entity.Email, entry *oracle.Entry, now time.Time) *entity.Cargo {
	quantity := entry.Quantity
	if quantity == "" {
		// And, symmetrically, a cargo's tonnage as capacity.
		quantity = entry.Capacity
	}
	c := &entity.Cargo{
		Name:             entry.Name,
		Quantity:         quantity,
		LocationFrom:     entry.LocationFrom,
		LocationTo:       entry.LocationTo,
		Month:            entry.Month,
		Commission:       entry.Commission,
		KeywordData:      keywordData(entry.Name, entry.Month, entry.Commission, entry.LocationFrom, entry.LocationTo),
		Email:            *e,
		TimestampCreated: now,
		PairsWith:        []primitive.ObjectID{},
	}
	c.Normalize()
	c.LocationFromGeocoded = p.geo.Resolve(ctx, c.LocationFrom)
	c.LocationToGeocoded = p.geo.Resolve(ctx, c.LocationTo)
	return c
}

// keywordData flattens an entry's descriptive text into one searchable line.
func keywordData(parts ...interface{}) string {
	var words []string
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			if v != "" {
				words = append(words, v)
			}
		case entity.Location:
			for _, s := range []string{v.Port, v.Sea, v.Ocean} {
				if s != "" {
					words = append(words, s)
				}
			}
		}
	}
	return strings.Join(words, " ")
}

func failedEntry(kind string, reason error, entry *oracle.Entry, e *entity.Email) entity.FailedEntry {
	return entity.FailedEntry{
		Type:   kind,
		Reason: reason.Error(),
		Entry:  entry.Raw,
		Email:  *e,
	}
}
