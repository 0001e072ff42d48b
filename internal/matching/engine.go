// Package matching computes the ranked cargo short-list for a vessel. The
// hard filter runs in the store; this package owns the ranking pass for
// ships the geocoder could not place, plus de-duplication and the top-K cut.
package matching

import (
	"context"
	"time"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/store"
)

// Store is the candidate slice of the document store.
type Store interface {
	CandidateCargos(ctx context.Context, q store.CandidateQuery) ([]*entity.Cargo, error)
}

// Options tune the hard filter and the result size.
type Options struct {
	RadiusKM      float64
	RecencyDays   int
	TopK          int
	CommissionCap float64
	BandLow       float64
	BandHigh      float64
	MonthWindow   int
}

// DefaultOptions mirrors the production deployment.
func DefaultOptions() Options {
	return Options{
		RadiusKM:      1500,
		RecencyDays:   31,
		TopK:          5,
		CommissionCap: 5.0,
		BandLow:       0.80,
		BandHigh:      1.20,
		MonthWindow:   1,
	}
}

// Engine answers Match requests for the pipeline.
type Engine struct {
	store Store
	opts  Options
	now   func() time.Time
}

// New returns an engine; zero option fields fall back to the defaults.
func New(s Store, opts Options) *Engine {
	def := DefaultOptions()
	if opts.RadiusKM <= 0 {
		opts.RadiusKM = def.RadiusKM
	}
	if opts.RecencyDays <= 0 {
		opts.RecencyDays = def.RecencyDays
	}
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.CommissionCap <= 0 {
		opts.CommissionCap = def.CommissionCap
	}
	if opts.BandLow <= 0 {
		opts.BandLow = def.BandLow
	}
	if opts.BandHigh <= 0 {
		opts.BandHigh = def.BandHigh
	}
	if opts.MonthWindow <= 0 {
		opts.MonthWindow = def.MonthWindow
	}
	return &Engine{store: s, opts: opts, now: time.Now}
}

// Match returns the top-K cargo matches for ship. Geocoded ships are served
// by the store's proximity ordering; ships without coordinates fall back to
// the scoring pass over the same hard filter.
func (e *Engine) Match(ctx context.Context, ship *entity.Ship) ([]*entity.Cargo, error) {
	q := store.CandidateQuery{
		Capacity:      ship.CapacityInt,
		BandLow:       e.opts.BandLow,
		BandHigh:      e.opts.BandHigh,
		Month:         ship.MonthInt,
		MonthWindow:   e.opts.MonthWindow,
		Since:         e.now().UTC().AddDate(0, 0, -e.opts.RecencyDays),
		CommissionCap: e.opts.CommissionCap,
	}
	if ship.LocationGeocoded != nil {
		q.Near = &ship.LocationGeocoded.Location
		q.MaxDistanceMeters = e.opts.RadiusKM * 1000
		candidates, err := e.store.CandidateCargos(ctx, q)
		if err != nil {
			return nil, err
		}
		return dedupTopK(candidates, e.opts.TopK), nil
	}

	candidates, err := e.store.CandidateCargos(ctx, q)
	if err != nil {
		return nil, err
	}
	return dedupTopK(e.rank(ship, candidates), e.opts.TopK), nil
}

// dedupKey collapses commercially identical cargo orders circulated by
// several brokers. Nil derived fields are distinct from any value.
type dedupKey struct {
	name       string
	qmin       int
	hasQmin    bool
	qmax       int
	hasQmax    bool
	month      int
	hasMonth   bool
	commission float64
}

func keyOf(c *entity.Cargo) dedupKey {
	k := dedupKey{name: c.Name, commission: c.CommissionFloat}
	if c.QuantityMinInt != nil {
		k.qmin, k.hasQmin = *c.QuantityMinInt, true
	}
	if c.QuantityMaxInt != nil {
		k.qmax, k.hasQmax = *c.QuantityMaxInt, true
	}
	if c.MonthInt != nil {
		k.month, k.hasMonth = *c.MonthInt, true
	}
	return k
}

// dedupTopK keeps the first-seen cargo per key, in input order, stopping at
// k unique results.
func dedupTopK(cargos []*entity.Cargo, k int) []*entity.Cargo {
	seen := make(map[dedupKey]bool, len(cargos))
	out := make([]*entity.Cargo, 0, k)
	for _, c := range cargos {
		key := keyOf(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}
