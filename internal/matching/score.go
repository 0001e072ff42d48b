package matching

import (
	"sort"
	"time"

	"github.com/ignite/chartermatch/internal/entity"
)

// rank orders candidates by the combined fit score, best first. Each signal
// column is normalized independently before summing, so no single signal's
// scale dominates. The sort is stable; ties keep the store order.
func (e *Engine) rank(ship *entity.Ship, cargos []*entity.Cargo) []*entity.Cargo {
	if len(cargos) < 2 {
		return cargos
	}
	now := e.now().UTC()
	n := len(cargos)
	columns := [][]float64{
		make([]float64, n),
		make([]float64, n),
		make([]float64, n),
		make([]float64, n),
	}
	for i, c := range cargos {
		columns[0][i] = capacityDelta(ship, c)
		columns[1][i] = monthDelta(ship, c)
		columns[2][i] = commissionDelta(c)
		columns[3][i] = recencyDelta(now, c)
	}

	totals := make([]float64, n)
	for _, col := range columns {
		for i, z := range normalizeRobust(col) {
			totals[i] += z
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return totals[idx[a]] > totals[idx[b]]
	})
	out := make([]*entity.Cargo, n)
	for i, j := range idx {
		out[i] = cargos[j]
	}
	return out
}

// capacityDelta grades how the vessel's deadweight sits against the cargo's
// quantity range. An undersized vessel is disqualifying; the remaining rules
// accumulate.
func capacityDelta(ship *entity.Ship, c *entity.Cargo) float64 {
	if ship.CapacityInt == nil {
		return 0
	}
	if c.QuantityMinInt == nil || c.QuantityMaxInt == nil {
		return -2
	}
	capacity := float64(*ship.CapacityInt)
	min := float64(*c.QuantityMinInt)
	max := float64(*c.QuantityMaxInt)

	if capacity < 0.90*min {
		return -5
	}
	var d float64
	if capacity > min {
		d++
	}
	if capacity > 0.85*max {
		d += 2
	}
	if capacity >= 0.95*max && capacity <= 1.10*max {
		d += 4
	}
	if capacity > 1.5*max {
		d -= 2
	}
	if capacity > 2*max {
		d -= 5
	}
	return d
}

func monthDelta(ship *entity.Ship, c *entity.Cargo) float64 {
	if c.MonthInt == nil {
		return -2
	}
	if ship.MonthInt == nil {
		return 0
	}
	d := *ship.MonthInt - *c.MonthInt
	if d < 0 {
		d = -d
	}
	switch d {
	case 0:
		return 3
	case 1:
		return 0
	default:
		return -5
	}
}

func commissionDelta(c *entity.Cargo) float64 {
	switch f := c.CommissionFloat; {
	case f <= 1.25:
		return 6
	case f <= 2.5:
		return 3
	case f <= 3.75:
		return 1
	case f <= 4:
		return 0
	case f <= 5:
		return -1
	default:
		return -6
	}
}

func recencyDelta(now time.Time, c *entity.Cargo) float64 {
	switch age := now.Sub(c.TimestampCreated); {
	case age <= 3*24*time.Hour:
		return 5
	case age <= 7*24*time.Hour:
		return 2
	case age <= 14*24*time.Hour:
		return 0
	case age <= 30*24*time.Hour:
		return -2
	default:
		return -5
	}
}

// normalizeRobust rescales one signal column by its median and IQR, clipped
// to [-0.1, 1.0]. The asymmetric clip keeps a strong positive signal worth up
// to ten times a negative one. A column with no spread normalizes to zeros;
// when only the IQR collapses, the full range stands in for it.
func normalizeRobust(vals []float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	med := percentile(sorted, 50)
	scale := percentile(sorted, 75) - percentile(sorted, 25)
	if scale == 0 {
		scale = sorted[len(sorted)-1] - sorted[0]
	}
	if scale == 0 {
		return out
	}
	for i, v := range vals {
		z := (v - med) / scale
		if z < -0.1 {
			z = -0.1
		}
		if z > 1.0 {
			z = 1.0
		}
		out[i] = z
	}
	return out
}

// percentile reads p from an ascending slice with linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p / 100 * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
