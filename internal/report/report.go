// Package report turns raw transaction records into ranked hot/cold item
// segments annotated with sales velocity and projected days of supply. All
// functions are pure: no I/O, no shared state, deterministic output for
// identical input.
package report

import (
	"errors"
	"math"
	"slices"
	"time"

	"pinepulse/internal/models"
)

// DefaultSegmentFraction is the share of the distinct-item universe that each
// segment covers.
const DefaultSegmentFraction = 0.3

var (
	ErrEmptyInput      = errors.New("report: no records to segment")
	ErrInvalidWindow   = errors.New("report: window days must be positive")
	ErrInvalidFraction = errors.New("report: segment fraction must be in (0, 1]")
)

type itemTotals struct {
	sales    float64
	qtySum   float64
	qtySeen  bool
	stockVal float64
	stockTS  time.Time
	stockOK  bool
}

// ComputeSegments groups records by item, ranks them by total sales and
// returns the top and bottom segments, each of size max(1, ceil(n*fraction)).
// With few distinct items the segments may overlap; that mirrors the report
// definition and is not deduplicated here.
func ComputeSegments(records []models.TransactionRecord, windowDays int, fraction float64) (top, bottom models.RankedSegment, err error) {
	if len(records) == 0 {
		return top, bottom, ErrEmptyInput
	}
	if windowDays <= 0 {
		return top, bottom, ErrInvalidWindow
	}
	if fraction <= 0 || fraction > 1 {
		return top, bottom, ErrInvalidFraction
	}

	totals := aggregateItems(records)

	// Lexical base order makes the later stable sorts deterministic: items
	// with equal sales keep their item-id order in both directions.
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	base := make([]models.ItemAggregate, 0, len(ids))
	for _, id := range ids {
		base = append(base, buildAggregate(id, totals[id], windowDays))
	}

	k := segmentSize(len(base), fraction)

	desc := slices.Clone(base)
	slices.SortStableFunc(desc, func(a, b models.ItemAggregate) int {
		switch {
		case a.TotalSales > b.TotalSales:
			return -1
		case a.TotalSales < b.TotalSales:
			return 1
		}
		return 0
	})

	asc := slices.Clone(base)
	slices.SortStableFunc(asc, func(a, b models.ItemAggregate) int {
		switch {
		case a.TotalSales < b.TotalSales:
			return -1
		case a.TotalSales > b.TotalSales:
			return 1
		}
		return 0
	})

	top = models.RankedSegment{Kind: models.SegmentTop, Members: desc[:k]}
	bottom = models.RankedSegment{Kind: models.SegmentBottom, Members: asc[:k]}
	return top, bottom, nil
}

// ComputeCategoryMix sums sales per category and expresses each as a share of
// the grand total, sorted descending by sales with lexical tiebreak. Records
// without a category label are grouped under "uncategorized".
func ComputeCategoryMix(records []models.TransactionRecord) ([]models.CategoryShare, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	sums := make(map[string]float64)
	var grand float64
	for _, r := range records {
		cat := r.Category
		if cat == "" {
			cat = "uncategorized"
		}
		sums[cat] += r.Amount
		grand += r.Amount
	}

	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	slices.Sort(names)

	mix := make([]models.CategoryShare, 0, len(names))
	for _, name := range names {
		share := models.CategoryShare{Category: name, TotalSales: sums[name]}
		if grand > 0 {
			share.PercentOfTotal = round1(sums[name] / grand * 100)
		}
		mix = append(mix, share)
	}

	slices.SortStableFunc(mix, func(a, b models.CategoryShare) int {
		switch {
		case a.TotalSales > b.TotalSales:
			return -1
		case a.TotalSales < b.TotalSales:
			return 1
		}
		return 0
	})
	return mix, nil
}

// SegmentSize exposes the shared segment size formula: max(1, ceil(n*fraction)).
func SegmentSize(distinctItems int, fraction float64) int {
	return segmentSize(distinctItems, fraction)
}

func segmentSize(n int, fraction float64) int {
	k := int(math.Ceil(float64(n) * fraction))
	if k < 1 {
		k = 1
	}
	return k
}

func aggregateItems(records []models.TransactionRecord) map[string]*itemTotals {
	totals := make(map[string]*itemTotals)
	for _, r := range records {
		t := totals[r.ItemID]
		if t == nil {
			t = &itemTotals{}
			totals[r.ItemID] = t
		}
		t.sales += r.Amount
		if r.QuantitySold != nil {
			t.qtySum += *r.QuantitySold
			t.qtySeen = true
		}
		// Stock is a level, not a flow: keep the most recent observation
		// instead of summing. Later input wins on equal timestamps.
		if r.StockRemaining != nil && (!t.stockOK || !r.Timestamp.Before(t.stockTS)) {
			t.stockVal = *r.StockRemaining
			t.stockTS = r.Timestamp
			t.stockOK = true
		}
	}
	return totals
}

func buildAggregate(id string, t *itemTotals, windowDays int) models.ItemAggregate {
	agg := models.ItemAggregate{
		ItemID:     id,
		TotalSales: t.sales,
		Velocity:   round1(t.sales / float64(windowDays)),
	}

	switch {
	case t.qtySeen:
		qty := t.qtySum
		agg.TotalQuantity = &qty
	case t.stockOK:
		stock := t.stockVal
		agg.TotalQuantity = &stock
	}

	if agg.TotalQuantity != nil && agg.Velocity > 0 {
		ds := round1(*agg.TotalQuantity / agg.Velocity)
		agg.DaysSupply = &ds
	}
	return agg
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
