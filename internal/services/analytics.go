package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pinepulse/internal/ingest"
	"pinepulse/internal/models"
	"pinepulse/internal/observability"
	"pinepulse/internal/report"
)

// ErrNoData signals that no transactions match the requested store and
// window. The ranking core is never invoked on an empty set.
var ErrNoData = errors.New("no transactions match the requested store and window")

// Cache holds previously computed reports. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(key string) (models.RankedReport, bool)
	Put(key string, report models.RankedReport) error
}

// Analytics owns the in-memory transaction set and produces ranked inventory
// reports from it. All mutation goes through SetData/Append/LoadFromCSV; the
// data version bumps on every mutation so cached reports can never go stale.
type Analytics struct {
	mu       sync.RWMutex
	records  []models.TransactionRecord
	version  int64
	loadedAt time.Time

	fraction float64
	cache    Cache
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewAnalytics() *Analytics {
	return &Analytics{
		fraction: report.DefaultSegmentFraction,
		logger:   slog.Default(),
	}
}

// SetCache attaches a report cache. Call before serving traffic.
func (a *Analytics) SetCache(c Cache) { a.cache = c }

// SetMetrics attaches prometheus counters. Call before serving traffic.
func (a *Analytics) SetMetrics(m *observability.Metrics) { a.metrics = m }

// SetSegmentFraction overrides the default 0.3 segment share.
func (a *Analytics) SetSegmentFraction(fraction float64) { a.fraction = fraction }

func (a *Analytics) SetData(records []models.TransactionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = records
	a.version++
	a.loadedAt = time.Now().UTC()
}

// Append adds live records, e.g. from the Kafka feed.
func (a *Analytics) Append(records ...models.TransactionRecord) {
	if len(records) == 0 {
		return
	}

	a.mu.Lock()
	a.records = append(a.records, records...)
	a.version++
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.RecordsIngested.Add(float64(len(records)))
	}
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()
	a.logger.Info("loading transaction CSV", "filename", filename)

	records, err := ingest.LoadCSV(ctx, filename)
	if err != nil {
		return fmt.Errorf("load csv: %w", err)
	}

	a.SetData(records)
	if a.metrics != nil {
		a.metrics.RecordsIngested.Add(float64(len(records)))
	}

	a.logger.Info("csv load complete",
		"records", len(records),
		"duration", time.Since(start))
	return nil
}

// Report produces the ranked top/bottom segments plus category mix for one
// store and lookback window. An empty storeID means the whole dataset. The
// window is anchored at the most recent matching record so reports over a
// fixed file are reproducible.
func (a *Analytics) Report(storeID string, windowDays int) (models.RankedReport, error) {
	if windowDays <= 0 {
		return models.RankedReport{}, report.ErrInvalidWindow
	}

	a.mu.RLock()
	records := a.records
	version := a.version
	a.mu.RUnlock()

	filtered := filterWindow(records, storeID, windowDays)
	if len(filtered) == 0 {
		return models.RankedReport{}, ErrNoData
	}

	key := fmt.Sprintf("%s|%d|%d", storeID, windowDays, version)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			if a.metrics != nil {
				a.metrics.ReportCacheHits.Inc()
			}
			return cached, nil
		}
	}

	top, bottom, err := report.ComputeSegments(filtered, windowDays, a.fraction)
	if err != nil {
		return models.RankedReport{}, err
	}
	mix, err := report.ComputeCategoryMix(filtered)
	if err != nil {
		return models.RankedReport{}, err
	}

	rep := models.RankedReport{
		StoreID:       storeID,
		WindowDays:    windowDays,
		DistinctItems: distinctItems(filtered),
		SegmentSize:   len(top.Members),
		Top:           top,
		Bottom:        bottom,
		Categories:    mix,
		GeneratedAt:   time.Now().UTC(),
	}

	if a.cache != nil {
		if err := a.cache.Put(key, rep); err != nil {
			a.logger.Warn("failed to cache report", "key", key, "error", err)
		}
	}
	if a.metrics != nil {
		a.metrics.ReportsComputed.Inc()
	}
	return rep, nil
}

// CategoryMix returns just the category share summary for a store and window.
func (a *Analytics) CategoryMix(storeID string, windowDays int) ([]models.CategoryShare, error) {
	if windowDays <= 0 {
		return nil, report.ErrInvalidWindow
	}

	a.mu.RLock()
	records := a.records
	a.mu.RUnlock()

	filtered := filterWindow(records, storeID, windowDays)
	if len(filtered) == 0 {
		return nil, ErrNoData
	}
	return report.ComputeCategoryMix(filtered)
}

// Stats reports dataset shape for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stores := make(map[string]struct{})
	items := make(map[string]struct{})
	for _, r := range a.records {
		stores[r.StoreID] = struct{}{}
		items[r.ItemID] = struct{}{}
	}

	return map[string]any{
		"record_count": len(a.records),
		"data_version": a.version,
		"stores":       len(stores),
		"items":        len(items),
		"loaded_at":    a.loadedAt,
	}
}

// filterWindow keeps records for the store (empty = all stores) whose
// timestamp falls inside windowDays counted back from the latest matching
// record. Returns nil when nothing matches.
func filterWindow(records []models.TransactionRecord, storeID string, windowDays int) []models.TransactionRecord {
	var anchor time.Time
	for _, r := range records {
		if storeID != "" && r.StoreID != storeID {
			continue
		}
		if r.Timestamp.After(anchor) {
			anchor = r.Timestamp
		}
	}
	if anchor.IsZero() {
		return nil
	}

	cutoff := anchor.AddDate(0, 0, -windowDays)
	var out []models.TransactionRecord
	for _, r := range records {
		if storeID != "" && r.StoreID != storeID {
			continue
		}
		if r.Timestamp.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func distinctItems(records []models.TransactionRecord) int {
	items := make(map[string]struct{}, len(records))
	for _, r := range records {
		items[r.ItemID] = struct{}{}
	}
	return len(items)
}
