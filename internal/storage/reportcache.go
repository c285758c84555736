// Package storage provides a pebble-backed cache for computed reports so a
// busy dashboard does not re-rank the same store/window on every poll.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"pinepulse/internal/models"
)

type ReportCache struct {
	db *pebble.DB
}

func OpenReportCache(dir string) (*ReportCache, error) {
	opts := &pebble.Options{
		MemTableSize:          8 << 20,
		L0CompactionThreshold: 4,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &ReportCache{db: db}, nil
}

func (c *ReportCache) Close() error { return c.db.Close() }

// Get returns the cached report for key, if any. Undecodable entries are
// treated as misses.
func (c *ReportCache) Get(key string) (models.RankedReport, bool) {
	v, closer, err := c.db.Get([]byte(key))
	if err != nil {
		return models.RankedReport{}, false
	}
	defer closer.Close()

	var report models.RankedReport
	if err := json.Unmarshal(v, &report); err != nil {
		return models.RankedReport{}, false
	}
	return report, true
}

func (c *ReportCache) Put(key string, report models.RankedReport) error {
	v, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// Cached reports are recomputable, so a lost write costs nothing.
	if err := c.db.Set([]byte(key), v, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}
