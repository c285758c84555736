package services

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"pinepulse/internal/models"
	"pinepulse/internal/report"
)

func fptr(v float64) *float64 { return &v }

func testRecords() []models.TransactionRecord {
	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	mk := func(daysAgo int, store, item, cat string, amount float64) models.TransactionRecord {
		return models.TransactionRecord{
			Timestamp: base.AddDate(0, 0, -daysAgo),
			StoreID:   store,
			ItemID:    item,
			Category:  cat,
			Amount:    amount,
		}
	}

	return []models.TransactionRecord{
		mk(0, "S1", "Green Tea", "drinks", 100),
		mk(1, "S1", "Espresso Beans", "drinks", 250),
		mk(2, "S1", "Mug", "goods", 10),
		mk(3, "S1", "Green Tea", "drinks", 40),
		mk(5, "S2", "Notebook", "stationery", 60),
		// Far outside any 30-day window for S1.
		mk(120, "S1", "Seasonal Gift Box", "goods", 999),
	}
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.fraction != report.DefaultSegmentFraction {
		t.Errorf("fraction = %v, want %v", a.fraction, report.DefaultSegmentFraction)
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
}

func TestAnalytics_Report(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRecords())

	rep, err := a.Report("S1", 30)
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}

	// Seasonal Gift Box is 120 days old and must not appear.
	if rep.DistinctItems != 3 {
		t.Errorf("distinct items = %d, want 3", rep.DistinctItems)
	}
	if rep.SegmentSize != 1 {
		t.Errorf("segment size = %d, want 1", rep.SegmentSize)
	}
	if rep.StoreID != "S1" || rep.WindowDays != 30 {
		t.Errorf("report header = %+v", rep)
	}

	if got := rep.Top.Members[0].ItemID; got != "Espresso Beans" {
		t.Errorf("top item = %q, want Espresso Beans", got)
	}
	if got := rep.Bottom.Members[0].ItemID; got != "Mug" {
		t.Errorf("bottom item = %q, want Mug", got)
	}

	if len(rep.Categories) != 2 {
		t.Fatalf("categories = %+v, want drinks and goods", rep.Categories)
	}
	if rep.Categories[0].Category != "drinks" || rep.Categories[0].TotalSales != 390 {
		t.Errorf("categories[0] = %+v, want drinks with 390", rep.Categories[0])
	}
}

func TestAnalytics_Report_AllStores(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRecords())

	rep, err := a.Report("", 30)
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}

	// Empty store means the whole dataset, so S2's notebook counts too.
	if rep.DistinctItems != 4 {
		t.Errorf("distinct items = %d, want 4", rep.DistinctItems)
	}
	if rep.StoreID != "" {
		t.Errorf("store id = %q, want empty", rep.StoreID)
	}
}

func TestAnalytics_Report_Errors(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRecords())

	tests := []struct {
		name    string
		store   string
		window  int
		wantErr error
	}{
		{"unknown store", "S9", 30, ErrNoData},
		{"zero window", "S1", 0, report.ErrInvalidWindow},
		{"negative window", "S1", -5, report.ErrInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Report(tt.store, tt.window)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Report() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	empty := NewAnalytics()
	if _, err := empty.Report("S1", 30); !errors.Is(err, ErrNoData) {
		t.Errorf("empty dataset error = %v, want %v", err, ErrNoData)
	}
}

func TestAnalytics_Report_Deterministic(t *testing.T) {
	a := NewAnalytics()
	records := testRecords()
	records[0].QuantitySold = fptr(12)
	a.SetData(records)

	r1, err := a.Report("S1", 30)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := a.Report("S1", 30)
	if err != nil {
		t.Fatal(err)
	}

	r1.GeneratedAt = time.Time{}
	r2.GeneratedAt = time.Time{}
	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("reports differ between identical calls:\n%+v\n%+v", r1, r2)
	}
}

type fakeCache struct {
	store map[string]models.RankedReport
	puts  int
	gets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]models.RankedReport)}
}

func (c *fakeCache) Get(key string) (models.RankedReport, bool) {
	c.gets++
	r, ok := c.store[key]
	return r, ok
}

func (c *fakeCache) Put(key string, r models.RankedReport) error {
	c.puts++
	c.store[key] = r
	return nil
}

func TestAnalytics_Report_CacheInvalidation(t *testing.T) {
	a := NewAnalytics()
	cache := newFakeCache()
	a.SetCache(cache)
	a.SetData(testRecords())

	first, err := a.Report("S1", 30)
	if err != nil {
		t.Fatal(err)
	}
	if cache.puts != 1 {
		t.Errorf("puts = %d, want 1 after first report", cache.puts)
	}

	second, err := a.Report("S1", 30)
	if err != nil {
		t.Fatal(err)
	}
	if cache.puts != 1 {
		t.Errorf("puts = %d, second call should hit the cache", cache.puts)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached report should equal the computed one")
	}

	// Any mutation bumps the version, so the old entry can never be served.
	a.Append(models.TransactionRecord{
		Timestamp: time.Date(2024, 5, 20, 13, 0, 0, 0, time.UTC),
		StoreID:   "S1",
		ItemID:    "Green Tea",
		Amount:    35,
	})

	third, err := a.Report("S1", 30)
	if err != nil {
		t.Fatal(err)
	}
	if cache.puts != 2 {
		t.Errorf("puts = %d, mutation should force a recompute", cache.puts)
	}
	if third.Categories[0].TotalSales != first.Categories[0].TotalSales+35 {
		t.Errorf("recomputed drinks total = %v, want %v", third.Categories[0].TotalSales, first.Categories[0].TotalSales+35)
	}
}

func TestAnalytics_CategoryMix(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRecords())

	mix, err := a.CategoryMix("S1", 30)
	if err != nil {
		t.Fatalf("CategoryMix() failed: %v", err)
	}
	if len(mix) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(mix))
	}
	if mix[0].Category != "drinks" {
		t.Errorf("mix[0] = %+v, want drinks first", mix[0])
	}

	if _, err := a.CategoryMix("S9", 30); !errors.Is(err, ErrNoData) {
		t.Errorf("unknown store error = %v, want %v", err, ErrNoData)
	}
	if _, err := a.CategoryMix("S1", 0); !errors.Is(err, report.ErrInvalidWindow) {
		t.Errorf("zero window error = %v, want %v", err, report.ErrInvalidWindow)
	}
}

func TestAnalytics_LoadFromCSV(t *testing.T) {
	csv := `transaction_date,store_id,product_name,category,total_amount
2024-05-01,S1,Green Tea,drinks,12.50
2024-05-02,S1,Mug,goods,8.00`

	f, err := os.CreateTemp(t.TempDir(), "sales*.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(csv); err != nil {
		t.Fatal(err)
	}
	f.Close()

	a := NewAnalytics()
	if err := a.LoadFromCSV(context.Background(), f.Name()); err != nil {
		t.Fatalf("LoadFromCSV() failed: %v", err)
	}

	rep, err := a.Report("S1", 30)
	if err != nil {
		t.Fatalf("Report() after load failed: %v", err)
	}
	if rep.DistinctItems != 2 {
		t.Errorf("distinct items = %d, want 2", rep.DistinctItems)
	}
}

func TestAnalytics_LoadFromCSV_MissingFile(t *testing.T) {
	a := NewAnalytics()
	if err := a.LoadFromCSV(context.Background(), "does-not-exist.csv"); err == nil {
		t.Error("LoadFromCSV() should fail for a missing file")
	}
}

func TestAnalytics_Stats(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRecords())

	stats := a.Stats()
	if stats["record_count"] != 6 {
		t.Errorf("record_count = %v, want 6", stats["record_count"])
	}
	if stats["stores"] != 2 {
		t.Errorf("stores = %v, want 2", stats["stores"])
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRecords())

	done := make(chan bool, 20)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()
			_, _ = a.Report("S1", 30)
			_, _ = a.CategoryMix("", 30)
			_ = a.Stats()
		}()
		go func() {
			defer func() { done <- true }()
			a.Append(models.TransactionRecord{
				Timestamp: time.Date(2024, 5, 20, 14, 0, 0, 0, time.UTC),
				StoreID:   "S1",
				ItemID:    "Green Tea",
				Amount:    1,
			})
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

func BenchmarkAnalytics_Report(b *testing.B) {
	a := NewAnalytics()
	base := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	records := make([]models.TransactionRecord, 5000)
	for i := range records {
		records[i] = models.TransactionRecord{
			Timestamp: base.AddDate(0, 0, -(i % 25)),
			StoreID:   "S1",
			ItemID:    "item" + string(rune('a'+i%150)),
			Category:  "cat" + string(rune('a'+i%8)),
			Amount:    float64(i%97) * 2.5,
		}
	}
	a.SetData(records)

	for b.Loop() {
		_, _ = a.Report("S1", 30)
	}
}
