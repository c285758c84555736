// Package ingest resolves raw sale data into typed TransactionRecords. It owns
// the messy boundary work the reporting core refuses to do: guessing which CSV
// column means what, parsing dates, and tolerating files that have no quantity
// information at all.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pinepulse/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"01/02/2006",
}

// columnMap holds resolved header indices; -1 means the column is absent.
type columnMap struct {
	timestamp int
	store     int
	item      int
	category  int
	amount    int
	quantity  int
	stock     int
}

// ResolveColumns maps a CSV header onto record fields by keyword substring,
// the same heuristic the source reports applied to arbitrary uploads.
// Timestamp, item and amount are required; everything else may be missing.
func ResolveColumns(header []string) (columnMap, error) {
	cols := columnMap{timestamp: -1, store: -1, item: -1, category: -1, amount: -1, quantity: -1, stock: -1}

	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case cols.timestamp < 0 && (strings.Contains(name, "date") || strings.Contains(name, "time")):
			cols.timestamp = i
		case cols.store < 0 && strings.Contains(name, "store"):
			cols.store = i
		case cols.category < 0 && strings.Contains(name, "categ"):
			cols.category = i
		case cols.item < 0 && (strings.Contains(name, "item") || strings.Contains(name, "product") || strings.Contains(name, "sku")):
			cols.item = i
		case cols.amount < 0 && (strings.Contains(name, "amount") || strings.Contains(name, "total") || strings.Contains(name, "price") || strings.Contains(name, "sales") || strings.Contains(name, "revenue")):
			cols.amount = i
		case cols.quantity < 0 && (strings.Contains(name, "qty") || strings.Contains(name, "quantity") || strings.Contains(name, "units")):
			cols.quantity = i
		case cols.stock < 0 && (strings.Contains(name, "stock") || strings.Contains(name, "remaining") || strings.Contains(name, "inventory")):
			cols.stock = i
		}
	}

	if cols.timestamp < 0 {
		return cols, fmt.Errorf("no date column found in header %v", header)
	}
	if cols.item < 0 {
		return cols, fmt.Errorf("no item column found in header %v", header)
	}
	if cols.amount < 0 {
		return cols, fmt.Errorf("no amount column found in header %v", header)
	}
	return cols, nil
}

func parseRecord(fields []string, cols columnMap) (models.TransactionRecord, error) {
	need := cols.item
	if cols.amount > need {
		need = cols.amount
	}
	if cols.timestamp > need {
		need = cols.timestamp
	}
	if len(fields) <= need {
		return models.TransactionRecord{}, fmt.Errorf("insufficient columns")
	}

	ts, err := parseDate(strings.TrimSpace(fields[cols.timestamp]))
	if err != nil {
		return models.TransactionRecord{}, err
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(fields[cols.amount]), 64)
	if err != nil {
		return models.TransactionRecord{}, err
	}
	// ParseFloat accepts "NaN" and "Inf"; neither is a sale amount, and a
	// single NaN would poison every total it is summed into.
	if !finite(amount) {
		return models.TransactionRecord{}, fmt.Errorf("non-finite amount %v", amount)
	}
	if amount < 0 {
		return models.TransactionRecord{}, fmt.Errorf("negative amount %v", amount)
	}

	item := strings.TrimSpace(fields[cols.item])
	if item == "" {
		return models.TransactionRecord{}, fmt.Errorf("empty item id")
	}

	rec := models.TransactionRecord{
		Timestamp: ts,
		ItemID:    item,
		Amount:    amount,
	}
	if cols.store >= 0 && cols.store < len(fields) {
		rec.StoreID = strings.TrimSpace(fields[cols.store])
	}
	if cols.category >= 0 && cols.category < len(fields) {
		rec.Category = strings.TrimSpace(fields[cols.category])
	}
	if cols.quantity >= 0 && cols.quantity < len(fields) {
		if q, err := strconv.ParseFloat(strings.TrimSpace(fields[cols.quantity]), 64); err == nil && finite(q) {
			rec.QuantitySold = &q
		}
	}
	if cols.stock >= 0 && cols.stock < len(fields) {
		if s, err := strconv.ParseFloat(strings.TrimSpace(fields[cols.stock]), 64); err == nil && finite(s) {
			rec.StockRemaining = &s
		}
	}
	return rec, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// LoadCSV streams a transaction CSV into typed records. Malformed rows are
// skipped; a file that yields no valid rows at all is an error.
func LoadCSV(ctx context.Context, filename string) ([]models.TransactionRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file")
	}
	cols, err := ResolveColumns(strings.Split(scanner.Text(), ","))
	if err != nil {
		return nil, fmt.Errorf("resolve columns: %w", err)
	}

	var (
		mu      sync.Mutex
		records []models.TransactionRecord
	)

	batch := make([]string, 0, batchSize)
	flush := func(lines []string) error {
		parsed, err := parseBatch(ctx, lines, cols)
		if err != nil {
			return err
		}
		mu.Lock()
		records = append(records, parsed...)
		mu.Unlock()
		return nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch = append(batch, scanner.Text())
		if len(batch) >= batchSize {
			if err := flush(batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := flush(batch); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no valid records found")
	}
	return records, nil
}

func parseBatch(ctx context.Context, lines []string, cols columnMap) ([]models.TransactionRecord, error) {
	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	parsed := make([]*models.TransactionRecord, len(lines))

	for i, line := range lines {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rec, err := parseRecord(strings.Split(line, ","), cols)
			if err != nil {
				return nil // skip invalid rows
			}
			parsed[i] = &rec
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}

	// Preserve file order so stock-level resolution stays deterministic.
	out := make([]models.TransactionRecord, 0, len(parsed))
	for _, rec := range parsed {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}
