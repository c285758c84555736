package handlers

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pinepulse/internal/models"
	"pinepulse/internal/services"
)

func testAnalytics(t *testing.T) *services.Analytics {
	t.Helper()

	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	mk := func(daysAgo int, item, category string, amount float64) models.TransactionRecord {
		return models.TransactionRecord{
			Timestamp: base.AddDate(0, 0, -daysAgo),
			StoreID:   "S1",
			ItemID:    item,
			Category:  category,
			Amount:    amount,
		}
	}

	a := services.NewAnalytics()
	a.SetData([]models.TransactionRecord{
		mk(1, "Espresso Beans", "drinks", 120),
		mk(2, "Espresso Beans", "drinks", 80),
		mk(3, "Ceramic Mug", "kitchen", 15),
		mk(5, "Green Tea", "drinks", 40),
	})
	return a
}

func newTestSSEHandlers(t *testing.T) *SSEHandlers {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSSEHandlers(testAnalytics(t), logger)
}

func TestSSEHandlers_HandleReport(t *testing.T) {
	h := newTestSSEHandlers(t)

	req := httptest.NewRequest("GET", "/sse/report?store=S1&window=30", nil)
	w := httptest.NewRecorder()

	h.HandleReport(w, req)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := w.Body.String()
	for _, signal := range []string{"topData", "bottomData", "categoryData"} {
		if !strings.Contains(body, signal) {
			t.Errorf("body missing signal %q", signal)
		}
	}
	if !strings.Contains(body, "Espresso Beans") {
		t.Error("body missing top mover in rendered table")
	}
	if !strings.Contains(body, "event:") || !strings.Contains(body, "data:") {
		t.Error("body is not in SSE format")
	}
}

func TestSSEHandlers_HandleReport_NoData(t *testing.T) {
	h := newTestSSEHandlers(t)

	req := httptest.NewRequest("GET", "/sse/report?store=missing", nil)
	w := httptest.NewRecorder()

	h.HandleReport(w, req)

	if !strings.Contains(w.Body.String(), "No data") {
		t.Error("expected inline no-data patch for unknown store")
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	h := newTestSSEHandlers(t)

	req := httptest.NewRequest("GET", "/sse/refresh-all", nil)
	w := httptest.NewRecorder()

	h.HandleRefreshAll(w, req)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}

	body := w.Body.String()
	for _, signal := range []string{"topData", "bottomData", "categoryData", "statsData"} {
		if !strings.Contains(body, signal) {
			t.Errorf("body missing signal %q", signal)
		}
	}
}

func TestSSEHandlers_RenderMoversTable(t *testing.T) {
	h := newTestSSEHandlers(t)

	supply := 12.5
	html, err := h.renderMoversTable([]models.ItemAggregate{
		{ItemID: "Espresso Beans", TotalSales: 200, Velocity: 6.7, DaysSupply: &supply},
		{ItemID: "Green Tea", TotalSales: 40, Velocity: 1.3},
	})
	if err != nil {
		t.Fatalf("renderMoversTable() error = %v", err)
	}

	for _, want := range []string{"movers-content", "Espresso Beans", "$200.00", "12.5", "unknown"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered table missing %q", want)
		}
	}
}

func TestSSEHandlers_RenderMoversTable_RowCap(t *testing.T) {
	h := newTestSSEHandlers(t)

	members := make([]models.ItemAggregate, maxTableRows+10)
	for i := range members {
		members[i] = models.ItemAggregate{ItemID: "item", TotalSales: 1, Velocity: 0.1}
	}

	html, err := h.renderMoversTable(members)
	if err != nil {
		t.Fatalf("renderMoversTable() error = %v", err)
	}
	if got := strings.Count(html, "<tr>") - 1; got != maxTableRows {
		t.Errorf("rendered %d rows, want %d", got, maxTableRows)
	}
}
