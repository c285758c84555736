package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pinepulse/internal/models"
	"pinepulse/internal/observability"
	"pinepulse/internal/server"
	"pinepulse/internal/services"
)

// Test helper to create analytics with test data
func newTestAnalytics() *services.Analytics {
	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	qty := func(v float64) *float64 { return &v }

	a := services.NewAnalytics()
	a.SetData([]models.TransactionRecord{
		{
			Timestamp:    base.AddDate(0, 0, -1),
			StoreID:      "S1",
			ItemID:       "Espresso Beans",
			Category:     "drinks",
			Amount:       120,
			QuantitySold: qty(4),
		},
		{
			Timestamp:    base.AddDate(0, 0, -3),
			StoreID:      "S1",
			ItemID:       "Ceramic Mug",
			Category:     "kitchen",
			Amount:       15,
			QuantitySold: qty(1),
		},
		{
			Timestamp:    base.AddDate(0, 0, -5),
			StoreID:      "S2",
			ItemID:       "Green Tea",
			Category:     "drinks",
			Amount:       40,
			QuantitySold: qty(2),
		},
	})
	return a
}

func newTestServer() *server.Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	templateHandlers := &server.TemplateHandlers{Dashboard: handleDashboard}
	return server.NewServer(newTestAnalytics(), logger, templateHandlers, server.Options{
		MetricsHandler: observability.NewMetrics().Handler(),
	})
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/report", http.StatusOK, "application/json"},
		{"/api/categories", http.StatusOK, "application/json"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			// Validate JSON responses
			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

// Test JSON API responses
func TestServer_JSONResponse(t *testing.T) {
	srv := newTestServer()

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/report?store=S1&window=30", nil)
	srv.ServeHTTP(w, r)

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if success, ok := response["success"].(bool); !ok || !success {
		t.Error("expected success=true in response")
	}

	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object in response")
	}

	if data["distinct_items"] != float64(2) {
		t.Errorf("distinct_items = %v, want 2", data["distinct_items"])
	}

	top, ok := data["top"].(map[string]interface{})
	if !ok {
		t.Fatal("expected top segment in report")
	}
	members, ok := top["members"].([]interface{})
	if !ok || len(members) == 0 {
		t.Fatal("expected top members in report")
	}
	if item, ok := members[0].(map[string]interface{}); ok {
		if name, hasName := item["item_id"].(string); !hasName || name == "" {
			t.Error("member should have non-empty item_id field")
		}
		if sales, hasSales := item["total_sales"].(float64); !hasSales || sales <= 0 {
			t.Error("member should have positive total_sales field")
		}
		if velocity, hasVelocity := item["velocity"].(float64); !hasVelocity || velocity < 0 {
			t.Error("member should have non-negative velocity field")
		}
	} else {
		t.Error("invalid member structure")
	}
}

// Test Server-Sent Events routes
func TestServer_SSERoutes(t *testing.T) {
	srv := newTestServer()

	sseRoutes := []string{
		"/sse/report",
		"/sse/refresh-all",
	}

	for _, route := range sseRoutes {
		t.Run(route, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", route, nil)

			srv.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}

			// Check for SSE headers
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}

			if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
				t.Errorf("cache-control = %q, want 'no-cache'", cc)
			}
		})
	}
}

// Test insights endpoint without a configured advisor
func TestServer_InsightsUnconfigured(t *testing.T) {
	srv := newTestServer()

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/insights?store=S1", nil)

	srv.ServeHTTP(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/report", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"PATCH", "/api/categories", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)

	handleDashboard(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, "PinePulse") {
		t.Error("dashboard should contain title")
	}

	// Check for key dashboard components
	expectedComponents := []string{
		"Top Movers",
		"Cold Movers",
		"Category Mix",
		"/sse/report",
		"/sse/refresh-all",
	}

	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}
