package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"pinepulse/internal/models"
	"pinepulse/internal/services"
)

const maxTableRows = 25

var moversTableTemplate = template.Must(template.New("moversTable").Parse(`
<div id="movers-content">
<table class="modern-table">
<thead><tr><th>SKU</th><th>Sales</th><th>Velocity</th><th>Days Supply</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.ItemID}}</td>
<td><strong>${{.Sales}}</strong></td>
<td>{{.Velocity}}</td>
<td>{{.DaysSupply}}</td>
</tr>
{{end}}</tbody>
</table>
</div>`))

type SSEHandlers struct {
	analytics  *services.Analytics
	logger     *slog.Logger
	windowDays int
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics:  analytics,
		logger:     logger,
		windowDays: defaultWindowDays,
	}
}

func (h *SSEHandlers) SetDefaultWindow(days int) {
	if days > 0 {
		h.windowDays = days
	}
}

type moversRow struct {
	ItemID     string
	Sales      string
	Velocity   string
	DaysSupply string
}

func (h *SSEHandlers) renderMoversTable(members []models.ItemAggregate) (string, error) {
	if len(members) > maxTableRows {
		members = members[:maxTableRows]
	}

	rows := make([]moversRow, len(members))
	for i, m := range members {
		rows[i] = moversRow{
			ItemID:     m.ItemID,
			Sales:      fmt.Sprintf("%.2f", m.TotalSales),
			Velocity:   fmt.Sprintf("%.1f", m.Velocity),
			DaysSupply: "unknown",
		}
		if m.DaysSupply != nil {
			rows[i].DaysSupply = fmt.Sprintf("%.1f", *m.DaysSupply)
		}
	}

	var buf strings.Builder
	err := moversTableTemplate.Execute(&buf, rows)
	return buf.String(), err
}

func (h *SSEHandlers) report(r *http.Request) (models.RankedReport, error) {
	storeID, windowDays, err := reportParams(r, h.windowDays)
	if err != nil {
		return models.RankedReport{}, err
	}
	return h.analytics.Report(storeID, windowDays)
}

// HandleReport streams the ranked segments as datastar signals plus a
// rendered top-movers table. Errors surface as an inline element patch; SSE
// responses have no status code left to change.
func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, err := h.report(r)
	if err != nil {
		h.logger.Warn("sse report failed", "error", err)
		sse.PatchElements(`<div id="movers-content">No data for the selected store and window</div>`)
		return
	}

	signals, err := json.Marshal(map[string]any{
		"topData":      rep.Top.Members,
		"bottomData":   rep.Bottom.Members,
		"categoryData": rep.Categories,
	})
	if err != nil {
		h.logger.Error("marshal report signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	html, err := h.renderMoversTable(rep.Top.Members)
	if err != nil {
		h.logger.Error("render movers table", "error", err)
		return
	}
	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, err := h.report(r)
	if err != nil {
		h.logger.Warn("sse refresh failed", "error", err)
		sse.PatchElements(`<div id="movers-content">No data for the selected store and window</div>`)
		return
	}

	html, err := h.renderMoversTable(rep.Top.Members)
	if err != nil {
		h.logger.Error("render movers table", "error", err)
		return
	}
	sse.PatchElements(html)

	allSignals, err := json.Marshal(map[string]any{
		"topData":      rep.Top.Members,
		"bottomData":   rep.Bottom.Members,
		"categoryData": rep.Categories,
		"statsData":    h.analytics.Stats(),
	})
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
