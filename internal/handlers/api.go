package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pinepulse/internal/errors"
	"pinepulse/internal/insights"
	"pinepulse/internal/observability"
	"pinepulse/internal/report"
	"pinepulse/internal/services"
)

const (
	defaultWindowDays = 30
	cacheMaxAge       = "public, max-age=300"
)

type APIHandlers struct {
	analytics  *services.Analytics
	advisor    *insights.Advisor
	logger     *slog.Logger
	windowDays int
}

// NewAPIHandlers wires the REST surface. advisor may be nil when no API key
// is configured; the insights endpoint then answers 503.
func NewAPIHandlers(analytics *services.Analytics, advisor *insights.Advisor, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics:  analytics,
		advisor:    advisor,
		logger:     logger,
		windowDays: defaultWindowDays,
	}
}

// SetDefaultWindow overrides the fallback window used when the query string
// has none.
func (h *APIHandlers) SetDefaultWindow(days int) {
	if days > 0 {
		h.windowDays = days
	}
}

// reportParams pulls store and window from the query string. A missing
// window falls back to the handler default; a non-numeric or non-positive
// value is a client error.
func reportParams(r *http.Request, fallback int) (storeID string, windowDays int, err error) {
	storeID = r.URL.Query().Get("store")

	windowDays = fallback
	if raw := r.URL.Query().Get("window"); raw != "" {
		windowDays, err = strconv.Atoi(raw)
		if err != nil {
			return "", 0, errors.ValidationWrap(err, "window must be an integer number of days")
		}
	}
	if windowDays <= 0 {
		return "", 0, errors.Validation("window must be a positive number of days")
	}
	return storeID, windowDays, nil
}

func (h *APIHandlers) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := observability.GetRequestID(r.Context())

	switch {
	case stderrors.Is(err, services.ErrNoData):
		errors.WriteError(w, h.logger, errors.NotFound("no transactions for the requested store and window"), requestID)
	case stderrors.Is(err, report.ErrInvalidWindow), stderrors.Is(err, report.ErrInvalidFraction):
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "invalid report parameters"), requestID)
	default:
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "report generation failed"), requestID)
	}
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	storeID, windowDays, err := reportParams(r, h.windowDays)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	rep, err := h.analytics.Report(storeID, windowDays)
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, rep, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleCategoryMix(w http.ResponseWriter, r *http.Request) {
	storeID, windowDays, err := reportParams(r, h.windowDays)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	mix, err := h.analytics.CategoryMix(storeID, windowDays)
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, mix, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	if h.advisor == nil {
		errors.WriteError(w, h.logger, errors.ServiceUnavailable("insights are not configured"), requestID)
		return
	}

	storeID, windowDays, err := reportParams(r, h.windowDays)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	rep, err := h.analytics.Report(storeID, windowDays)
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}

	advisory, err := h.advisor.Generate(r.Context(), rep)
	if err != nil {
		if stderrors.Is(err, insights.ErrUnparsable) {
			errors.WriteError(w, h.logger, errors.Wrap(err, errors.CodeServiceUnavail, "the model returned an unusable reply, try again"), requestID)
			return
		}
		errors.WriteError(w, h.logger, errors.Wrap(err, errors.CodeServiceUnavail, "insight generation failed"), requestID)
		return
	}

	errors.WriteSuccess(w, advisory)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
