package handler

import (
	"net/http"
	"strconv"

	"github.com/caregrid/sentinel/internal/analytics"
	"github.com/caregrid/sentinel/internal/domain"
)

// AnalyticsHandler handles reporting endpoints.
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator}
}

func windowDays(r *http.Request) int {
	days := 30
	if s := r.URL.Query().Get("days"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}
	return days
}

// Overview handles GET /analytics/overview.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.aggregator.GetOverview(r.Context(), windowDays(r))
	if err != nil {
		RespondError(w, domain.ErrInternal("analytics overview", err))
		return
	}
	RespondJSON(w, http.StatusOK, ov)
}

// TopUsers handles GET /analytics/top-users.
func (h *AnalyticsHandler) TopUsers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	users, err := h.aggregator.TopUsers(r.Context(), windowDays(r), limit)
	if err != nil {
		RespondError(w, domain.ErrInternal("analytics top users", err))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// Trend handles GET /analytics/trend.
func (h *AnalyticsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	points, err := h.aggregator.Trend(r.Context(), windowDays(r))
	if err != nil {
		RespondError(w, domain.ErrInternal("analytics trend", err))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"points": points})
}
