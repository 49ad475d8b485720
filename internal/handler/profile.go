package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/caregrid/sentinel/internal/behavior"
	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/repository"
	"github.com/caregrid/sentinel/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileHandler handles behavior profile endpoints.
type ProfileHandler struct {
	risk      *service.RiskService
	store     *behavior.Store
	anomalies *repository.AnomalyRepository
	pool      *pgxpool.Pool
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(risk *service.RiskService, store *behavior.Store, anomalies *repository.AnomalyRepository, pool *pgxpool.Pool) *ProfileHandler {
	return &ProfileHandler{risk: risk, store: store, anomalies: anomalies, pool: pool}
}

// Get handles GET /profiles/{userID}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p, err := h.risk.Profile(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// UserSummary handles GET /profiles/{userID}/summary.
func (h *ProfileHandler) UserSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p, err := h.risk.Profile(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p.Summary())
}

// Summary handles GET /summary with an optional limit param.
func (h *ProfileHandler) Summary(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	summaries, err := h.risk.Summaries(r.Context(), limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"profiles": summaries,
		"count":    len(summaries),
	})
}

// anomalyRequest is the shape of POST /profiles/{userID}/anomalies.
type anomalyRequest struct {
	Type        domain.AnomalyType `json:"type"`
	Severity    domain.Severity    `json:"severity"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
	SessionID   string             `json:"sessionId"`
	Context     map[string]any     `json:"context"`
}

// AppendAnomaly handles POST /profiles/{userID}/anomalies: records an
// externally detected anomaly on the profile's history.
func (h *ProfileHandler) AppendAnomaly(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req anomalyRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	switch req.Type {
	case domain.AnomalyTemporal, domain.AnomalyAccess, domain.AnomalyVolume:
	default:
		RespondError(w, domain.ErrValidation("unknown anomaly type: "+string(req.Type)))
		return
	}
	switch req.Severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
	case "":
		req.Severity = domain.SeverityLow
	default:
		RespondError(w, domain.ErrValidation("unknown severity: "+string(req.Severity)))
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		RespondError(w, domain.ErrValidation("confidence must be in [0,1]"))
		return
	}

	anomaly := domain.Anomaly{
		ID:          uuid.New().String(),
		ActorID:     userID,
		SessionID:   req.SessionID,
		Timestamp:   time.Now().UTC(),
		Type:        req.Type,
		Severity:    req.Severity,
		Description: req.Description,
		Confidence:  req.Confidence,
		Context:     req.Context,
	}

	p, err := h.store.AppendAnomaly(r.Context(), userID, anomaly)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.anomalies.Insert(r.Context(), h.pool, anomaly); err != nil {
		RespondError(w, domain.ErrInternal("persist anomaly", err))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"anomaly": anomaly,
		"profile": p.Summary(),
	})
}

// Rebaseline handles POST /profiles/{userID}/rebaseline.
func (h *ProfileHandler) Rebaseline(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p, err := h.store.Rebaseline(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// Export handles GET /profiles/{userID}/export.
func (h *ProfileHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	export, err := h.store.Export(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, export)
}

// Import handles POST /profiles/import.
func (h *ProfileHandler) Import(w http.ResponseWriter, r *http.Request) {
	var export domain.ProfileExport
	if err := DecodeJSON(r, &export); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	p, err := h.store.Import(r.Context(), export)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}
