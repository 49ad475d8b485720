package handler

import (
	"net/http"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/service"
)

// ScoreHandler handles event scoring endpoints.
type ScoreHandler struct {
	risk *service.RiskService
}

// NewScoreHandler creates a ScoreHandler.
func NewScoreHandler(risk *service.RiskService) *ScoreHandler {
	return &ScoreHandler{risk: risk}
}

// scoreResponse is the shape of POST /score.
type scoreResponse struct {
	Assessment domain.RiskAssessment  `json:"assessment"`
	Profile    *domain.ProfileSummary `json:"profile,omitempty"`
}

// Score handles POST /score: one event in, one assessment out.
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var ev domain.ActionEvent
	if err := DecodeJSON(r, &ev); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	assessment, profile, err := h.risk.Ingest(r.Context(), &ev)
	if err != nil {
		RespondError(w, err)
		return
	}

	resp := scoreResponse{Assessment: assessment}
	if profile != nil {
		s := profile.Summary()
		resp.Profile = &s
	}
	RespondJSON(w, http.StatusOK, resp)
}

// batchRequest is the shape of POST /score/batch.
type batchRequest struct {
	Records []domain.ActionEvent `json:"records"`
}

// batchResponse wraps per-record outcomes.
type batchResponse struct {
	Records []service.BatchRecord `json:"records"`
	Scored  int                   `json:"scored"`
	Failed  int                   `json:"failed"`
}

// ScoreBatch handles POST /score/batch. The whole batch is scored together
// so the model's spread check sees the full set.
func (h *ScoreHandler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if len(req.Records) == 0 {
		RespondError(w, domain.ErrValidation("records must not be empty"))
		return
	}

	records := h.risk.IngestBatch(r.Context(), req.Records)
	resp := batchResponse{Records: records}
	for _, rec := range records {
		if rec.Error == "" {
			resp.Scored++
		} else {
			resp.Failed++
		}
	}
	RespondJSON(w, http.StatusOK, resp)
}
