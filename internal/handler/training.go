package handler

import (
	"net/http"

	"github.com/caregrid/sentinel/internal/service"
)

// TrainingHandler handles model lifecycle endpoints.
type TrainingHandler struct {
	training *service.TrainingService
}

// NewTrainingHandler creates a TrainingHandler.
func NewTrainingHandler(training *service.TrainingService) *TrainingHandler {
	return &TrainingHandler{training: training}
}

// Train handles POST /model/train.
func (h *TrainingHandler) Train(w http.ResponseWriter, r *http.Request) {
	result, err := h.training.Train(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// Status handles GET /model/status.
func (h *TrainingHandler) Status(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.training.Status())
}

// Recompute handles POST /risk/recompute.
func (h *TrainingHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	result, err := h.training.Recompute(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
