package handler

import (
	"encoding/json"
	"net/http"

	"github.com/caregrid/sentinel/internal/infra"
	"github.com/caregrid/sentinel/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler returns a health check endpoint. Reports database
// reachability and whether a trained model is loaded; a missing model is not
// unhealthy, scoring degrades to the heuristic path.
func HealthHandler(pool *pgxpool.Pool, models *model.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := infra.HealthCheck(r.Context(), pool); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "healthy",
			"modelTrained": models.Status().Trained,
		})
	}
}
