package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleScrapeRequest runs the ingestion pipeline once, synchronously, and
// reports the run summary. Per-listing errors are a logging concern; only an
// index fetch failure surfaces to the caller.
func (s *Server) handleScrapeRequest(w http.ResponseWriter, r *http.Request) {
	summary, err := s.pipeline.Run(r.Context())
	if err != nil {
		s.logger.Error("ingestion run failed", zap.Error(err))
		s.respondWithError(w, http.StatusBadGateway, "Could not fetch the listing index")
		return
	}

	s.respondWithJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListingStatus(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if sourceID == "" {
		s.respondWithError(w, http.StatusBadRequest, "sourceID path parameter is required")
		return
	}

	status, err := s.pgStore.GetStatusBySourceID(r.Context(), sourceID)
	if err != nil {
		if err.Error() == "not_found" {
			s.respondWithError(w, http.StatusNotFound, "Listing not found")
			return
		}
		s.logger.Error("failed to get listing status", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve listing")
		return
	}

	s.respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	// Check Postgres
	if err := s.pgStore.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	// Check Redis
	if err := s.redisStore.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	isHealthy := healthStatus["postgres"] == "healthy" && healthStatus["redis"] == "healthy"
	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}

	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
