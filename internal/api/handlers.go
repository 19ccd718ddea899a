package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/pipeline"
)

// handleTriggerRun kicks off an asynchronous pipeline run over all configured
// sources. The run slot is claimed synchronously, so of two simultaneous
// triggers exactly one gets 202 and the other 409.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Start(s.runCtx); err != nil {
		if errors.Is(err, pipeline.ErrRunActive) {
			s.respondWithError(w, http.StatusConflict, "a run is already active")
			return
		}
		s.logger.Error("could not start pipeline run", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not start run")
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "run started"})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	stats := s.orchestrator.LastRun()
	if stats == nil {
		s.respondWithError(w, http.StatusNotFound, "no completed run yet")
		return
	}
	s.respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"running": s.orchestrator.Running(),
		"state":   s.orchestrator.State().String(),
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.store.Ping(ctx); err != nil {
		healthStatus["store"] = "unhealthy"
		s.logger.Error("health check failed for store", zap.Error(err))
	} else {
		healthStatus["store"] = "healthy"
	}

	if s.cachePinger != nil {
		if err := s.cachePinger.Ping(ctx); err != nil {
			healthStatus["cache"] = "unhealthy"
			s.logger.Error("health check failed for cache", zap.Error(err))
		} else {
			healthStatus["cache"] = "healthy"
		}
	}

	for _, v := range healthStatus {
		if v != "healthy" {
			s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
			return
		}
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
