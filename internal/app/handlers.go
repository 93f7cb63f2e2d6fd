package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/promptroute/promptroute"
	"github.com/promptroute/promptroute/types"
)

func (s *Server) mountRoutes() {
	s.r.Get("/healthz", s.handleHealthz)
	s.r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/template", s.handleTemplate)
		r.Get("/stats", s.handleStats)
		r.Get("/events", s.handleEvents)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req promptroute.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PromptID == "" {
		jsonError(w, "promptId required", http.StatusBadRequest)
		return
	}

	resp, err := s.Engine().ChatCompletion(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var req promptroute.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PromptID == "" {
		jsonError(w, "promptId required", http.StatusBadRequest)
		return
	}

	msgs, err := s.Engine().GetTemplate(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"global":      s.stats.Global(),
		"by_prompt":   s.stats.Summary(),
		"by_provider": s.stats.SummaryByProvider(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "event store disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	events, err := s.store.ListEvents(r.Context(), limit, offset)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// writeEngineError maps engine error kinds onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var ee *types.Error
	if errors.As(err, &ee) {
		body["kind"] = ee.Kind
		body["code"] = ee.Code
		body["error"] = ee.Message
		if len(ee.Details) > 0 {
			body["details"] = ee.Details
		}
		switch ee.Kind {
		case types.KindConfiguration, types.KindTemplate:
			status = http.StatusUnprocessableEntity
		case types.KindExecution:
			if ee.Code == "unknown-prompt" || ee.Code == "unknown-variant" {
				status = http.StatusNotFound
			} else {
				status = http.StatusBadGateway
			}
		}
	}
	var pe *types.ProviderError
	if errors.As(err, &pe) {
		body["reason"] = pe.Reason
		body["retryable"] = pe.Retryable
		if pe.Reason == types.ReasonRateLimit {
			status = http.StatusTooManyRequests
		} else {
			status = http.StatusBadGateway
		}
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
