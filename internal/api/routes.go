package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/road-telemetry/rts/internal/auth"
	"github.com/road-telemetry/rts/internal/record"
)

// Router assembles the route tree. Health, metrics and the subscriber
// stream stay open; the record routes are guarded when auth is configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/agents/{agentID}/stream", s.handleStream)

	r.Route("/api/v1/records", func(r chi.Router) {
		if s.authMiddleware == nil {
			r.Post("/", s.handleIngest)
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
			return
		}

		r.Use(s.authMiddleware.RequireAuth)
		r.With(s.authMiddleware.RequireScope(auth.ScopeIngest)).Post("/", s.handleIngest)
		r.With(s.authMiddleware.RequireScope(auth.ScopeRead)).Get("/", s.handleList)
		r.With(s.authMiddleware.RequireScope(auth.ScopeRead)).Get("/{id}", s.handleGet)
		r.With(s.authMiddleware.RequireScope(auth.ScopeManage)).Put("/{id}", s.handleUpdate)
		r.With(s.authMiddleware.RequireScope(auth.ScopeManage)).Delete("/{id}", s.handleDelete)
	})

	return r
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var items []record.BatchItem
	if err := decodeStrict(r, &items); err != nil {
		writeAPIError(w, err)
		return
	}
	if len(items) == 0 {
		writeAPIError(w, NewAPIError("BAD_REQUEST", "Batch must contain at least one item", http.StatusBadRequest, nil))
		return
	}

	inserted, err := s.pipeline.Ingest(r.Context(), items)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, inserted)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.reader.List(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if records == nil {
		records = []record.Record{}
	}
	WriteSuccess(w, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	rec, err := s.reader.Get(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var item record.BatchItem
	if err := decodeStrict(r, &item); err != nil {
		writeAPIError(w, err)
		return
	}

	rec, err := s.pipeline.Update(r.Context(), id, item)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if err := s.pipeline.Delete(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"id": id})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		writeAPIError(w, NewAPIError("BAD_REQUEST", "Agent id must not be empty", http.StatusBadRequest, nil))
		return
	}

	if err := s.stream.Subscribe(w, r, agentID); err != nil {
		// The upgrader has already written the handshake error response.
		s.logger.Debug("stream subscription failed", "agentId", agentID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	subsystems := map[string]string{
		"store":    subsystemStatus(s.reader != nil),
		"pipeline": subsystemStatus(s.pipeline != nil),
		"stream":   subsystemStatus(s.stream != nil),
	}

	status := "ok"
	for _, st := range subsystems {
		if st != "ok" {
			status = "degraded"
			break
		}
	}

	health := map[string]interface{}{
		"status":     status,
		"version":    "1.0.0",
		"uptime":     time.Since(s.startTime).String(),
		"subsystems": subsystems,
	}

	if status != "ok" {
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED", "One or more subsystems are unavailable", health)
		return
	}
	WriteSuccess(w, health)
}

func subsystemStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, NewAPIError("BAD_REQUEST", "Record id must be an integer", http.StatusBadRequest, map[string]interface{}{"id": raw})
	}
	return id, nil
}

// decodeStrict decodes the request body into v, rejecting unknown fields
// and trailing data.
func decodeStrict(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewAPIError("BAD_REQUEST", "Malformed JSON body", http.StatusBadRequest, map[string]interface{}{"original": err.Error()})
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return NewAPIError("BAD_REQUEST", "Unexpected data after JSON body", http.StatusBadRequest, nil)
	}
	return nil
}

func writeAPIError(w http.ResponseWriter, err error) {
	status, body := ToAPIError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
