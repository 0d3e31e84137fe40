package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sitevolt/internal/buildinfo"
	"sitevolt/internal/ingest"
	"sitevolt/internal/model"
	"sitevolt/internal/opt"
	"sitevolt/internal/store"
)

// CandidateSetsHandler handles POST/GET /v1/candidate-sets. Uploads are JSON
// bodies or raw CSV (Content-Type text/csv) with the candidate column names.
func (s *Server) CandidateSetsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanPlan() {
			writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path)
			return
		}
		var tenant, name string
		var cands []model.CandidateIn
		if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
			parsed, err := ingest.ParseCandidates(r.Body)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
				return
			}
			cands = parsed
			name = r.URL.Query().Get("name")
			_, tenant = s.withTenant(r)
		} else {
			var req struct {
				TenantID   string              `json:"tenantId"`
				Name       string              `json:"name"`
				Candidates []model.CandidateIn `json:"candidates"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
				return
			}
			tenant, name, cands = req.TenantID, req.Name, req.Candidates
			if tenant == "" {
				_, tenant = s.withTenant(r)
			}
		}
		if len(cands) == 0 {
			writeProblem(w, http.StatusBadRequest, "Empty candidate set", "at least one candidate required", r.URL.Path)
			return
		}
		cs, err := s.Store.CreateCandidateSet(r.Context(), tenant, name, cands)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create candidate set failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, cs)
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListCandidateSets(r.Context(), tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List candidate sets failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// CandidateSetByIDHandler handles GET /v1/candidate-sets/{id}
func (s *Server) CandidateSetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/candidate-sets/")
	if id == "" || id == r.URL.Path {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	cs, err := s.Store.GetCandidateSet(r.Context(), tenant, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Candidate set not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get candidate set failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		_, req.TenantID = s.withTenant(r)
	}
	if !s.allowOptimize(req.TenantID) {
		writeProblem(w, http.StatusTooManyRequests, "Rate limited", "optimize rate limit exceeded for tenant", r.URL.Path)
		return
	}
	req.Config = s.Baseline.MergeOptimize(req.Config)
	req.Solver = s.Baseline.MergeSolver(req.Solver)
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	if req.CandidateSetID != "" {
		cs, err := s.Store.GetCandidateSet(r.Context(), req.TenantID, req.CandidateSetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Candidate set not found", req.CandidateSetID, r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Get candidate set failed", err.Error(), r.URL.Path)
			return
		}
		req.Candidates = cs.Candidates
	}

	run := model.Run{
		ID:       "run_" + uuid.NewString(),
		TenantID: req.TenantID,
		Status:   "pending",
		Config:   req.Config,
		Solver:   req.Solver,
	}
	if err := s.Store.CreateRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}

	if req.Async {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), toOptSolver(req.Solver).TimeLimit+30*time.Second)
			defer cancel()
			_ = s.runOptimize(ctx, &run, req)
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "status": "pending"})
		return
	}

	if err := s.runOptimize(r.Context(), &run, req); err != nil {
		s.writeOptimizeError(w, r, run.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": run.ID, "outcome": run.Outcome, "selection": run.Selection})
}

// writeOptimizeError maps engine errors onto HTTP problems. Caller mistakes
// are 4xx; infeasibility is 422 with structured advisories; anything pointing
// at the engine itself is 500.
func (s *Server) writeOptimizeError(w http.ResponseWriter, r *http.Request, runID string, err error) {
	var cfgErr *opt.ConfigurationError
	var dataErr *opt.DataError
	var infe *opt.InfeasibleError
	switch {
	case errors.As(err, &cfgErr):
		writeProblem(w, http.StatusBadRequest, "Invalid configuration", cfgErr.Error(), r.URL.Path)
	case errors.As(err, &dataErr):
		writeProblem(w, http.StatusBadRequest, "Invalid candidate data", dataErr.Error(), r.URL.Path)
	case errors.As(err, &infe):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"type":       "about:blank",
			"title":      "Infeasible",
			"status":     http.StatusUnprocessableEntity,
			"detail":     err.Error(),
			"instance":   r.URL.Path,
			"runId":      runID,
			"advisories": advisoriesOut(infe.Advisories),
		})
	default:
		writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
	}
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/runs" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRuns(r.Context(), tenant, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id} and GET /v1/runs/{id}/events/stream
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
		// SSE for run events
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, tenant := s.withTenant(r)
		if _, err := s.Store.GetRun(r.Context(), tenant, id); err != nil {
			writeProblem(w, 404, "Run not found", err.Error(), r.URL.Path)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		ch := s.Broker.Subscribe(id)
		defer s.Broker.Unsubscribe(id, ch)
		// initial heartbeat
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
		notify := r.Context().Done()
		for {
			select {
			case <-notify:
				return
			case evt := <-ch:
				b, _ := json.Marshal(evt.Data)
				fmt.Fprintf(w, "event: %s\n", evt.Type)
				fmt.Fprintf(w, "data: %s\n\n", string(b))
				flusher.Flush()
			case <-time.After(15 * time.Second):
				fmt.Fprintf(w, "event: heartbeat\n")
				fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
				flusher.Flush()
			}
		}
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	run, err := s.Store.GetRun(r.Context(), tenant, id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = p.Tenant
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Subscription not found", "", r.URL.Path)
			return
		}
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
