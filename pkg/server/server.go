// Package server exposes the orchestrator over HTTP: request
// submission, agent and memory inspection, health and metrics. The
// server is opt-in; the CLI works without it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/auth"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/workflow"
)

// Runner handles one workflow request end to end. Satisfied by
// orchestrator.Orchestrator.
type Runner interface {
	HandleRequest(ctx context.Context, input string) workflow.Result
}

// Deps carries everything the server needs.
type Deps struct {
	Runner Runner
	Agents agent.Repository
	Memory *memory.Manager

	// Validator guards /v1 routes. Nil means open access.
	Validator auth.Validator
}

// Server serves the inspection and submission API.
type Server struct {
	cfg       config.ServerConfig
	runner    Runner
	agents    agent.Repository
	memory    *memory.Manager
	validator auth.Validator
	httpSrv   *http.Server
}

// New validates deps and builds the server. It does not start listening.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("server requires a runner")
	}
	if deps.Agents == nil {
		return nil, fmt.Errorf("server requires an agent repository")
	}
	if deps.Memory == nil {
		return nil, fmt.Errorf("server requires a memory manager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		runner:    deps.Runner,
		agents:    deps.Agents,
		memory:    deps.Memory,
		validator: deps.Validator,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler builds the route tree. Health and metrics stay open; the
// /v1 API sits behind the auth middleware when a validator is set.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.validator))
		r.Get("/agents", s.handleListAgents)
		r.Get("/agents/{id}", s.handleGetAgent)
		r.Get("/memory/stats", s.handleMemoryStats)
		r.Get("/memory/{agentID}", s.handleMemoryHistory)
		r.Delete("/memory/{agentID}", s.handleMemoryClear)
		r.Post("/requests", s.handleSubmitRequest)
	})

	return r
}

// Start blocks serving requests until Shutdown or a listen error.
func (s *Server) Start() error {
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.cfg.Address()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.FindAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := s.agents.FindByID(id)
	if errors.Is(err, agent.ErrNotFound) {
		found, err = s.agents.FindByName(id)
	}
	if errors.Is(err, agent.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("agent %q not found", id))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.memory.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMemoryHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	exists, err := s.memory.Exists(agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no memory for agent %q", agentID))
		return
	}

	turns, err := s.memory.History(agentID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"turns":    turns,
		"count":    len(turns),
	})
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	exists, err := s.memory.Exists(agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no memory for agent %q", agentID))
		return
	}
	if err := s.memory.ClearAgent(agentID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitRequest is the POST /v1/requests body.
type submitRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input cannot be empty")
		return
	}

	// The result carries its own success flag and error kind, so a
	// failed workflow is still a 200: the request itself succeeded.
	result := s.runner.HandleRequest(r.Context(), req.Input)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
