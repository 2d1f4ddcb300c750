package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/auth"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/workflow"
)

type scriptedRunner struct {
	lastInput string
	result    workflow.Result
}

func (r *scriptedRunner) HandleRequest(_ context.Context, input string) workflow.Result {
	r.lastInput = input
	return r.result
}

type serverFixture struct {
	runner  *scriptedRunner
	repo    *agent.InMemoryRepository
	mem     *memory.Manager
	handler http.Handler
}

func registerAgent(t *testing.T, repo *agent.InMemoryRepository, name string) *agent.RegisteredAgent {
	t.Helper()
	reg, err := agent.NewRegisteredAgent(name, agent.Capabilities{
		Description:       "Test registration for " + name,
		SystemPrompt:      "You are " + name + ".",
		MaxReasoningTurns: 5,
		MaxMemoryTurns:    50,
		Temperature:       0.2,
		MaxTokens:         512,
		ResponseFormat:    "json",
	})
	if err != nil {
		t.Fatalf("NewRegisteredAgent(%s): %v", name, err)
	}
	if err := repo.Save(reg); err != nil {
		t.Fatalf("Save(%s): %v", name, err)
	}
	return reg
}

func newServerFixture(t *testing.T, validator auth.Validator) *serverFixture {
	t.Helper()

	runner := &scriptedRunner{result: workflow.Result{Success: true, Response: "done"}}
	repo := agent.NewInMemoryRepository()
	registerAgent(t, repo, "research_agent")
	registerAgent(t, repo, "coding_agent")

	mem, err := memory.NewManager(memory.NewInMemoryRepository(), 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	if err := mem.SaveTurn(ctx, "orchestrator", memory.RoleUser, "Summarize the report", nil); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := mem.SaveTurn(ctx, "orchestrator", memory.RoleAssistant, "Summary ready.", nil); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	srv, err := New(config.ServerConfig{}, Deps{
		Runner:    runner,
		Agents:    repo,
		Memory:    mem,
		Validator: validator,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &serverFixture{
		runner:  runner,
		repo:    repo,
		mem:     mem,
		handler: srv.Handler(),
	}
}

func (f *serverFixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestHealthz(t *testing.T) {
	fix := newServerFixture(t, nil)

	rec := fix.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestListAgents(t *testing.T) {
	fix := newServerFixture(t, nil)

	rec := fix.do(t, http.MethodGet, "/v1/agents", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[struct {
		Agents []agent.RegisteredAgent `json:"agents"`
		Count  int                     `json:"count"`
	}](t, rec)
	if body.Count != 2 || len(body.Agents) != 2 {
		t.Fatalf("count = %d (agents %d), want 2", body.Count, len(body.Agents))
	}
	if body.Agents[0].Identity.AgentName != "coding_agent" {
		t.Errorf("first agent = %q, want sorted by name", body.Agents[0].Identity.AgentName)
	}
}

func TestGetAgent(t *testing.T) {
	fix := newServerFixture(t, nil)

	rec := fix.do(t, http.MethodGet, "/v1/agents/research_agent", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by name status = %d, want 200", rec.Code)
	}
	byName := decodeBody[agent.RegisteredAgent](t, rec)
	if byName.Identity.AgentName != "research_agent" {
		t.Errorf("name = %q, want research_agent", byName.Identity.AgentName)
	}

	rec = fix.do(t, http.MethodGet, "/v1/agents/"+byName.Identity.AgentID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by id status = %d, want 200", rec.Code)
	}

	rec = fix.do(t, http.MethodGet, "/v1/agents/no_such_agent", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing agent status = %d, want 404", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] == "" {
		t.Error("404 body has no error message")
	}
}

func TestMemoryStats(t *testing.T) {
	fix := newServerFixture(t, nil)

	rec := fix.do(t, http.MethodGet, "/v1/memory/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	stats := decodeBody[memory.Stats](t, rec)
	if stats.TotalTurns != 2 {
		t.Errorf("TotalTurns = %d, want 2", stats.TotalTurns)
	}
	if stats.TurnsByAgent["orchestrator"] != 2 {
		t.Errorf("TurnsByAgent[orchestrator] = %d, want 2", stats.TurnsByAgent["orchestrator"])
	}
}

func TestMemoryHistory(t *testing.T) {
	fix := newServerFixture(t, nil)

	rec := fix.do(t, http.MethodGet, "/v1/memory/orchestrator", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[struct {
		AgentID string        `json:"agent_id"`
		Turns   []memory.Turn `json:"turns"`
		Count   int           `json:"count"`
	}](t, rec)
	if body.Count != 2 || len(body.Turns) != 2 {
		t.Fatalf("count = %d (turns %d), want 2", body.Count, len(body.Turns))
	}
	if body.Turns[0].Role != memory.RoleUser || body.Turns[0].Content != "Summarize the report" {
		t.Errorf("first turn = [%s] %q", body.Turns[0].Role, body.Turns[0].Content)
	}

	rec = fix.do(t, http.MethodGet, "/v1/memory/ghost", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown agent status = %d, want 404", rec.Code)
	}
}

func TestMemoryClear(t *testing.T) {
	fix := newServerFixture(t, nil)

	rec := fix.do(t, http.MethodDelete, "/v1/memory/orchestrator", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = fix.do(t, http.MethodGet, "/v1/memory/orchestrator", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("post-clear status = %d, want 200", rec.Code)
	}
	body := decodeBody[struct {
		Count int `json:"count"`
	}](t, rec)
	if body.Count != 0 {
		t.Errorf("post-clear count = %d, want 0", body.Count)
	}

	rec = fix.do(t, http.MethodDelete, "/v1/memory/ghost", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown agent status = %d, want 404", rec.Code)
	}
}

func TestSubmitRequest(t *testing.T) {
	fix := newServerFixture(t, nil)
	fix.runner.result = workflow.Result{
		Success:  true,
		Response: "Report summarized.",
		CalledAgents: []workflow.AgentRef{
			{AgentName: "exec_agent", Task: 1},
		},
	}

	rec := fix.do(t, http.MethodPost, "/v1/requests", `{"input": "Summarize the report"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	result := decodeBody[workflow.Result](t, rec)
	if !result.Success || result.Response != "Report summarized." {
		t.Errorf("result = %+v", result)
	}
	if fix.runner.lastInput != "Summarize the report" {
		t.Errorf("runner input = %q", fix.runner.lastInput)
	}

	rec = fix.do(t, http.MethodPost, "/v1/requests", `{"input": ""}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty input status = %d, want 400", rec.Code)
	}

	rec = fix.do(t, http.MethodPost, "/v1/requests", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", rec.Code)
	}
}

func TestSubmitRequest_FailedWorkflowStaysHTTP200(t *testing.T) {
	fix := newServerFixture(t, nil)
	fix.runner.result = workflow.Result{
		Success:    false,
		Response:   `Step "s1" failed: tool denied`,
		Error:      "user_denied",
		FailedTask: 1,
	}

	rec := fix.do(t, http.MethodPost, "/v1/requests", `{"input": "rm the files"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	result := decodeBody[workflow.Result](t, rec)
	if result.Success || result.Error != "user_denied" {
		t.Errorf("result = %+v, want user_denied failure", result)
	}
}

func TestAuthGuardsV1Only(t *testing.T) {
	validator, err := auth.NewStaticValidator("sekrit")
	if err != nil {
		t.Fatalf("NewStaticValidator: %v", err)
	}
	fix := newServerFixture(t, validator)

	if rec := fix.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want open access", rec.Code)
	}
	if rec := fix.do(t, http.MethodGet, "/v1/agents", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
	rec := fix.do(t, http.MethodGet, "/v1/agents", "", map[string]string{"Authorization": "Bearer sekrit"})
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	repo := agent.NewInMemoryRepository()
	mem, err := memory.NewManager(memory.NewInMemoryRepository(), 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	runner := &scriptedRunner{}

	if _, err := New(config.ServerConfig{}, Deps{Agents: repo, Memory: mem}); err == nil {
		t.Error("missing runner should error")
	}
	if _, err := New(config.ServerConfig{}, Deps{Runner: runner, Memory: mem}); err == nil {
		t.Error("missing agents should error")
	}
	if _, err := New(config.ServerConfig{}, Deps{Runner: runner, Agents: repo}); err == nil {
		t.Error("missing memory should error")
	}

	srv, err := New(config.ServerConfig{}, Deps{Runner: runner, Agents: repo, Memory: mem})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.Address() != "127.0.0.1:8080" {
		t.Errorf("Address() = %q, want default", srv.Address())
	}
}
