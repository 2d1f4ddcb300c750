package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/batonlabs/baton/pkg/config"
)

// newMCPTestServer fakes a streamable-http MCP server exposing one
// "lookup" tool.
func newMCPTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mcpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("mcp-session-id", "session-123")

		var result any
		switch req.Method {
		case "initialize":
			result = map[string]any{"protocolVersion": mcpProtocolVersion}
		case "tools/list":
			result = map[string]any{
				"tools": []any{
					map[string]any{
						"name":        "lookup",
						"description": "Look something up",
						"inputSchema": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"query": map[string]any{"type": "string", "description": "What to find"},
								"limit": map[string]any{"type": "integer", "default": 5},
							},
							"required": []any{"query"},
						},
					},
					map[string]any{
						"name":        "hidden",
						"description": "Should be filtered out",
						"inputSchema": map[string]any{"type": "object"},
					},
				},
			}
		case "tools/call":
			params, _ := req.Params.(map[string]any)
			args, _ := params["arguments"].(map[string]any)
			query, _ := args["query"].(string)
			result = map[string]any{
				"content": []any{map[string]any{"type": "text", "text": "answer to " + query}},
			}
		default:
			http.Error(w, "unknown method "+req.Method, http.StatusBadRequest)
			return
		}

		resp := mcpResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestMCPToolset_HTTP(t *testing.T) {
	server := newMCPTestServer(t)
	defer server.Close()

	toolset, err := NewMCPToolset(config.MCPServerConfig{
		Name:   "kb",
		URL:    server.URL,
		Filter: []string{"lookup"},
	})
	if err != nil {
		t.Fatalf("NewMCPToolset error: %v", err)
	}
	defer toolset.Close()

	remoteTools, err := toolset.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools error: %v", err)
	}
	if len(remoteTools) != 1 {
		t.Fatalf("got %d tools, want 1 (filter should drop the rest)", len(remoteTools))
	}

	meta := remoteTools[0].Metadata()
	if meta.Name != "kb_lookup" {
		t.Errorf("name = %q, want server-prefixed kb_lookup", meta.Name)
	}
	if meta.Category != CategoryExternal {
		t.Errorf("category = %q", meta.Category)
	}

	wantParams := []Parameter{
		{Name: "limit", Type: TypeInt, Default: float64(5)},
		{Name: "query", Type: TypeString, Description: "What to find", Required: true},
	}
	if !reflect.DeepEqual(meta.Parameters, wantParams) {
		t.Errorf("parameters = %+v, want %+v", meta.Parameters, wantParams)
	}

	out, err := remoteTools[0].Execute(context.Background(), map[string]any{"query": "gophers"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got := out.String(); got != "answer to gophers" {
		t.Errorf("result = %q", got)
	}

	// The session header from the first response is carried forward.
	toolset.sessionMu.RLock()
	session := toolset.sessionID
	toolset.sessionMu.RUnlock()
	if session != "session-123" {
		t.Errorf("sessionID = %q", session)
	}
}

func TestMCPToolset_RegistersThroughScheduler(t *testing.T) {
	server := newMCPTestServer(t)
	defer server.Close()

	registry := NewRegistry()
	toolsets, err := AttachMCPServers(context.Background(), registry, []config.MCPServerConfig{
		{Name: "kb", URL: server.URL},
	})
	if err != nil {
		t.Fatalf("AttachMCPServers error: %v", err)
	}
	defer func() {
		for _, ts := range toolsets {
			ts.Close()
		}
	}()

	if !registry.Has("kb_lookup") || !registry.Has("kb_hidden") {
		t.Fatalf("remote tools not registered: %v", registry.Names())
	}

	// Digit-string coercion applies to remote tools the same as builtins.
	s := NewScheduler(registry, 0)
	results := s.ExecuteTools(context.Background(), []ToolCall{
		{ID: "kb_lookup-1", Name: "kb_lookup", Args: map[string]any{"query": "cache", "limit": "3"}},
	})
	if !results[0].Success {
		t.Fatalf("remote call failed: %s", results[0].Error)
	}
	if got := results[0].Result.String(); got != "answer to cache" {
		t.Errorf("result = %q", got)
	}
}

func TestNewMCPToolset_Validation(t *testing.T) {
	_, err := NewMCPToolset(config.MCPServerConfig{Name: "bad"})
	if err == nil {
		t.Error("want error when neither command nor url is set")
	}
	_, err = NewMCPToolset(config.MCPServerConfig{Name: "both", URL: "http://x", Command: "npx"})
	if err == nil {
		t.Error("want error when both command and url are set")
	}
}

func TestSchemaToParameters(t *testing.T) {
	params := schemaToParameters(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flag":  map[string]any{"type": "boolean"},
			"items": map[string]any{"type": "array"},
			"meta":  map[string]any{"type": "object"},
			"ratio": map[string]any{"type": "number"},
		},
	})

	types := make(map[string]string, len(params))
	for _, p := range params {
		types[p.Name] = p.Type
	}
	want := map[string]string{
		"flag":  TypeBool,
		"items": TypeList,
		"meta":  TypeDict,
		"ratio": TypeAny,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("types = %v, want %v", types, want)
	}

	if schemaToParameters(nil) != nil {
		t.Error("nil schema should yield nil parameters")
	}
}

func TestEnvSlice(t *testing.T) {
	got := envSlice(map[string]string{"B": "2", "A": "1"})
	want := []string{"A=1", "B=2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("envSlice = %v, want %v", got, want)
	}
	if envSlice(nil) != nil {
		t.Error("nil env should yield nil slice")
	}
}
