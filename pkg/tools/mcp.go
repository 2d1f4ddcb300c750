package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/httpclient"
)

const (
	mcpProtocolVersion = "2024-11-05"
	mcpClientName      = "baton"
	mcpClientVersion   = "1.0.0"

	// mcpStreamTimeout bounds reading one event-stream response.
	mcpStreamTimeout = 5 * time.Minute
)

// MCPToolset connects to one MCP (Model Context Protocol) server and
// exposes its tools through the registry. The connection is lazy: nothing
// is spawned or dialed until Tools is first called.
//
// Transports: stdio spawns a subprocess via mcp-go; streamable-http
// speaks JSON-RPC over the retrying httpclient, tracking the
// mcp-session-id header across requests.
type MCPToolset struct {
	cfg       config.MCPServerConfig
	filterSet map[string]bool

	mu        sync.Mutex
	stdio     *mcpclient.Client
	http      *httpclient.Client
	sessionMu sync.RWMutex
	sessionID string
	tools     []Tool
	connected bool
}

// NewMCPToolset creates a toolset for one configured server.
func NewMCPToolset(cfg config.MCPServerConfig) (*MCPToolset, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	return &MCPToolset{cfg: cfg, filterSet: filterSet}, nil
}

// Name returns the configured server name.
func (t *MCPToolset) Name() string {
	return t.cfg.Name
}

// Tools lists the server's tools, connecting on first use.
func (t *MCPToolset) Tools(ctx context.Context) ([]Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		var err error
		if t.cfg.Transport == "stdio" {
			err = t.connectStdio(ctx)
		} else {
			err = t.connectHTTP(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %q: %w", t.cfg.Name, err)
		}
	}

	return t.tools, nil
}

// Close shuts the connection down.
func (t *MCPToolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.stdio != nil {
		err = t.stdio.Close()
		t.stdio = nil
	}
	t.http = nil
	t.tools = nil
	t.connected = false
	return err
}

func (t *MCPToolset) connectStdio(ctx context.Context) error {
	cli, err := mcpclient.NewStdioMCPClient(t.cfg.Command, envSlice(t.cfg.Env), t.cfg.Args...)
	if err != nil {
		return fmt.Errorf("failed to spawn %s: %w", t.cfg.Command, err)
	}

	if err := cli.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: mcpClientName, Version: mcpClientVersion}
	initReq.Params.ProtocolVersion = mcpProtocolVersion
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		cli.Close()
		return fmt.Errorf("initialize failed: %w", err)
	}

	listResp, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		cli.Close()
		return fmt.Errorf("tools/list failed: %w", err)
	}

	var tools []Tool
	for _, remote := range listResp.Tools {
		if t.filterSet != nil && !t.filterSet[remote.Name] {
			continue
		}
		tools = append(tools, &mcpTool{
			toolset:    t,
			remoteName: remote.Name,
			meta: Metadata{
				Name:        t.cfg.Name + "_" + remote.Name,
				Description: remote.Description,
				Parameters:  schemaToParameters(rawSchema(remote.InputSchema)),
				Category:    CategoryExternal,
			},
			useStdio: true,
		})
	}

	t.stdio = cli
	t.tools = tools
	t.connected = true

	slog.Info("Connected to MCP server",
		"name", t.cfg.Name,
		"transport", "stdio",
		"command", t.cfg.Command,
		"tools", len(tools))
	return nil
}

func (t *MCPToolset) connectHTTP(ctx context.Context) error {
	t.http = httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(3),
		httpclient.WithBaseDelay(2*time.Second),
	)

	initResp, err := t.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"clientInfo":      map[string]any{"name": mcpClientName, "version": mcpClientVersion},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if initResp.Error != nil {
		return fmt.Errorf("initialize error: %s", initResp.Error.Message)
	}

	listResp, err := t.rpc(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list failed: %w", err)
	}
	if listResp.Error != nil {
		return fmt.Errorf("tools/list error: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected tools/list result type %T", listResp.Result)
	}
	rawTools, ok := resultMap["tools"].([]any)
	if !ok {
		return fmt.Errorf("tools/list response has no tools array")
	}

	var tools []Tool
	for _, raw := range rawTools {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if t.filterSet != nil && !t.filterSet[name] {
			continue
		}
		desc, _ := m["description"].(string)
		schema, _ := m["inputSchema"].(map[string]any)

		tools = append(tools, &mcpTool{
			toolset:    t,
			remoteName: name,
			meta: Metadata{
				Name:        t.cfg.Name + "_" + name,
				Description: desc,
				Parameters:  schemaToParameters(schema),
				Category:    CategoryExternal,
			},
		})
	}

	t.tools = tools
	t.connected = true

	slog.Info("Connected to MCP server",
		"name", t.cfg.Name,
		"transport", t.cfg.Transport,
		"url", t.cfg.URL,
		"tools", len(tools))
	return nil
}

type mcpRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type mcpResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *mcpError `json:"error,omitempty"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpc sends one JSON-RPC request over HTTP. Responses may arrive as plain
// JSON or as a server-sent event stream.
func (t *MCPToolset) rpc(ctx context.Context, method string, params any) (*mcpResponse, error) {
	body, err := json.Marshal(mcpRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	t.sessionMu.RLock()
	sessionID := t.sessionID
	t.sessionMu.RUnlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("mcp-session-id"); id != "" {
		t.sessionMu.Lock()
		t.sessionID = id
		t.sessionMu.Unlock()
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readStreamResponse(resp.Body)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var out mcpResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// readStreamResponse extracts the first complete JSON-RPC message from an
// SSE body.
func readStreamResponse(body io.Reader) (*mcpResponse, error) {
	type result struct {
		resp *mcpResponse
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		reader := bufio.NewReader(body)
		var data strings.Builder
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimSpace(line)
			if line == "" {
				if data.Len() > 0 {
					var resp mcpResponse
					if json.Unmarshal([]byte(data.String()), &resp) == nil {
						ch <- result{resp: &resp}
						return
					}
					data.Reset()
				}
				continue
			}
			if rest, ok := strings.CutPrefix(line, "data:"); ok {
				data.WriteString(strings.TrimSpace(rest))
			}
		}
		if data.Len() > 0 {
			var resp mcpResponse
			if json.Unmarshal([]byte(data.String()), &resp) == nil {
				ch <- result{resp: &resp}
				return
			}
		}
		ch <- result{err: fmt.Errorf("event stream ended without a complete message")}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-time.After(mcpStreamTimeout):
		return nil, fmt.Errorf("timed out reading event stream after %v", mcpStreamTimeout)
	}
}

// mcpTool adapts one remote tool to the Tool interface.
type mcpTool struct {
	toolset    *MCPToolset
	remoteName string
	meta       Metadata
	useStdio   bool
}

func (m *mcpTool) Metadata() Metadata { return m.meta }

func (m *mcpTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	if m.useStdio {
		return m.callStdio(ctx, args)
	}
	return m.callHTTP(ctx, args)
}

func (m *mcpTool) callStdio(ctx context.Context, args map[string]any) (Outcome, error) {
	m.toolset.mu.Lock()
	cli := m.toolset.stdio
	m.toolset.mu.Unlock()
	if cli == nil {
		return Outcome{}, fmt.Errorf("MCP server %q not connected", m.toolset.cfg.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = m.remoteName
	req.Params.Arguments = args

	resp, err := cli.CallTool(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("MCP call failed: %w", err)
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if resp.IsError {
		msg := "unknown error"
		if len(texts) > 0 {
			msg = texts[0]
		}
		return Structured(map[string]any{"success": false, "error": msg}), nil
	}
	return Text(strings.Join(texts, "\n")), nil
}

func (m *mcpTool) callHTTP(ctx context.Context, args map[string]any) (Outcome, error) {
	resp, err := m.toolset.rpc(ctx, "tools/call", map[string]any{
		"name":      m.remoteName,
		"arguments": args,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("MCP call failed: %w", err)
	}
	if resp.Error != nil {
		return Structured(map[string]any{"success": false, "error": resp.Error.Message}), nil
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return Text(fmt.Sprint(resp.Result)), nil
	}

	var texts []string
	if content, ok := resultMap["content"].([]any); ok {
		for _, c := range content {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if cm["type"] == "text" {
				if text, ok := cm["text"].(string); ok {
					texts = append(texts, text)
				}
			}
		}
	}
	if isError, _ := resultMap["isError"].(bool); isError {
		msg := "unknown error"
		if len(texts) > 0 {
			msg = texts[0]
		}
		return Structured(map[string]any{"success": false, "error": msg}), nil
	}
	return Text(strings.Join(texts, "\n")), nil
}

// schemaToParameters converts a JSON-schema object into typed parameter
// declarations the scheduler can coerce against.
func schemaToParameters(schema map[string]any) []Parameter {
	if schema == nil {
		return nil
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	required := make(map[string]bool)
	if rawReq, ok := schema["required"].([]any); ok {
		for _, r := range rawReq {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		prop, _ := properties[name].(map[string]any)
		desc, _ := prop["description"].(string)
		jsonType, _ := prop["type"].(string)

		paramType := TypeAny
		switch jsonType {
		case "string":
			paramType = TypeString
		case "integer":
			paramType = TypeInt
		case "boolean":
			paramType = TypeBool
		case "array":
			paramType = TypeList
		case "object":
			paramType = TypeDict
		}

		params = append(params, Parameter{
			Name:        name,
			Type:        paramType,
			Description: desc,
			Required:    required[name],
			Default:     prop["default"],
		})
	}
	return params
}

// rawSchema flattens the typed mcp-go schema into a plain map.
func rawSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// envSlice converts an env map to KEY=VALUE pairs in stable order.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
