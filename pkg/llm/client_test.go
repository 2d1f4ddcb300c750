package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/batonlabs/baton/pkg/config"
)

// clearEnv blanks every environment variable the LLM config falls back
// to, so tests see deterministic defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BATON_BASE_URL", "DEEPSEEK_BASE_URL",
		"BATON_API_KEY", "DEEPSEEK_API_KEY",
		"BATON_EMAIL", "BATON_PASSWORD",
		"BATON_MODEL", "DEEPSEEK_MODEL",
		"BATON_TEMPERATURE", "BATON_MAX_TOKENS",
	} {
		t.Setenv(key, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	client := New(&config.LLMConfig{})

	if client.Model() != "deepseek-chat" {
		t.Errorf("Model() = %v, want deepseek-chat", client.Model())
	}
	if client.config.BaseURL != "https://api.deepseek.com" {
		t.Errorf("BaseURL = %v, want https://api.deepseek.com", client.config.BaseURL)
	}
	if client.config.MaxTokens != 4000 {
		t.Errorf("MaxTokens = %v, want 4000", client.config.MaxTokens)
	}
}

func TestNew_OptionsOverrideConfig(t *testing.T) {
	clearEnv(t)

	cfg := &config.LLMConfig{
		Model:     "deepseek-chat",
		MaxTokens: 2000,
	}

	client := New(cfg,
		WithModel("deepseek-reasoner"),
		WithTemperature(1.3),
		WithMaxTokens(8000),
	)

	if client.Model() != "deepseek-reasoner" {
		t.Errorf("Model() = %v, want deepseek-reasoner", client.Model())
	}
	if got := client.temperature(nil); got != 1.3 {
		t.Errorf("temperature = %v, want 1.3", got)
	}
	if client.config.MaxTokens != 8000 {
		t.Errorf("MaxTokens = %v, want 8000", client.config.MaxTokens)
	}

	// The caller's struct must stay untouched.
	if cfg.Model != "deepseek-chat" || cfg.MaxTokens != 2000 {
		t.Error("New() mutated the caller's config")
	}
}

func TestClient_Chat(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", auth)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "deepseek-chat" {
			t.Errorf("model = %v, want deepseek-chat", req.Model)
		}
		if req.Temperature != 0.0 {
			t.Errorf("temperature = %v, want 0.0", req.Temperature)
		}
		if req.MaxTokens != 4000 {
			t.Errorf("max_tokens = %v, want 4000", req.MaxTokens)
		}
		if len(req.Messages) != 2 || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message:      Message{Role: "assistant", Content: "Hello there"},
				FinishReason: "stop",
			}},
			Usage: Usage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
		})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	response, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Hi"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if response.Content() != "Hello there" {
		t.Errorf("Content() = %q, want %q", response.Content(), "Hello there")
	}
	if response.Usage.TotalTokens != 16 {
		t.Errorf("TotalTokens = %v, want 16", response.Usage.TotalTokens)
	}
}

func TestClient_Chat_PerCallOverrides(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Temperature)
		}
		if req.MaxTokens != 512 {
			t.Errorf("max_tokens = %v, want 512", req.MaxTokens)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v, want json_object", req.ResponseFormat)
		}

		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: `{"ok":true}`}}},
		})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	temp := 0.7
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "plan"}}, &ChatOptions{
		Temperature:    &temp,
		MaxTokens:      512,
		ResponseFormat: "json",
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestClient_Chat_NativeToolCalls(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "read_file" {
			t.Errorf("unexpected tools: %+v", req.Tools)
		}
		if req.ToolChoice != "auto" {
			t.Errorf("tool_choice = %v, want auto", req.ToolChoice)
		}

		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message: Message{
					Role: "assistant",
					ToolCalls: []ToolCall{{
						ID:   "call_123",
						Type: "function",
						Function: FunctionCall{
							Name:      "read_file",
							Arguments: `{"file_path":"main.go"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	response, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "read main.go"}}, &ChatOptions{
		Tools: []Tool{{
			Type: "function",
			Function: ToolFunction{
				Name:        "read_file",
				Description: "Read a file",
				Parameters:  map[string]interface{}{"type": "object"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	calls := response.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("ToolCalls() length = %v, want 1", len(calls))
	}
	if calls[0].Function.Name != "read_file" {
		t.Errorf("tool call name = %v, want read_file", calls[0].Function.Name)
	}
}

func TestClient_Chat_APIError(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-bad"})

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hi"}}, nil)
	if err == nil {
		t.Fatal("Chat() expected error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %v, want 401", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Message, "Invalid API key") {
		t.Errorf("Message = %q, want API error message", statusErr.Message)
	}
	if !IsStatusError(err) {
		t.Error("IsStatusError() = false, want true")
	}
}

func TestClient_Chat_ConnectError(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test", Timeout: 1})

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hi"}}, nil)
	if err == nil {
		t.Fatal("Chat() expected error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != 0 {
		t.Errorf("StatusCode = %v, want 0 for transport failure", statusErr.StatusCode)
	}
}

func TestClient_Chat_EmptyChoices(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	// An empty response is not a transport error; the loop layers map
	// Content() == "" to their own failure kind.
	response, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if response.Content() != "" {
		t.Errorf("Content() = %q, want empty", response.Content())
	}
}

func TestClient_Chat_Stream(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream=true in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"read_file\",\"arguments\":\"{\\\"fi\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"le\\\":1}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":7,\"total_tokens\":12}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"}, WithStream(true))

	var deltas []string
	response, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hi"}}, &ChatOptions{
		OnDelta: func(text string) { deltas = append(deltas, text) },
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if response.Content() != "Hello" {
		t.Errorf("Content() = %q, want %q", response.Content(), "Hello")
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Errorf("deltas = %v, want [Hel lo]", deltas)
	}

	calls := response.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("ToolCalls() length = %v, want 1", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Function.Arguments != `{"file":1}` {
		t.Errorf("accumulated tool call = %+v", calls[0])
	}

	if response.Usage.TotalTokens != 12 {
		t.Errorf("TotalTokens = %v, want 12", response.Usage.TotalTokens)
	}
}

func TestClient_SigninExchange(t *testing.T) {
	clearEnv(t)

	signinCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auths/signin":
			signinCalls++
			var req SigninRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode signin request: %v", err)
			}
			if req.Email != "dev@example.com" || req.Password != "secret" {
				t.Errorf("unexpected credentials: %+v", req)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("signin request must not carry an Authorization header")
			}
			_ = json.NewEncoder(w).Encode(SigninResponse{
				Token: "issued-token",
				User:  &SigninUser{Email: "dev@example.com"},
			})
		case "/chat/completions":
			if auth := r.Header.Get("Authorization"); auth != "Bearer issued-token" {
				t.Errorf("Authorization = %q, want Bearer issued-token", auth)
			}
			_ = json.NewEncoder(w).Encode(ChatResponse{
				Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(&config.LLMConfig{
		BaseURL:     server.URL,
		Email:       "dev@example.com",
		Password:    "secret",
		AuthEnabled: true,
	})

	for i := 0; i < 2; i++ {
		if _, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hi"}}, nil); err != nil {
			t.Fatalf("Chat() #%d error = %v", i+1, err)
		}
	}

	if signinCalls != 1 {
		t.Errorf("signin calls = %v, want 1 (token must be cached)", signinCalls)
	}
}

func TestClient_EnsureModel(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name      string
		available []string
		model     string
		want      string
	}{
		{"configured model present", []string{"deepseek-chat", "deepseek-reasoner"}, "deepseek-chat", "deepseek-chat"},
		{"configured model absent", []string{"deepseek-reasoner", "deepseek-coder"}, "deepseek-chat", "deepseek-reasoner"},
		{"empty list keeps configured", nil, "deepseek-chat", "deepseek-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/models" {
					t.Errorf("expected /models, got %s", r.URL.Path)
				}
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				resp := ModelsResponse{Object: "list"}
				for _, id := range tt.available {
					resp.Data = append(resp.Data, Model{ID: id, Object: "model"})
				}
				_ = json.NewEncoder(w).Encode(resp)
			}))
			defer server.Close()

			client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test", Model: tt.model})

			got, err := client.EnsureModel(context.Background())
			if err != nil {
				t.Fatalf("EnsureModel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EnsureModel() = %v, want %v", got, tt.want)
			}
			if client.Model() != tt.want {
				t.Errorf("Model() after EnsureModel = %v, want %v", client.Model(), tt.want)
			}
		})
	}
}

func TestClient_Embedding(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		var req EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("input length = %v, want 2", len(req.Input))
		}

		_ = json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{
				{Index: 0, Embedding: []float32{0.1, 0.2}},
				{Index: 1, Embedding: []float32{0.3, 0.4}},
			},
		})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	response, err := client.Embedding(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embedding() error = %v", err)
	}
	if len(response.Data) != 2 {
		t.Fatalf("Data length = %v, want 2", len(response.Data))
	}
	if response.Data[1].Embedding[0] != 0.3 {
		t.Errorf("embedding value = %v, want 0.3", response.Data[1].Embedding[0])
	}
}

func TestClient_Balance(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/balance" {
			t.Errorf("expected /user/balance, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(BalanceResponse{
			IsAvailable: true,
			BalanceInfos: []BalanceInfo{
				{Currency: "USD", TotalBalance: "12.50"},
			},
		})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	response, err := client.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if !response.IsAvailable || response.BalanceInfos[0].TotalBalance != "12.50" {
		t.Errorf("unexpected balance: %+v", response)
	}
}

func TestClient_FIM(t *testing.T) {
	clearEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/beta/completions" {
			t.Errorf("expected /beta/completions, got %s", r.URL.Path)
		}
		var req FIMRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Prompt != "func add(" || req.Suffix != "}" {
			t.Errorf("unexpected FIM request: %+v", req)
		}
		if req.MaxTokens != 64 {
			t.Errorf("max_tokens = %v, want 64", req.MaxTokens)
		}

		_ = json.NewEncoder(w).Encode(FIMResponse{
			Choices: []FIMChoice{{Text: "a, b int) int {\n\treturn a + b\n", FinishReason: "stop"}},
		})
	}))
	defer server.Close()

	client := New(&config.LLMConfig{BaseURL: server.URL, APIKey: "sk-test"})

	response, err := client.FIM(context.Background(), "func add(", "}", 64)
	if err != nil {
		t.Fatalf("FIM() error = %v", err)
	}
	if len(response.Choices) != 1 || !strings.Contains(response.Choices[0].Text, "return a + b") {
		t.Errorf("unexpected FIM response: %+v", response)
	}
}

func TestChatResponse_Content(t *testing.T) {
	tests := []struct {
		name     string
		response *ChatResponse
		want     string
	}{
		{"nil response", nil, ""},
		{"no choices", &ChatResponse{}, ""},
		{"with content", &ChatResponse{Choices: []Choice{{Message: Message{Content: "hi"}}}}, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.response.Content(); got != tt.want {
				t.Errorf("Content() = %q, want %q", got, tt.want)
			}
		})
	}
}
