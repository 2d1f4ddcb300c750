// Package llm implements the OpenAI-compatible chat client the rest of
// the system talks through: chat completions (plain or streamed),
// embeddings, model listing, account balance, FIM completions, and the
// signin exchange that turns email/password credentials into a bearer
// token.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/httpclient"
	"github.com/batonlabs/baton/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option overrides one configuration field. Options rank above config
// file and environment values in the precedence chain.
type Option func(*config.LLMConfig)

func WithBaseURL(url string) Option {
	return func(c *config.LLMConfig) { c.BaseURL = url }
}

func WithAPIKey(key string) Option {
	return func(c *config.LLMConfig) { c.APIKey = key }
}

func WithModel(model string) Option {
	return func(c *config.LLMConfig) { c.Model = model }
}

func WithTemperature(t float64) Option {
	return func(c *config.LLMConfig) { c.Temperature = config.Float64Ptr(t) }
}

func WithMaxTokens(n int) Option {
	return func(c *config.LLMConfig) { c.MaxTokens = n }
}

func WithTimeout(seconds int) Option {
	return func(c *config.LLMConfig) { c.Timeout = seconds }
}

func WithStream(stream bool) Option {
	return func(c *config.LLMConfig) { c.Stream = stream }
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client

	mu    sync.Mutex
	token string // signin-issued bearer token, cached after first exchange
}

// New builds a Client from cfg with opts applied on top. The config is
// copied, so options never mutate the caller's struct.
func New(cfg *config.LLMConfig, opts ...Option) *Client {
	resolved := *cfg
	resolved.SetDefaults()
	for _, opt := range opts {
		opt(&resolved)
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(resolved.Timeout) * time.Second,
		}),
		httpclient.WithHeaderParser(httpclient.ParseRateLimitHeaders),
	)

	return &Client{
		config:     &resolved,
		httpClient: httpClient,
	}
}

// Model returns the model identifier requests are sent with.
func (c *Client) Model() string {
	return c.config.Model
}

// Chat sends messages and returns the completed response. When the
// client is configured to stream, deltas are accumulated into the same
// response shape and opts.OnDelta sees each text fragment as it arrives.
func (c *Client) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("baton.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, c.config.Model),
			attribute.Bool("streaming", c.config.Stream),
		),
	)
	defer span.End()

	request := c.buildChatRequest(messages, opts)

	var response *ChatResponse
	var err error
	if request.Stream {
		var onDelta func(string)
		if opts != nil {
			onDelta = opts.OnDelta
		}
		response, err = c.streamChat(ctx, request, onDelta)
	} else {
		response, err = c.doChat(ctx, request)
	}
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		metrics := observability.GetGlobalMetrics()
		if metrics != nil {
			metrics.RecordLLMCall(ctx, request.Model, duration, 0, 0, err)
		}

		return nil, err
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(response.ToolCalls())),
	)
	span.SetStatus(codes.Ok, "success")

	metrics := observability.GetGlobalMetrics()
	if metrics != nil {
		metrics.RecordLLMCall(ctx, request.Model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return response, nil
}

// Embedding embeds texts through the configured embeddings endpoint.
func (c *Client) Embedding(ctx context.Context, texts []string) (*EmbeddingResponse, error) {
	request := EmbeddingRequest{
		Model: c.config.Model,
		Input: texts,
	}

	var response EmbeddingResponse
	if err := c.request(ctx, http.MethodPost, c.config.EmbedService, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ListModels returns the models the endpoint serves.
func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	var response ModelsResponse
	if err := c.request(ctx, http.MethodGet, c.config.ModelsService, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Balance returns the account balance for providers that expose one.
func (c *Client) Balance(ctx context.Context) (*BalanceResponse, error) {
	var response BalanceResponse
	if err := c.request(ctx, http.MethodGet, c.config.BalanceService, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// FIM requests a fill-in-the-middle completion. A non-positive maxTokens
// falls back to the configured limit.
func (c *Client) FIM(ctx context.Context, prompt, suffix string, maxTokens int) (*FIMResponse, error) {
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	request := FIMRequest{
		Model:       c.config.Model,
		Prompt:      prompt,
		Suffix:      suffix,
		MaxTokens:   maxTokens,
		Temperature: c.temperature(nil),
	}

	var response FIMResponse
	if err := c.request(ctx, http.MethodPost, c.config.FIMService, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// EnsureModel checks the configured model against the endpoint's model
// list and falls back to the first available one when it is absent.
// Returns the model the client will use from now on.
func (c *Client) EnsureModel(ctx context.Context) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models.Data) == 0 {
		return c.config.Model, nil
	}

	for _, m := range models.Data {
		if m.ID == c.config.Model {
			return c.config.Model, nil
		}
	}

	fallback := models.Data[0].ID
	slog.Warn("Configured model not available, falling back",
		"model", c.config.Model,
		"fallback", fallback)
	c.config.Model = fallback
	return fallback, nil
}

func (c *Client) buildChatRequest(messages []Message, opts *ChatOptions) ChatRequest {
	var override *float64
	maxTokens := c.config.MaxTokens
	var tools []Tool
	var responseFormat *ResponseFormat

	if opts != nil {
		override = opts.Temperature
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
		tools = opts.Tools
		if opts.ResponseFormat == "json" {
			responseFormat = &ResponseFormat{Type: "json_object"}
		}
	}

	request := ChatRequest{
		Model:          c.config.Model,
		Messages:       messages,
		Temperature:    c.temperature(override),
		MaxTokens:      maxTokens,
		Stream:         c.config.Stream,
		ResponseFormat: responseFormat,
	}

	if len(tools) > 0 {
		request.Tools = tools
		request.ToolChoice = "auto"
	}

	return request
}

func (c *Client) temperature(override *float64) float64 {
	if override != nil {
		return *override
	}
	if c.config.Temperature != nil {
		return *c.config.Temperature
	}
	return config.DefaultTemperature
}

func (c *Client) doChat(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	var response ChatResponse
	if err := c.request(ctx, http.MethodPost, c.config.APIService, request, &response); err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, &StatusError{Message: response.Error.Error(), Err: response.Error}
	}

	return &response, nil
}

func (c *Client) streamChat(ctx context.Context, request ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, &StatusError{Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL(c.config.APIService), bytes.NewReader(requestBody))
	if err != nil {
		return nil, &StatusError{Message: fmt.Sprintf("failed to create HTTP request: %v", err), Err: err}
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, c.statusError(resp, err)
		}
	}
	if err != nil {
		return nil, &StatusError{Message: err.Error(), Err: err}
	}
	if resp == nil {
		return nil, &StatusError{Message: "no response received"}
	}

	reader := bufio.NewReader(resp.Body)

	var content strings.Builder
	toolCalls := make(map[int]*ToolCall)
	maxIndex := -1
	var usage Usage
	finishReason := ""

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, &StatusError{Message: fmt.Sprintf("failed to read stream: %v", err), Err: err}
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var chunk ChatStreamResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Error != nil {
			return nil, &StatusError{Message: chunk.Error.Error(), Err: chunk.Error}
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}

		for _, deltaCall := range choice.Delta.ToolCalls {
			idx := deltaCall.Index
			if tc, ok := toolCalls[idx]; ok {
				tc.Function.Arguments += deltaCall.Function.Arguments
			} else {
				toolCalls[idx] = &ToolCall{
					ID:       deltaCall.ID,
					Type:     deltaCall.Type,
					Function: deltaCall.Function,
				}
				if idx > maxIndex {
					maxIndex = idx
				}
			}
		}

		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}

	message := Message{Role: "assistant", Content: content.String()}
	for i := 0; i <= maxIndex; i++ {
		if tc, ok := toolCalls[i]; ok {
			message.ToolCalls = append(message.ToolCalls, *tc)
		}
	}

	return &ChatResponse{
		Model:   request.Model,
		Choices: []Choice{{Message: message, FinishReason: finishReason}},
		Usage:   usage,
	}, nil
}

// request is the shared JSON round trip: resolve the bearer token, send,
// map failures to StatusError, decode into out.
func (c *Client) request(ctx context.Context, method, service string, payload, out interface{}) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, method, service, token, payload, out)
}

func (c *Client) roundTrip(ctx context.Context, method, service, token string, payload, out interface{}) error {
	var body io.Reader
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return &StatusError{Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serviceURL(service), body)
	if err != nil {
		return &StatusError{Message: fmt.Sprintf("failed to create HTTP request: %v", err), Err: err}
	}
	if raw != nil {
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		}
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return c.statusError(resp, err)
		}
	}
	if err != nil {
		return &StatusError{Message: err.Error(), Err: err}
	}
	if resp == nil {
		return &StatusError{Message: "no response received"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{Message: fmt.Sprintf("failed to read response: %v", err), Err: err}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &StatusError{Message: fmt.Sprintf("failed to decode response: %v", err), Err: err}
	}
	return nil
}

// statusError reads a non-200 response body, preferring the embedded API
// error object over the raw body text.
func (c *Client) statusError(resp *http.Response, cause error) *StatusError {
	data, readErr := io.ReadAll(resp.Body)
	message := string(data)
	if readErr != nil {
		message = fmt.Sprintf("(failed to read error body: %v)", readErr)
	}
	if apiErr := parseErrorBody(data); apiErr != nil {
		message = apiErr.Error()
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: message, Err: cause}
}

// parseErrorBody extracts the error object from an OpenAI-compatible
// error response body.
func parseErrorBody(body []byte) *APIError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

// bearerToken resolves the Authorization token: a static API key when
// present, otherwise a cached signin exchange of email/password. Returns
// "" when the endpoint needs no auth.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	if c.config.APIKey != "" {
		return c.config.APIKey, nil
	}
	if c.config.Email == "" || c.config.Password == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	signin, err := c.signin(ctx)
	if err != nil {
		return "", err
	}
	c.token = signin.Token
	return c.token, nil
}

func (c *Client) signin(ctx context.Context) (*SigninResponse, error) {
	request := SigninRequest{
		Email:    c.config.Email,
		Password: c.config.Password,
	}

	var response SigninResponse
	if err := c.roundTrip(ctx, http.MethodPost, c.config.AuthService, "", request, &response); err != nil {
		return nil, err
	}
	if response.Token == "" {
		return nil, &StatusError{Message: "signin returned no token"}
	}
	return &response, nil
}

func (c *Client) serviceURL(service string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(service, "/")
}
