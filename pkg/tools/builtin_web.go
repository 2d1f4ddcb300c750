package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/batonlabs/baton/pkg/httpclient"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxResponseSize     = 5 * 1024 * 1024 // 5MB
)

// WebToolConfig bounds fetch_url.
type WebToolConfig struct {
	Timeout         time.Duration
	MaxResponseSize int64
	UserAgent       string
}

func (c *WebToolConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultFetchTimeout
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = maxResponseSize
	}
	if c.UserAgent == "" {
		c.UserAgent = "baton-agent/1.0"
	}
}

// FetchURLTool retrieves web pages over HTTP(S).
type FetchURLTool struct {
	cfg    WebToolConfig
	client *httpclient.Client
}

// NewFetchURLTool creates the fetch_url tool.
func NewFetchURLTool(cfg WebToolConfig) *FetchURLTool {
	cfg.setDefaults()
	return &FetchURLTool{
		cfg:    cfg,
		client: httpclient.New(httpclient.WithTimeout(cfg.Timeout)),
	}
}

func (t *FetchURLTool) Metadata() Metadata {
	return Metadata{
		Name:        "fetch_url",
		Description: "Fetch the contents of a URL over HTTP or HTTPS.",
		Category:    CategoryWeb,
		Parameters: []Parameter{
			{Name: "url", Type: TypeString, Description: "URL to fetch (http:// or https://)", Required: true},
		},
	}
}

func (t *FetchURLTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	url, _ := args["url"].(string)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Outcome{}, fmt.Errorf("url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("invalid request: %w", err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.cfg.MaxResponseSize))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read response: %w", err)
	}

	return Structured(map[string]any{
		"success":      resp.StatusCode >= 200 && resp.StatusCode < 300,
		"status_code":  resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"size":         len(body),
		"content":      string(body),
	}), nil
}
