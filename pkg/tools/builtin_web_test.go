package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchURLTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("hello from the server"))
		case "/big":
			w.Write([]byte(strings.Repeat("z", 1000)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tool := NewFetchURLTool(WebToolConfig{})
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		out, err := tool.Execute(ctx, map[string]any{"url": server.URL + "/ok"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		m := out.Map()
		if ok, _ := m["success"].(bool); !ok {
			t.Error("success = false")
		}
		if code, _ := m["status_code"].(int); code != 200 {
			t.Errorf("status_code = %v", m["status_code"])
		}
		if content, _ := m["content"].(string); content != "hello from the server" {
			t.Errorf("content = %q", content)
		}
		if ct, _ := m["content_type"].(string); !strings.Contains(ct, "text/plain") {
			t.Errorf("content_type = %q", ct)
		}
	})

	t.Run("not_found_is_business_failure", func(t *testing.T) {
		out, err := tool.Execute(ctx, map[string]any{"url": server.URL + "/missing"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		m := out.Map()
		if ok, _ := m["success"].(bool); ok {
			t.Error("success = true for 404")
		}
		if code, _ := m["status_code"].(int); code != 404 {
			t.Errorf("status_code = %v", m["status_code"])
		}
	})

	t.Run("size_cap", func(t *testing.T) {
		small := NewFetchURLTool(WebToolConfig{MaxResponseSize: 100})
		out, err := small.Execute(ctx, map[string]any{"url": server.URL + "/big"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		if size, _ := out.Map()["size"].(int); size != 100 {
			t.Errorf("size = %v, want capped at 100", out.Map()["size"])
		}
	})

	t.Run("rejects_bad_scheme", func(t *testing.T) {
		for _, url := range []string{"ftp://example.com", "example.com", ""} {
			if _, err := tool.Execute(ctx, map[string]any{"url": url}); err == nil {
				t.Errorf("want error for %q", url)
			}
		}
	})
}
