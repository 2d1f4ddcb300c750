package workflow

import (
	"fmt"
	"strings"
)

// Planner output arrives with varying decoration: bare JSON, fenced
// JSON, or JSON buried in prose. These helpers cut it loose before
// decoding.

// stripPlanFences removes Markdown code fences, preferring the first
// fenced block that carries JSON structure.
func stripPlanFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}

	rest := s
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			break
		}
		body := rest[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
		end := strings.Index(body, "```")
		block := body
		if end >= 0 {
			block = body[:end]
		}
		if strings.ContainsAny(block, "{[") {
			return strings.TrimSpace(block)
		}
		if end < 0 {
			break
		}
		rest = body[end+3:]
	}
	return strings.ReplaceAll(s, "```", "")
}

// extractJSONValue isolates the outermost value delimited by opener and
// closer, honoring strings and escapes, so prose around the payload
// does not break decoding.
func extractJSONValue(s string, opener, closer byte) (string, error) {
	start := strings.IndexByte(s, opener)
	if start < 0 {
		return "", fmt.Errorf("no %q payload in response", string(opener))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated %q payload in response", string(opener))
}
