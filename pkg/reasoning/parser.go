package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is one tool invocation parsed from an LLM response.
type Command struct {
	ToolName string
	Args     map[string]any

	// Raw holds the decoded object, including for responses that are
	// valid JSON but name no tool.
	Raw map[string]any
}

// PrettyJSON renders the raw object indented for display.
func (c Command) PrettyJSON() string {
	data, err := json.MarshalIndent(c.Raw, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", c.Raw)
	}
	return string(data)
}

// ParseCommand extracts a tool command from raw LLM output. Models wrap
// commands in Markdown fences and surround them with prose, so the
// parser strips fences, isolates the outermost JSON object, and only
// then decodes. It accepts the prompt's native shape
//
//	{"tool_name": "...", "arguments": {...}}
//
// and the OpenAI function shape
//
//	{"function": {"name": "...", "arguments": ...}}
//
// where arguments may also arrive as a JSON-encoded string.
//
// A response that decodes but names no tool comes back with an empty
// ToolName and the object in Raw. A non-nil error means no JSON object
// could be decoded; the caller decides whether that is a malformed
// command or plain conversation.
func ParseCommand(content string) (Command, error) {
	obj, err := decodeObject(stripFences(content))
	if err != nil {
		return Command{}, err
	}

	if fn, ok := obj["function"].(map[string]any); ok {
		if name, _ := fn["name"].(string); name != "" {
			args, err := decodeArgs(fn["arguments"])
			if err != nil {
				return Command{}, err
			}
			return Command{ToolName: name, Args: args, Raw: obj}, nil
		}
	}

	name, _ := obj["tool_name"].(string)
	if name == "" {
		return Command{Raw: obj}, nil
	}
	args, err := decodeArgs(obj["arguments"])
	if err != nil {
		return Command{}, err
	}
	return Command{ToolName: name, Args: args, Raw: obj}, nil
}

// AttemptedJSON reports whether the response looks like it tried to be
// a JSON command. Replies without an opening brace are conversation,
// not parse failures.
func AttemptedJSON(content string) bool {
	return strings.Contains(content, "{")
}

// stripFences removes Markdown code fences. When the response contains
// fenced blocks, the first block holding an object wins; otherwise the
// fence markers are dropped and the text passed through.
func stripFences(s string) string {
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
		// Drop a language tag such as "json" on the fence line.
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
			body = body[nl+1:]
		}
		end := strings.Index(body, "```")
		block := body
		if end >= 0 {
			block = body[:end]
		}
		if strings.Contains(block, "{") {
			return strings.TrimSpace(block)
		}
		if end < 0 {
			break
		}
		rest = body[end+3:]
	}
	return strings.ReplaceAll(s, "```", "")
}

// decodeObject finds and decodes the outermost JSON object in s. The
// first attempt spans the first "{" to the last "}", which tolerates
// leading and trailing prose; the fallback takes the first
// brace-balanced span, which survives stray closing braces after the
// object.
func decodeObject(s string) (map[string]any, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}

	if end := strings.LastIndexByte(s, '}'); end > start {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil {
			return obj, nil
		}
	}

	if span, ok := balancedSpan(s, start); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(span), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, fmt.Errorf("malformed JSON object in response")
}

// balancedSpan returns the substring from start to the brace that
// closes it, honoring strings and escapes.
func balancedSpan(s string, start int) (string, bool) {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeArgs normalizes the arguments field: absent becomes an empty
// map, objects pass through, and JSON-encoded strings are decoded.
func decodeArgs(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return map[string]any{}, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err != nil {
			return nil, fmt.Errorf("arguments string is not a JSON object: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("arguments must be an object, got %T", v)
	}
}
