package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// TodoItem is one scratchpad entry.
type TodoItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // pending | in_progress | done
}

// TodoWriteTool keeps a per-agent todo scratchpad. Unlike the workflow
// todolist this is purely informational: items carry no dependencies and
// nothing gates on them.
type TodoWriteTool struct {
	mu    sync.Mutex
	lists map[string][]TodoItem // keyed by agent_id
}

// NewTodoWriteTool creates the todo_write tool.
func NewTodoWriteTool() *TodoWriteTool {
	return &TodoWriteTool{lists: make(map[string][]TodoItem)}
}

func (t *TodoWriteTool) Metadata() Metadata {
	return Metadata{
		Name:        "todo_write",
		Description: "Maintain a todo scratchpad. Pass the full list to replace it, or merge=true to update matching ids and append new ones.",
		Category:    CategorySystem,
		Parameters: []Parameter{
			{Name: "agent_id", Type: TypeString, Description: "Owner of the scratchpad", Required: true},
			{Name: "todos", Type: TypeList, Description: "Items, each {id, content, status}", Required: true},
			{Name: "merge", Type: TypeBool, Description: "Merge with the existing list instead of replacing it", Required: false, Default: false},
		},
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	agentID, _ := args["agent_id"].(string)
	if agentID == "" {
		return Outcome{}, fmt.Errorf("agent_id cannot be empty")
	}
	rawTodos, _ := args["todos"].([]any)
	merge, _ := args["merge"].(bool)

	incoming := make([]TodoItem, 0, len(rawTodos))
	for i, raw := range rawTodos {
		m, ok := raw.(map[string]any)
		if !ok {
			return Outcome{}, fmt.Errorf("todo %d is not an object", i)
		}
		item := TodoItem{}
		item.ID, _ = m["id"].(string)
		item.Content, _ = m["content"].(string)
		item.Status, _ = m["status"].(string)
		if item.ID == "" {
			item.ID = fmt.Sprintf("todo-%d", i+1)
		}
		if item.Status == "" {
			item.Status = "pending"
		}
		switch item.Status {
		case "pending", "in_progress", "done":
		default:
			return Outcome{}, fmt.Errorf("todo %q has invalid status %q", item.ID, item.Status)
		}
		incoming = append(incoming, item)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if merge {
		current := t.lists[agentID]
		for _, in := range incoming {
			found := false
			for i := range current {
				if current[i].ID == in.ID {
					current[i] = in
					found = true
					break
				}
			}
			if !found {
				current = append(current, in)
			}
		}
		t.lists[agentID] = current
	} else {
		t.lists[agentID] = incoming
	}

	return Structured(map[string]any{
		"success": true,
		"count":   len(t.lists[agentID]),
		"summary": summarizeTodos(t.lists[agentID]),
	}), nil
}

// Todos returns a copy of an agent's scratchpad, for inspection surfaces.
func (t *TodoWriteTool) Todos(agentID string) []TodoItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.lists[agentID]
	out := make([]TodoItem, len(items))
	copy(out, items)
	return out
}

func summarizeTodos(items []TodoItem) string {
	if len(items) == 0 {
		return "(empty)"
	}
	var out strings.Builder
	for i, item := range items {
		icon := "[PENDING]"
		switch item.Status {
		case "done":
			icon = "[DONE]"
		case "in_progress":
			icon = "[ACTIVE]"
		}
		out.WriteString(fmt.Sprintf("%s %s: %s", icon, item.ID, item.Content))
		if i < len(items)-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}
