package prompt

import (
	"strings"
	"testing"
)

func TestBuilder_BuildJoinsBlocksInOrder(t *testing.T) {
	b := NewBuilder()
	b.Add(RoleSystem, "role", "You are a tester.")
	b.Add(RoleSystem, "rules", "Never guess.")
	b.Add(RoleSystem, "format", "Answer in one line.")

	got := b.Build(RoleSystem)
	want := "You are a tester.\n\nNever guess.\n\nAnswer in one line."
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuilder_AddReplacesByName(t *testing.T) {
	b := NewBuilder()
	b.Add(RoleSystem, "role", "first")
	b.Add(RoleSystem, "rules", "second")
	b.Add(RoleSystem, "role", "replaced")

	got := b.Build(RoleSystem)
	want := "replaced\n\nsecond"
	if got != want {
		t.Errorf("Build() = %q, want %q (replacement must keep position)", got, want)
	}
}

func TestBuilder_EmptyContentRemovesBlock(t *testing.T) {
	b := NewBuilder()
	b.Add(RoleSystem, "role", "keep")
	b.Add(RoleSystem, "rules", "drop me")
	b.Add(RoleSystem, "rules", "")

	if got := b.Build(RoleSystem); got != "keep" {
		t.Errorf("Build() = %q, want %q", got, "keep")
	}

	// Adding empty content under a new name is a no-op.
	b.Add(RoleSystem, "ghost", "")
	if got := b.Build(RoleSystem); got != "keep" {
		t.Errorf("Build() after ghost add = %q, want %q", got, "keep")
	}
}

func TestBuilder_RolesAreIndependent(t *testing.T) {
	b := NewBuilder()
	b.Add(RoleSystem, "role", "system side")
	b.Add(RoleUser, "task", "user side")

	if got := b.Build(RoleSystem); got != "system side" {
		t.Errorf("system Build() = %q", got)
	}
	if got := b.Build(RoleUser); got != "user side" {
		t.Errorf("user Build() = %q", got)
	}

	b.ClearPrompt(RoleUser)
	if got := b.Build(RoleUser); got != "" {
		t.Errorf("cleared role Build() = %q, want empty", got)
	}
	if got := b.Build(RoleSystem); got != "system side" {
		t.Errorf("ClearPrompt leaked across roles: %q", got)
	}
}

func TestBuilder_BuildTrimsBlockWhitespace(t *testing.T) {
	b := NewBuilder()
	b.Add(RoleUser, "analysis", "  the request needs two steps \n")
	b.Add(RoleUser, "objective", "\nOBJECTIVE: do the thing")

	got := b.Build(RoleUser)
	want := "the request needs two steps\n\nOBJECTIVE: do the thing"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuilder_EmptyRole(t *testing.T) {
	b := NewBuilder()
	if got := b.Build(RoleSystem); got != "" {
		t.Errorf("Build() on empty builder = %q, want empty", got)
	}
}

func TestPromptByID(t *testing.T) {
	tests := []struct {
		id       ID
		fragment string
	}{
		{PromptExecAgent, "definition of done"},
		{PromptTasksPlanner, `"expected_outcome"`},
		{PromptTodoPlanner, "todo_update"},
		{PromptDefault, "helpful assistant"},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			got, err := PromptByID(tt.id)
			if err != nil {
				t.Fatalf("PromptByID(%s) error: %v", tt.id, err)
			}
			if !strings.Contains(got, tt.fragment) {
				t.Errorf("prompt %s missing %q:\n%s", tt.id, tt.fragment, got)
			}
		})
	}

	if _, err := PromptByID("nonsense"); err == nil {
		t.Error("PromptByID(nonsense) should fail")
	}
}

func TestCanonicalPromptsDeclareProtocol(t *testing.T) {
	for _, id := range []ID{PromptExecAgent, PromptDefault} {
		got, err := PromptByID(id)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(got, `{"tool_name": "<name>", "arguments": {...}}`) {
			t.Errorf("prompt %s missing the tool-call protocol", id)
		}
	}
}
