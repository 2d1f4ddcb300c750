package tools

import (
	"reflect"
	"testing"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	tool := newStubTool("read_thing")

	if err := r.Register(tool); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	got, ok := r.Get("read_thing")
	if !ok {
		t.Fatal("Get returned false for registered tool")
	}
	if got.Metadata().Name != "read_thing" {
		t.Errorf("Metadata().Name = %q", got.Metadata().Name)
	}
	if !r.Has("read_thing") {
		t.Error("Has = false")
	}
	if r.Has("missing") {
		t.Error("Has(missing) = true")
	}
}

func TestRegistry_RejectsNilAndUnnamed(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Error("Register(nil) should fail")
	}
	unnamed := &stubTool{meta: Metadata{Name: ""}}
	if err := r.Register(unnamed); err == nil {
		t.Error("Register with empty name should fail")
	}
}

func TestRegistry_DuplicateKeepsFirst(t *testing.T) {
	r := NewRegistry()
	first := newStubTool("dup")
	first.meta.Description = "the original"
	second := newStubTool("dup")
	second.meta.Description = "the impostor"

	if err := r.Register(first); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	// Duplicate registration is tolerated so config reloads can re-run
	// registration idempotently.
	if err := r.Register(second); err != nil {
		t.Fatalf("duplicate Register error: %v", err)
	}

	got, _ := r.Get("dup")
	if got.Metadata().Description != "the original" {
		t.Errorf("duplicate replaced the original: %q", got.Metadata().Description)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegistry_ListFilters(t *testing.T) {
	r := NewRegistry()

	reader := newStubTool("reader")
	reader.meta.Category = CategoryFile

	writer := newStubTool("writer")
	writer.meta.Category = CategoryFile
	writer.meta.Dangerous = true

	// Dangerous by global name set rather than metadata flag.
	bash := newStubTool("bash")
	bash.meta.Category = CategorySystem

	web := newStubTool("webber")
	web.meta.Category = CategoryWeb

	for _, tool := range []Tool{reader, writer, bash, web} {
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register(%s) error: %v", tool.Metadata().Name, err)
		}
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"default_hides_dangerous", ListOptions{}, []string{"reader", "webber"}},
		{"include_dangerous", ListOptions{IncludeDangerous: true}, []string{"bash", "reader", "webber", "writer"}},
		{"category_filter", ListOptions{Category: CategoryFile, IncludeDangerous: true}, []string{"reader", "writer"}},
		{"category_without_dangerous", ListOptions{Category: CategoryFile}, []string{"reader"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, tool := range r.List(tt.opts) {
				names = append(names, tool.Metadata().Name)
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Errorf("List(%+v) = %v, want %v", tt.opts, names, tt.want)
			}
		})
	}
}

func TestRegistry_AllToolsInfoSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(newStubTool(name)); err != nil {
			t.Fatalf("Register(%s) error: %v", name, err)
		}
	}

	infos := r.AllToolsInfo()
	if len(infos) != 3 {
		t.Fatalf("got %d infos", len(infos))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, info := range infos {
		if info.Name != want[i] {
			t.Errorf("info %d = %q, want %q", i, info.Name, want[i])
		}
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newStubTool("ephemeral")); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.Remove("ephemeral"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if r.Has("ephemeral") {
		t.Error("tool still present after Remove")
	}
}
