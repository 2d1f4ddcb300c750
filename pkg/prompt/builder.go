// Package prompt assembles system and user prompts from named blocks
// and carries the canonical prompts for the built-in agent roles.
package prompt

import (
	"strings"
	"sync"
)

// Role selects which accumulator a block belongs to.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type block struct {
	name    string
	content string
}

// Builder accumulates named blocks per role and renders them on demand.
// Adding a block under an existing name replaces its content in place,
// so callers can refresh a section without disturbing the block order.
type Builder struct {
	mu     sync.Mutex
	blocks map[Role][]block
}

func NewBuilder() *Builder {
	return &Builder{blocks: make(map[Role][]block)}
}

// Add appends a named block to the role's accumulator, or replaces the
// existing block with the same name. Empty content removes the block.
func (b *Builder) Add(role Role, name, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.blocks[role]
	for i := range list {
		if list[i].name != name {
			continue
		}
		if content == "" {
			b.blocks[role] = append(list[:i], list[i+1:]...)
		} else {
			list[i].content = content
		}
		return
	}
	if content == "" {
		return
	}
	b.blocks[role] = append(list, block{name: name, content: content})
}

// Build joins the role's blocks in insertion order, separated by blank
// lines.
func (b *Builder) Build(role Role) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.blocks[role]
	if len(list) == 0 {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, blk := range list {
		parts = append(parts, strings.TrimSpace(blk.content))
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// ClearPrompt drops every block accumulated for the role.
func (b *Builder) ClearPrompt(role Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocks, role)
}
