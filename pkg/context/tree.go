package context

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// treeDepth bounds the project structure walk.
const treeDepth = 2

// alwaysIgnore names never shown in the project structure regardless of
// .gitignore contents.
var alwaysIgnore = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".idea":        true,
	".vscode":      true,
	".DS_Store":    true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// gitignorePattern is one parsed .gitignore line. Matching is shell-glob
// level: no "**" support, no negation.
type gitignorePattern struct {
	pattern  string
	dirOnly  bool
	anchored bool
}

func (p gitignorePattern) matches(name, rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	target := name
	if p.anchored || strings.Contains(p.pattern, "/") {
		target = rel
	}
	ok, err := path.Match(p.pattern, target)
	return err == nil && ok
}

func loadGitignore(file string) []gitignorePattern {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil
	}

	var out []gitignorePattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		p := gitignorePattern{pattern: line}
		if strings.HasSuffix(p.pattern, "/") {
			p.dirOnly = true
			p.pattern = strings.TrimSuffix(p.pattern, "/")
		}
		if strings.HasPrefix(p.pattern, "/") {
			p.anchored = true
			p.pattern = strings.TrimPrefix(p.pattern, "/")
		}
		out = append(out, p)
	}
	return out
}

// writeTree appends dir's entries to b, two spaces of indent per level,
// directories suffixed with a slash. It returns the number of entries
// written.
func writeTree(b *strings.Builder, dir, relPrefix string, depth int, patterns []gitignorePattern) int {
	if depth >= treeDepth {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	indent := strings.Repeat("  ", depth)
	for _, entry := range entries {
		name := entry.Name()
		rel := path.Join(relPrefix, name)
		if skipEntry(name, rel, entry.IsDir(), patterns) {
			continue
		}
		if entry.IsDir() {
			b.WriteString(indent + name + "/\n")
			count++
			count += writeTree(b, filepath.Join(dir, name), rel, depth+1, patterns)
		} else {
			b.WriteString(indent + name + "\n")
			count++
		}
	}
	return count
}

func skipEntry(name, rel string, isDir bool, patterns []gitignorePattern) bool {
	if alwaysIgnore[name] {
		return true
	}
	for _, p := range patterns {
		if p.matches(name, rel, isDir) {
			return true
		}
	}
	return false
}
