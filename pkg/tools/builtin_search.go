package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	defaultMaxResults   = 50
	maxSearchFileSize   = 1024 * 1024 // skip files over 1MB
	searchSkipDirPrefix = "."
)

// GrepSearchTool searches file contents with a regular expression.
type GrepSearchTool struct {
	cfg FileToolConfig
}

// NewGrepSearchTool creates the grep_search tool.
func NewGrepSearchTool(cfg FileToolConfig) *GrepSearchTool {
	cfg.setDefaults()
	return &GrepSearchTool{cfg: cfg}
}

func (t *GrepSearchTool) Metadata() Metadata {
	return Metadata{
		Name:        "grep_search",
		Description: "Search file contents for a regular expression pattern. Returns matching lines with file and line number.",
		Category:    CategoryFile,
		Parameters: []Parameter{
			{Name: "pattern", Type: TypeString, Description: "Regular expression to search for", Required: true},
			{Name: "path", Type: TypeString, Description: "Directory to search, relative to the working directory", Required: false, Default: "."},
			{Name: "file_pattern", Type: TypeString, Description: "Glob filter on file names, e.g. *.go", Required: false},
			{Name: "case_insensitive", Type: TypeBool, Description: "Ignore case when matching", Required: false, Default: false},
			{Name: "max_results", Type: TypeInt, Description: "Maximum number of matching lines to return", Required: false, Default: defaultMaxResults},
		},
	}
}

func (t *GrepSearchTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return Outcome{}, fmt.Errorf("pattern cannot be empty")
	}

	searchPath := "."
	if v, ok := args["path"].(string); ok && v != "" {
		searchPath = v
	}
	filePattern, _ := args["file_pattern"].(string)
	caseInsensitive, _ := args["case_insensitive"].(bool)
	maxResults := defaultMaxResults
	if v, ok := args["max_results"].(int); ok && v > 0 {
		maxResults = v
	}

	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Outcome{}, fmt.Errorf("invalid pattern: %w", err)
	}

	fullPath, err := validatePath(t.cfg.WorkingDir, searchPath)
	if err != nil {
		return Outcome{}, err
	}

	type match struct {
		file string
		line int
		text string
	}
	var matches []match
	filesScanned := 0

	walkErr := filepath.Walk(fullPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		if info.IsDir() {
			name := info.Name()
			if path != fullPath && strings.HasPrefix(name, searchSkipDirPrefix) {
				return filepath.SkipDir
			}
			if name == "node_modules" || name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Size() > maxSearchFileSize {
			return nil
		}
		if filePattern != "" {
			ok, err := filepath.Match(filePattern, info.Name())
			if err != nil || !ok {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		filesScanned++

		rel, err := filepath.Rel(fullPath, path)
		if err != nil {
			rel = path
		}
		for i, line := range strings.Split(string(content), "\n") {
			if len(matches) >= maxResults {
				break
			}
			if re.MatchString(line) {
				matches = append(matches, match{file: rel, line: i + 1, text: strings.TrimSpace(line)})
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return Outcome{}, fmt.Errorf("search failed: %w", walkErr)
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("PATTERN: %s\n", pattern))
	out.WriteString(fmt.Sprintf("MATCHES: %d (scanned %d files)\n", len(matches), filesScanned))
	if len(matches) > 0 {
		out.WriteString(strings.Repeat("─", 40) + "\n")
		for _, m := range matches {
			out.WriteString(fmt.Sprintf("%s:%d: %s\n", m.file, m.line, m.text))
		}
	}
	if len(matches) >= maxResults {
		out.WriteString(fmt.Sprintf("(stopped at max_results=%d)\n", maxResults))
	}

	return Text(strings.TrimRight(out.String(), "\n")), nil
}
