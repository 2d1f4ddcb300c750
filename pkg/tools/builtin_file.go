package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/batonlabs/baton/pkg/extract"
)

const defaultMaxFileSize = 10 * 1024 * 1024 // 10MB

// FileToolConfig scopes file tools to a working directory.
type FileToolConfig struct {
	WorkingDir  string
	MaxFileSize int64
}

func (c *FileToolConfig) setDefaults() {
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
}

// validatePath rejects absolute paths, traversal, and escapes from the
// working directory, returning the resolved path.
func validatePath(workingDir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}

	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory traversal not allowed (..)")
	}

	absPath, err := filepath.Abs(filepath.Join(workingDir, cleaned))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	absWorkDir, err := filepath.Abs(workingDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	if absPath != absWorkDir && !strings.HasPrefix(absPath, absWorkDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes working directory")
	}

	return absPath, nil
}

// ReadFileTool reads text files and extracts text from binary document
// formats (.pdf, .docx, .xlsx).
type ReadFileTool struct {
	cfg FileToolConfig
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(cfg FileToolConfig) *ReadFileTool {
	cfg.setDefaults()
	return &ReadFileTool{cfg: cfg}
}

func (t *ReadFileTool) Metadata() Metadata {
	return Metadata{
		Name:        "read_file",
		Description: "Read the contents of a file. Supports optional line ranges for text files. PDF, DOCX and XLSX files are converted to plain text automatically.",
		Category:    CategoryFile,
		Parameters: []Parameter{
			{Name: "file_path", Type: TypeString, Description: "File path relative to the working directory", Required: true},
			{Name: "start_line", Type: TypeInt, Description: "First line to show (1-indexed)", Required: false},
			{Name: "end_line", Type: TypeInt, Description: "Last line to show (inclusive)", Required: false},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	path, _ := args["file_path"].(string)

	fullPath, err := validatePath(t.cfg.WorkingDir, path)
	if err != nil {
		return Outcome{}, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return Outcome{}, fmt.Errorf("%s is a directory, use list_dir", path)
	}
	if info.Size() > t.cfg.MaxFileSize {
		return Outcome{}, fmt.Errorf("file too large: %d bytes (max: %d)", info.Size(), t.cfg.MaxFileSize)
	}

	// Binary document formats go through the extractor.
	if extract.Supported(fullPath) {
		text, err := extract.Extract(ctx, fullPath)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to extract document text: %w", err)
		}
		return Text(fmt.Sprintf("FILE: %s (extracted text)\n%s", path, text)), nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	totalLines := len(lines)

	startLine := 1
	if v, ok := args["start_line"].(int); ok && v > 0 {
		startLine = v
		if startLine > totalLines {
			return Outcome{}, fmt.Errorf("start_line (%d) exceeds file length (%d lines)", startLine, totalLines)
		}
	}
	endLine := totalLines
	if v, ok := args["end_line"].(int); ok && v > 0 {
		endLine = v
		if endLine > totalLines {
			endLine = totalLines
		}
	}
	if startLine > endLine {
		return Outcome{}, fmt.Errorf("invalid range: start_line (%d) > end_line (%d)", startLine, endLine)
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("FILE: %s (%d lines", path, totalLines))
	if startLine != 1 || endLine != totalLines {
		out.WriteString(fmt.Sprintf(", showing %d-%d", startLine, endLine))
	}
	out.WriteString(")\n")
	for i := startLine - 1; i < endLine; i++ {
		out.WriteString(lines[i])
		if i < endLine-1 {
			out.WriteString("\n")
		}
	}

	return Text(out.String()), nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct {
	cfg FileToolConfig
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(cfg FileToolConfig) *WriteFileTool {
	cfg.setDefaults()
	return &WriteFileTool{cfg: cfg}
}

func (t *WriteFileTool) Metadata() Metadata {
	return Metadata{
		Name:        "write_file",
		Description: "Write content to a file, replacing it if it exists. Parent directories are created as needed.",
		Category:    CategoryFile,
		Dangerous:   true,
		Parameters: []Parameter{
			{Name: "file_path", Type: TypeString, Description: "File path relative to the working directory", Required: true},
			{Name: "content", Type: TypeString, Description: "Content to write", Required: true},
		},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	path, _ := args["file_path"].(string)
	content, _ := args["content"].(string)

	// The target may not exist yet, so validate the parent.
	if filepath.IsAbs(path) {
		return Outcome{}, fmt.Errorf("absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return Outcome{}, fmt.Errorf("directory traversal not allowed (..)")
	}

	fullPath := filepath.Join(t.cfg.WorkingDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return Outcome{}, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		return Outcome{}, fmt.Errorf("failed to write file: %w", err)
	}

	return Structured(map[string]any{
		"success":       true,
		"file_path":     path,
		"bytes_written": len(content),
		"message":       fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
	}), nil
}

// ListDirTool lists directory entries.
type ListDirTool struct {
	cfg FileToolConfig
}

// NewListDirTool creates the list_dir tool.
func NewListDirTool(cfg FileToolConfig) *ListDirTool {
	cfg.setDefaults()
	return &ListDirTool{cfg: cfg}
}

func (t *ListDirTool) Metadata() Metadata {
	return Metadata{
		Name:        "list_dir",
		Description: "List the entries of a directory with sizes. Directories are suffixed with a slash.",
		Category:    CategoryFile,
		Parameters: []Parameter{
			{Name: "path", Type: TypeString, Description: "Directory path relative to the working directory", Required: false, Default: "."},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	fullPath, err := validatePath(t.cfg.WorkingDir, path)
	if err != nil {
		return Outcome{}, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out strings.Builder
	out.WriteString(fmt.Sprintf("DIR: %s (%d entries)\n", path, len(entries)))
	for _, entry := range entries {
		if entry.IsDir() {
			out.WriteString(entry.Name() + "/\n")
			continue
		}
		size := int64(0)
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		out.WriteString(fmt.Sprintf("%s (%d bytes)\n", entry.Name(), size))
	}

	return Text(strings.TrimRight(out.String(), "\n")), nil
}
