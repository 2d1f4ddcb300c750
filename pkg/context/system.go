package context

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/batonlabs/baton/pkg/tools"
)

// maxEnvValueChars truncates environment values in the system context.
const maxEnvValueChars = 200

// SystemContext builds the agent's standing context: the tool catalog
// (filtered to the authorized set, control tools always present), the
// host environment, and the project structure. An empty authorized list
// means every registered tool.
func (m *Manager) SystemContext(authorizedTools []string) string {
	sections := make([]string, 0, 3)
	for _, section := range []string{
		m.toolsCatalog(authorizedTools),
		m.environmentBlock(),
		m.projectStructure(),
	} {
		if section != "" {
			sections = append(sections, section)
		}
	}
	return strings.Join(sections, "\n\n")
}

func (m *Manager) toolsCatalog(authorized []string) string {
	if m.registry == nil {
		return ""
	}
	infos := m.registry.AllToolsInfo()
	if len(infos) == 0 {
		return ""
	}

	allowed := make(map[string]bool, len(authorized))
	for _, name := range authorized {
		allowed[name] = true
	}

	var b strings.Builder
	b.WriteString("AVAILABLE TOOLS:\n")
	listed := 0
	for _, meta := range infos {
		if len(authorized) > 0 && !allowed[meta.Name] && !tools.IsControlTool(meta.Name) {
			continue
		}
		listed++
		b.WriteString(fmt.Sprintf("- %s: %s\n", meta.Name, meta.Description))
		for _, p := range meta.Parameters {
			required := ""
			if p.Required {
				required = ", required"
			}
			b.WriteString(fmt.Sprintf("    %s (%s%s): %s\n", p.Name, p.Type, required, p.Description))
		}
	}
	if listed == 0 {
		return ""
	}

	b.WriteString("\nTo call a tool, return ONLY raw JSON: {\"tool_name\": \"<name>\", \"arguments\": {...}}.\n")
	b.WriteString("Use the tool names exactly as listed above.")
	return b.String()
}

func (m *Manager) environmentBlock() string {
	cwd := m.workingDir
	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}

	var b strings.Builder
	b.WriteString("ENVIRONMENT:\n")
	b.WriteString(fmt.Sprintf("- os: %s/%s\n", runtime.GOOS, runtime.GOARCH))
	b.WriteString(fmt.Sprintf("- runtime: %s\n", runtime.Version()))
	b.WriteString(fmt.Sprintf("- working directory: %s\n", cwd))
	for _, name := range m.safeEnvVars {
		value, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if len(value) > maxEnvValueChars {
			value = value[:maxEnvValueChars] + "..."
		}
		b.WriteString(fmt.Sprintf("- %s=%s\n", name, value))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Manager) projectStructure() string {
	patterns := loadGitignore(filepath.Join(m.workingDir, ".gitignore"))

	var b strings.Builder
	b.WriteString("PROJECT STRUCTURE:\n")
	if writeTree(&b, m.workingDir, "", 0, patterns) == 0 {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}
