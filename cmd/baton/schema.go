package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/batonlabs/baton/pkg/config"
)

// SchemaCmd generates a JSON Schema for the configuration file, for
// editor completion and external validation. Output goes to stdout.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://batonlabs.dev/schemas/config.json"
	schema.Title = "Baton Configuration Schema"
	schema.Description = "Configuration schema for the baton agent orchestrator"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"llm": map[string]interface{}{
				"api_key": "${DEEPSEEK_API_KEY}",
				"model":   "deepseek-chat",
			},
			"workflow": map[string]interface{}{
				"mode": "todolist",
			},
			"agents": map[string]interface{}{
				"definitions": map[string]interface{}{
					"research_agent": map[string]interface{}{
						"description":   "Looks up background material before execution.",
						"system_prompt": "You are a research specialist.",
					},
				},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
