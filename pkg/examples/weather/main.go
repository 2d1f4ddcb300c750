// Example weather registers a custom tool and routes a request through
// it. The scheduler handles argument coercion, so Execute receives the
// declared types; the structured outcome reaches the agent as JSON.
//
// Prerequisites:
//   - Set DEEPSEEK_API_KEY (or BATON_API_KEY) in the environment
//
// Run:
//
//	go run ./pkg/examples/weather
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/runtime"
	"github.com/batonlabs/baton/pkg/tools"
)

type weatherTool struct{}

func (weatherTool) Metadata() tools.Metadata {
	return tools.Metadata{
		Name:        "get_weather",
		Description: "Get current weather for a city. Returns temperature and conditions.",
		Category:    tools.CategoryExternal,
		Parameters: []tools.Parameter{
			{Name: "city", Type: tools.TypeString, Description: "City to look up", Required: true},
			{Name: "units", Type: tools.TypeString, Description: "celsius or fahrenheit", Default: "celsius"},
		},
	}
}

func (weatherTool) Execute(ctx context.Context, args map[string]any) (tools.Outcome, error) {
	city, _ := args["city"].(string)
	units, _ := args["units"].(string)

	// Simulated data; a real tool would call a weather API here.
	temp := 22.0
	if units == "fahrenheit" {
		temp = 72.0
	}
	return tools.Structured(map[string]any{
		"city":        city,
		"temperature": temp,
		"units":       units,
		"conditions":  "sunny",
		"humidity":    65,
	}), nil
}

func main() {
	_ = config.LoadEnvFiles()

	cfg, err := config.DefaultConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, runtime.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	if err := rt.Tools().Register(weatherTool{}); err != nil {
		log.Fatal(err)
	}

	result := rt.Orchestrator().HandleRequest(ctx,
		"What's the weather like in Berlin today, in celsius?")
	fmt.Println(result.Response)
	if !result.Success {
		log.Fatalf("request failed: %s", result.Error)
	}
}
