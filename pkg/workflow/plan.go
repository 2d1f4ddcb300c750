package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultExpectedOutcome fills in for tasks planned without an explicit
// definition of done.
const DefaultExpectedOutcome = "Complete the task successfully."

// Plan is the planner's decomposition of one request.
type Plan struct {
	Analyse string        `json:"analyse"`
	Tasks   []PlannedTask `json:"tasks"`
}

// PlannedTask is one entry from the planner: an objective plus how to
// tell it is done.
type PlannedTask struct {
	Step            string `json:"step"`
	ExpectedOutcome string `json:"expected_outcome"`
}

// UnmarshalJSON accepts both the object shape and a bare objective
// string, since planner output varies.
func (t *PlannedTask) UnmarshalJSON(data []byte) error {
	var step string
	if err := json.Unmarshal(data, &step); err == nil {
		t.Step = step
		t.ExpectedOutcome = ""
		return nil
	}

	type alias PlannedTask
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = PlannedTask(a)
	return nil
}

// ParsePlan decodes the planner's {"analyse", "tasks"} response,
// tolerating fences and surrounding prose. Tasks without an expected
// outcome get the default one.
func ParsePlan(response string) (Plan, error) {
	payload, err := extractJSONValue(stripPlanFences(response), '{', '}')
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return Plan{}, fmt.Errorf("plan is not valid JSON: %w", err)
	}

	tasks := plan.Tasks[:0]
	for _, task := range plan.Tasks {
		if strings.TrimSpace(task.Step) == "" {
			continue
		}
		if strings.TrimSpace(task.ExpectedOutcome) == "" {
			task.ExpectedOutcome = DefaultExpectedOutcome
		}
		tasks = append(tasks, task)
	}
	plan.Tasks = tasks
	return plan, nil
}
