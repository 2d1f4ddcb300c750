package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/batonlabs/baton/pkg/reasoning"
)

// Todolist step statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// todoUpdateSentinel marks an in-response plan revision.
const todoUpdateSentinel = "todo_update"

// DependsOn lists the step ids a step waits for. Planners emit both a
// single id and a list, so decoding accepts either.
type DependsOn []string

func (d *DependsOn) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*d = nil
		} else {
			*d = DependsOn{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("depends_on must be a step id or a list of ids")
	}
	*d = DependsOn(many)
	return nil
}

// TodoStep is one entry in the living plan.
type TodoStep struct {
	StepID      string    `json:"step_id"`
	Description string    `json:"description"`
	Status      string    `json:"status,omitempty"`
	DependsOn   DependsOn `json:"depends_on,omitempty"`
}

// TodoState is the mutable plan plus its execution record.
type TodoState struct {
	Query       string            `json:"query"`
	Steps       []TodoStep        `json:"todo_list"`
	Completed   []string          `json:"completed"`
	StepResults map[string]string `json:"step_results"`
	Iteration   int               `json:"iteration"`
}

// StateManager guards a TodoState: completed steps never run again,
// dependencies gate eligibility, and plan revisions apply atomically.
type StateManager struct {
	mu    sync.Mutex
	state TodoState
}

// NewStateManager creates an empty state for one request.
func NewStateManager(query string) *StateManager {
	return &StateManager{
		state: TodoState{
			Query:       query,
			StepResults: make(map[string]string),
		},
	}
}

// InitializeFromResponse parses the todolist agent's plan: a JSON array
// of steps, or an object carrying todo_list, with fences tolerated.
// Every entry needs step_id and description; statuses reset to pending.
func (sm *StateManager) InitializeFromResponse(response string) error {
	steps, err := parseTodoSteps(response)
	if err != nil {
		return err
	}
	return sm.SetSteps(steps)
}

// SetSteps seeds the plan directly. Entries without a status become
// pending; prior progress is discarded.
func (sm *StateManager) SetSteps(steps []TodoStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("todolist is empty")
	}

	prepared := make([]TodoStep, len(steps))
	seen := make(map[string]bool, len(steps))
	for i, step := range steps {
		if strings.TrimSpace(step.StepID) == "" || strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("todolist entry %d needs step_id and description", i+1)
		}
		if seen[step.StepID] {
			return fmt.Errorf("duplicate step_id %q", step.StepID)
		}
		seen[step.StepID] = true
		if step.Status == "" {
			step.Status = StatusPending
		}
		step.DependsOn = append(DependsOn(nil), step.DependsOn...)
		prepared[i] = step
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state.Steps = prepared
	sm.state.Completed = nil
	sm.state.StepResults = make(map[string]string)
	sm.state.Iteration = 0
	for _, step := range prepared {
		if step.Status == StatusCompleted {
			sm.state.Completed = append(sm.state.Completed, step.StepID)
		}
	}
	return nil
}

// NextStep returns a copy of the first pending step whose dependencies
// are all completed, or nil when none is runnable.
func (sm *StateManager) NextStep() *TodoStep {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i := range sm.state.Steps {
		step := &sm.state.Steps[i]
		if step.Status != StatusPending {
			continue
		}
		if !sm.dependenciesMet(step) {
			continue
		}
		out := *step
		out.DependsOn = append(DependsOn(nil), step.DependsOn...)
		return &out
	}
	return nil
}

func (sm *StateManager) dependenciesMet(step *TodoStep) bool {
	for _, dep := range step.DependsOn {
		if !sm.completed(dep) {
			return false
		}
	}
	return true
}

func (sm *StateManager) completed(stepID string) bool {
	for _, id := range sm.state.Completed {
		if id == stepID {
			return true
		}
	}
	return false
}

// UpdateFromResult marks the step completed, stores its response,
// applies any todo_update revision found in the response, and bumps
// the iteration counter.
func (sm *StateManager) UpdateFromResult(stepID string, out reasoning.AgentOutput) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	idx := -1
	for i := range sm.state.Steps {
		if sm.state.Steps[i].StepID == stepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("unknown step %q", stepID)
	}

	sm.state.Steps[idx].Status = StatusCompleted
	sm.state.StepResults[stepID] = out.Response
	if !sm.completed(stepID) {
		sm.state.Completed = append(sm.state.Completed, stepID)
	}

	// A broken revision never corrupts the plan: the step stays
	// completed and the list stays as it was.
	if update, ok, err := extractTodoUpdate(out.Response); err != nil {
		slog.Warn("Ignoring todo_update revision", "step", stepID, "error", err)
	} else if ok {
		if err := sm.applyUpdate(update); err != nil {
			slog.Warn("Ignoring todo_update revision", "step", stepID, "error", err)
		}
	}

	sm.state.Iteration++
	return nil
}

// IsComplete reports whether the plan is non-empty and every step is
// completed.
func (sm *StateManager) IsComplete() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.state.Steps) == 0 {
		return false
	}
	for _, step := range sm.state.Steps {
		if step.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Iteration returns how many updates the state has absorbed.
func (sm *StateManager) Iteration() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state.Iteration
}

// Query returns the request this plan serves.
func (sm *StateManager) Query() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state.Query
}

// Snapshot returns a deep copy of the state for inspection.
func (sm *StateManager) Snapshot() TodoState {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := TodoState{
		Query:       sm.state.Query,
		Steps:       make([]TodoStep, len(sm.state.Steps)),
		Completed:   append([]string(nil), sm.state.Completed...),
		StepResults: make(map[string]string, len(sm.state.StepResults)),
		Iteration:   sm.state.Iteration,
	}
	for i, step := range sm.state.Steps {
		step.DependsOn = append(DependsOn(nil), step.DependsOn...)
		out.Steps[i] = step
	}
	for k, v := range sm.state.StepResults {
		out.StepResults[k] = v
	}
	return out
}

// todoUpdate is the in-response revision payload.
type todoUpdate struct {
	Add    []TodoStep  `json:"add"`
	Remove []string    `json:"remove"`
	Modify []todoPatch `json:"modify"`
}

// todoPatch modifies one existing step. Pointer fields distinguish
// "absent" from "set to empty".
type todoPatch struct {
	StepID      string     `json:"step_id"`
	Description *string    `json:"description,omitempty"`
	DependsOn   *DependsOn `json:"depends_on,omitempty"`
}

// applyUpdate applies a revision atomically: it works on a copy and
// commits only when every part is valid.
func (sm *StateManager) applyUpdate(update todoUpdate) error {
	steps := make([]TodoStep, 0, len(sm.state.Steps)+len(update.Add))

	removed := make(map[string]bool, len(update.Remove))
	for _, id := range update.Remove {
		removed[id] = true
	}
	for _, step := range sm.state.Steps {
		if !removed[step.StepID] {
			steps = append(steps, step)
		}
	}

	for _, patch := range update.Modify {
		for i := range steps {
			if steps[i].StepID != patch.StepID {
				continue
			}
			if patch.Description != nil {
				if strings.TrimSpace(*patch.Description) == "" {
					return fmt.Errorf("modify of %q would blank the description", patch.StepID)
				}
				steps[i].Description = *patch.Description
			}
			if patch.DependsOn != nil {
				steps[i].DependsOn = append(DependsOn(nil), (*patch.DependsOn)...)
			}
			break
		}
	}

	ids := make(map[string]bool, len(steps))
	for _, step := range steps {
		ids[step.StepID] = true
	}
	for _, step := range update.Add {
		if strings.TrimSpace(step.StepID) == "" || strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("added step needs step_id and description")
		}
		if ids[step.StepID] {
			return fmt.Errorf("added step %q already exists", step.StepID)
		}
		ids[step.StepID] = true
		step.Status = StatusPending
		step.DependsOn = append(DependsOn(nil), step.DependsOn...)
		steps = append(steps, step)
	}

	sm.state.Steps = steps
	return nil
}

// parseTodoSteps decodes the plan from a bare JSON array or an object
// carrying todo_list.
func parseTodoSteps(response string) ([]TodoStep, error) {
	cleaned := stripPlanFences(response)

	arrayAt := strings.IndexByte(cleaned, '[')
	objectAt := strings.IndexByte(cleaned, '{')

	if arrayAt >= 0 && (objectAt < 0 || arrayAt < objectAt) {
		payload, err := extractJSONValue(cleaned, '[', ']')
		if err != nil {
			return nil, fmt.Errorf("todolist: %w", err)
		}
		var steps []TodoStep
		if err := json.Unmarshal([]byte(payload), &steps); err != nil {
			return nil, fmt.Errorf("todolist is not valid JSON: %w", err)
		}
		return steps, nil
	}

	payload, err := extractJSONValue(cleaned, '{', '}')
	if err != nil {
		return nil, fmt.Errorf("todolist: %w", err)
	}
	var wrapper struct {
		TodoList []TodoStep `json:"todo_list"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
		return nil, fmt.Errorf("todolist is not valid JSON: %w", err)
	}
	if wrapper.TodoList == nil {
		return nil, fmt.Errorf("todolist: response carries no todo_list")
	}
	return wrapper.TodoList, nil
}

// extractTodoUpdate finds the todo_update sentinel in a response and
// decodes the revision object that follows it.
func extractTodoUpdate(response string) (todoUpdate, bool, error) {
	at := strings.Index(response, todoUpdateSentinel)
	if at < 0 {
		return todoUpdate{}, false, nil
	}

	rest := response[at+len(todoUpdateSentinel):]
	payload, err := extractJSONValue(rest, '{', '}')
	if err != nil {
		return todoUpdate{}, false, fmt.Errorf("revision after %s: %w", todoUpdateSentinel, err)
	}

	var update todoUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return todoUpdate{}, false, fmt.Errorf("revision is not valid JSON: %w", err)
	}
	return update, true, nil
}
