// -- api/schemas/agent.go --
package schemas

import "time"

// ActionResult is the outcome of dispatching a single model-requested action.
// Unknown actions and handler failures are reported here, never as panics.
type ActionResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
	// Blocked distinguishes a safety policy denial from an execution failure.
	Blocked bool `json:"blocked,omitempty"`
	// SafetyAcknowledged is set when the model attached a safety_decision
	// signal that the dispatcher auto-acknowledged.
	SafetyAcknowledged bool `json:"safety_acknowledged,omitempty"`
}

// FunctionResponsePayload converts the result into the map shape the model
// expects in a functionResponse part.
func (r ActionResult) FunctionResponsePayload() map[string]any {
	payload := map[string]any{}
	if r.OK {
		payload["result"] = "success"
		if r.Detail != "" {
			payload["detail"] = r.Detail
		}
	} else {
		payload["result"] = "error"
		payload["error"] = r.Error
		if r.Blocked {
			payload["blocked"] = true
		}
	}
	if r.SafetyAcknowledged {
		payload["safety_acknowledgement"] = "true"
	}
	return payload
}

// Step is a single unit of an execution plan.
type Step struct {
	Number   int    `json:"step_number"`
	Action   string `json:"action"`
	Expected string `json:"expected_outcome"`
	Criteria string `json:"success_criteria"`
}

// Plan is the ordered decomposition of a natural language goal.
type Plan struct {
	Goal  string `json:"goal"`
	Steps []Step `json:"steps"`
}

// StepOutcome classifies how a plan step ended.
type StepOutcome string

const (
	StepCompleted StepOutcome = "completed"
	StepFailed    StepOutcome = "failed"
	// StepSkipped counts as neither completed nor failed in the run summary.
	StepSkipped StepOutcome = "skipped"
)

// StepResult records the outcome of one executed plan step.
type StepResult struct {
	Step       Step              `json:"step"`
	Outcome    StepOutcome       `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// ValidationResult is the vision model's judgment of a step screenshot.
type ValidationResult struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	// ErrorType is one of: captcha, error_page, not_found, blocked, unexpected.
	ErrorType string `json:"error_type,omitempty"`
}

// SessionState is the lifecycle state of the single in-process automation.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateRunning        SessionState = "running"
	StateWaitingForUser SessionState = "waiting_for_user"
	StateCompleted      SessionState = "completed"
	StateError          SessionState = "error"
)

// StatusSnapshot is the pollable view of the automation session.
type StatusSnapshot struct {
	SessionID   string       `json:"session_id"`
	State       SessionState `json:"state"`
	Goal        string       `json:"goal,omitempty"`
	CurrentStep int          `json:"current_step,omitempty"`
	TotalSteps  int          `json:"total_steps,omitempty"`
	Question    string       `json:"question,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BookingDetails holds the validated inputs for the flight booking workflow.
type BookingDetails struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Return      time.Time `json:"return,omitempty"`
	RoundTrip   bool      `json:"round_trip"`
	Passengers  int       `json:"passengers"`
	Cabin       string    `json:"cabin"` // economy, premium, business, first
}
