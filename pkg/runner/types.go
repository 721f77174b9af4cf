package runner

import (
	"time"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/plan"
)

// State is the position of a test case in the execution state machine.
type State int

const (
	StateFresh State = iota
	StateLoaded
	StatePlanned
	StateBuilt
	StateInspected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StatePlanned:
		return "planned"
	case StateBuilt:
		return "built"
	case StateInspected:
		return "inspected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stage names one step of a test run.
type Stage string

const (
	StageLoad    Stage = "load"
	StagePlan    Stage = "plan"
	StageBuild   Stage = "build"
	StageInspect Stage = "inspect"
)

// Outcome is the result of one stage.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped" // prerequisite absent, not an error
	// OutcomeNotAttempted means an earlier stage failed.
	OutcomeNotAttempted Outcome = "not-attempted"
)

// StageResult records the outcome of one stage.
type StageResult struct {
	Stage      Stage   `json:"stage"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}

// Status is the overall verdict for a test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of running one test case.
type Result struct {
	ID         string         `json:"id"`
	Path       string         `json:"path,omitempty"`
	Desc       map[string]any `json:"desc,omitempty"`
	Format     string         `json:"format,omitempty"`
	State      State          `json:"state"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	ErrorClass failure.Class  `json:"error_class,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	Plan       *plan.Plan     `json:"plan,omitempty"`
	Stages     []StageResult  `json:"stages"`
	DurationMs int64          `json:"duration_ms"`
}

// Stage returns the recorded result for stage s.
func (r *Result) Stage(s Stage) (StageResult, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == s {
			return sr, true
		}
	}
	return StageResult{}, false
}

func stageResult(stage Stage, outcome Outcome, reason string, start time.Time) StageResult {
	return StageResult{
		Stage:      stage,
		Outcome:    outcome,
		Reason:     reason,
		DurationMs: time.Since(start).Milliseconds(),
	}
}
