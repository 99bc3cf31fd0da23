package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle milestone an Event records.
type Stage string

// Supported stages.
const (
	StageSubmitted  Stage = "JOB_SUBMITTED"
	StageRejected   Stage = "JOB_REJECTED"
	StageProgress   Stage = "JOB_PROGRESS"
	StagePollFailed Stage = "POLL_FAILED"
	StageCompleted  Stage = "JOB_COMPLETED"
	StageFailed     Stage = "JOB_FAILED"
	StageTimedOut   Stage = "JOB_TIMED_OUT"
	// StageAbandoned marks a job whose polling stopped because another job
	// replaced it.
	StageAbandoned Stage = "JOB_ABANDONED"
)

// Terminal reports whether the stage ends a job.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageTimedOut, StageAbandoned:
		return true
	default:
		return false
	}
}

// Event captures one job milestone.
type Event struct {
	// JobID is the backend process id. Rejected submissions have none.
	JobID string `json:"job_id,omitempty"`
	// TS is the emitter's timestamp.
	TS    time.Time `json:"ts"`
	Stage Stage     `json:"stage"`
	// Step is the backend's current_step for progress events.
	Step      string `json:"step,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Total     int    `json:"total,omitempty"`
	// Rows is the summary table size on completion.
	Rows        int `json:"rows,omitempty"`
	Departments int `json:"departments,omitempty"`
	// Dur is the time since submission for terminal events.
	Dur time.Duration `json:"dur,omitempty"`
	// Note carries low-volume context such as an error message.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRejected:
	case StageSubmitted, StageProgress, StagePollFailed, StageCompleted, StageFailed, StageTimedOut, StageAbandoned:
		if e.JobID == "" {
			return fmt.Errorf("stage %s requires a job id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Processed < 0 || e.Total < 0 || e.Rows < 0 || e.Departments < 0 {
		return errors.New("counters must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
