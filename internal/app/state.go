package app

import (
	"github.com/JakeFAU/boamp-console/internal/geo"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/notify"
	"github.com/JakeFAU/boamp-console/internal/results"
	"github.com/JakeFAU/boamp-console/internal/selection"
)

// Change kinds pushed to subscribers.
const (
	ChangeSelection    = "selection"
	ChangeMap          = "map"
	ChangeNotification = "notification"
	ChangeJob          = "job"
	ChangeResults      = "results"
)

// Change is one state update. Payload is the new value of the named part.
type Change struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Status alert levels for the inline status line.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelDanger  = "danger"
)

// JobView is the loading modal, the inline status line and the progress bar.
type JobView struct {
	ProcessID string      `json:"process_id,omitempty"`
	Status    jobs.Status `json:"status,omitempty"`
	// ModalOpen is true from submission until the job ends or is rejected.
	ModalOpen   bool   `json:"modal_open"`
	StatusText  string `json:"status_text,omitempty"`
	StatusLevel string `json:"status_level,omitempty"`
	// ShowProgress becomes true once a process id is known.
	ShowProgress bool   `json:"show_progress"`
	StepLabel    string `json:"step_label,omitempty"`
	Percent      int    `json:"percent"`
	ProgressText string `json:"progress_text,omitempty"`
	Departments  int    `json:"departments,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Running reports whether a job is being polled.
func (j JobView) Running() bool {
	return j.ProcessID != "" && !j.Status.Terminal() && j.Error == ""
}

// MapView is the map part of the state.
type MapView struct {
	geo.Snapshot
	Features []geo.FeatureState `json:"features,omitempty"`
}

// State is a consistent snapshot of everything the page shows.
type State struct {
	Selection    selection.View       `json:"selection"`
	Map          MapView              `json:"map"`
	Keywords     []string             `json:"keywords"`
	TargetDate   string               `json:"target_date"`
	Job          JobView              `json:"job"`
	Results      *results.View        `json:"results,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}
