// Package jobs talks to the extraction backend: it submits jobs, polls their
// progress and decodes the progress payload into typed values.
package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Status is the backend job status.
type Status string

// Known statuses.
const (
	StatusStarted    Status = "started"
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether polling should stop.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

var stepLabels = map[string]string{
	"starting":             "Démarrage du traitement...",
	"initializing":         "Initialisation du traitement...",
	"data_extraction":      "Extraction des données depuis l'API BOAMP...",
	"keyword_filtering":    "Filtrage par mots-clés...",
	"deduplication":        "Suppression des doublons...",
	"department_filtering": "Filtrage par départements sélectionnés...",
	"pdf_processing":       "Traitement des PDFs...",
	"processing":           "Traitement en cours...",
	"completed":            "Traitement terminé!",
}

// DefaultStepLabel is shown for unknown steps.
const DefaultStepLabel = "Traitement en cours..."

// StepLabel maps a backend step to its display label.
func StepLabel(step string) string {
	if label, ok := stepLabels[step]; ok {
		return label
	}
	return DefaultStepLabel
}

// Text is a result cell. The backend emits strings, numbers, booleans, null
// or lists depending on the column; all of them decode to display text.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text cell: %w", err)
		}
		*t = Text(s)
	case '[':
		var items []Text
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode list cell: %w", err)
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				parts = append(parts, string(it))
			}
		}
		*t = Text(strings.Join(parts, ", "))
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode bool cell: %w", err)
		}
		*t = Text(strconv.FormatBool(b))
	case '{':
		*t = Text(data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode number cell: %w", err)
		}
		*t = Text(n.String())
	}
	return nil
}

// String returns the cell text.
func (t Text) String() string {
	return string(t)
}

// Blank reports whether the cell is empty after trimming.
func (t Text) Blank() bool {
	return strings.TrimSpace(string(t)) == ""
}

// ResultRow is one summary table row.
type ResultRow struct {
	Keywords       Text `json:"Keywords"`
	Buyer          Text `json:"Acheteur"`
	Subject        Text `json:"Objet"`
	Lots           Text `json:"Lots"`
	VisitMandatory Text `json:"Visite Obligatoire"`
	Department     Text `json:"Département"`
	DeadlineDate   Text `json:"Date Limite"`
	PDFLink        Text `json:"PDF Link"`
	ExtractedLink  Text `json:"Extracted Link"`
}

// Progress is one progress snapshot.
type Progress struct {
	Status           Status      `json:"status"`
	CurrentStep      string      `json:"current_step"`
	TotalRecords     int         `json:"total_records"`
	ProcessedRecords int         `json:"processed_records"`
	CurrentRecord    Text        `json:"current_record"`
	Keywords         []string    `json:"keywords,omitempty"`
	TargetDate       string      `json:"target_date,omitempty"`
	Departments      []string    `json:"departments,omitempty"`
	SummaryTable     []ResultRow `json:"summary_table,omitempty"`
	Message          string      `json:"message,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// Validate rejects payloads the console cannot act on.
func (p Progress) Validate() error {
	if p.Status == "" {
		return errors.New("progress status is required")
	}
	if p.TotalRecords < 0 || p.ProcessedRecords < 0 {
		return errors.New("progress counters must be >= 0")
	}
	return nil
}

// StepLabel returns the label for the current step, or for the status when
// the backend has not reported a step yet.
func (p Progress) StepLabel() string {
	if p.CurrentStep != "" {
		if p.Status == StatusCompleted {
			return StepLabel(string(StatusCompleted))
		}
		return StepLabel(p.CurrentStep)
	}
	return StepLabel(string(p.Status))
}

// Percent returns round(processed/total*100). ok is false when total is not
// positive, in which case the caller leaves the bar unchanged.
func Percent(processed, total int) (int, bool) {
	if total <= 0 || processed < 0 {
		return 0, false
	}
	return int(math.Round(float64(processed) / float64(total) * 100)), true
}

// ProgressText formats "25% (1/4)"; ok mirrors Percent.
func ProgressText(processed, total int) (string, bool) {
	pct, ok := Percent(processed, total)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d%% (%d/%d)", pct, processed, total), true
}

// Request is the job submission form.
type Request struct {
	TargetDate     string   `json:"target_date"`
	Departments    string   `json:"selected_departments"`
	Keywords       []string `json:"selected_keywords"`
	CustomKeywords string   `json:"custom_keywords"`
}

// DepartmentCount counts the comma-separated departments.
func (r Request) DepartmentCount() int {
	n := 0
	for _, code := range strings.Split(r.Departments, ",") {
		if strings.TrimSpace(code) != "" {
			n++
		}
	}
	return n
}

// Submission is the backend's answer to a job submission.
type Submission struct {
	ProcessID string `json:"process_id"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
}
