// Package results turns a completed job's summary table into display-ready
// view models. Everything here is pure; escaping happens in the templates.
package results

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/boamp-console/internal/jobs"
)

// Labels shown on the stat cards and in the empty table.
const (
	LabelTotal          = "Enregistrements Totaux"
	LabelLotsFound      = "Lots Trouvés"
	LabelVisitMandatory = "Visite Obligatoire"
	EmptyTableMessage   = "Aucun résultat trouvé"
	NotAvailable        = "N/A"
)

// Columns is the table header, in display order.
var Columns = []string{
	"Mots-clés", "Acheteur", "Objet", "Lots", "Visite Obligatoire",
	"Département", "Date Limite", "PDF",
}

// Stats are the three counters shown above the table.
type Stats struct {
	Total          int `json:"total"`
	LotsFound      int `json:"lots_found"`
	VisitMandatory int `json:"visit_mandatory"`
}

// Badge is the visit-mandatory pill.
type Badge struct {
	Class string `json:"class"`
	Label string `json:"label"`
}

// Link is an optional external link; Href is empty when the cell holds no
// usable URL.
type Link struct {
	Href  string `json:"href,omitempty"`
	Label string `json:"label"`
}

// Available reports whether the link should render as an anchor.
func (l Link) Available() bool {
	return l.Href != ""
}

// Row is one table row ready for rendering.
type Row struct {
	Keywords      string `json:"keywords"`
	Buyer         string `json:"buyer"`
	Subject       string `json:"subject"`
	Lots          string `json:"lots"`
	Visit         Badge  `json:"visit"`
	Department    string `json:"department"`
	DeadlineDate  string `json:"deadline_date"`
	PDF           Link   `json:"pdf"`
	ExtractedLink Link   `json:"extracted_link"`
}

// View is the full results section.
type View struct {
	ProcessID       string `json:"process_id"`
	Stats           Stats  `json:"stats"`
	Rows            []Row  `json:"rows"`
	DepartmentCount int    `json:"department_count"`
	StatusLine      string `json:"status_line"`
	Message         string `json:"message,omitempty"`
	DownloadURL     string `json:"download_url"`
	SummaryURL      string `json:"summary_url"`
}

// Empty reports whether the table has no rows.
func (v View) Empty() bool {
	return len(v.Rows) == 0
}

// ComputeStats counts rows, rows with lots and rows flagged for a mandatory
// visit.
func ComputeStats(rows []jobs.ResultRow) Stats {
	s := Stats{Total: len(rows)}
	for _, r := range rows {
		if !r.Lots.Blank() {
			s.LotsFound++
		}
		if r.VisitMandatory.String() == "yes" {
			s.VisitMandatory++
		}
	}
	return s
}

// VisitBadge styles the visit-mandatory cell.
func VisitBadge(v jobs.Text) Badge {
	if v.String() == "yes" {
		return Badge{Class: "bg-warning", Label: "yes"}
	}
	label := v.String()
	if label == "" {
		label = "no"
	}
	return Badge{Class: "bg-secondary", Label: label}
}

// PDFLink links to the notice PDF when the cell holds a usable URL.
func PDFLink(v jobs.Text) Link {
	return externalLink(v, "📄 PDF")
}

func externalLink(v jobs.Text, label string) Link {
	raw := strings.TrimSpace(v.String())
	if raw == "" || raw == NotAvailable {
		return Link{Label: NotAvailable}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Link{Label: NotAvailable}
	}
	return Link{Href: raw, Label: label}
}

// StatusLine is the completion message above the results.
func StatusLine(total, departments int) string {
	return fmt.Sprintf("Traitement terminé! %d enregistrements trouvés pour %d départements.", total, departments)
}

// DownloadPaths returns the console paths of the two exports.
func DownloadPaths(processID string) (full, summary string) {
	id := url.PathEscape(processID)
	return "/download/" + id, "/download-summary/" + id
}

// Build assembles the results view from a completed snapshot.
func Build(processID string, p jobs.Progress) View {
	rows := make([]Row, 0, len(p.SummaryTable))
	for _, r := range p.SummaryTable {
		rows = append(rows, Row{
			Keywords:      r.Keywords.String(),
			Buyer:         r.Buyer.String(),
			Subject:       r.Subject.String(),
			Lots:          r.Lots.String(),
			Visit:         VisitBadge(r.VisitMandatory),
			Department:    r.Department.String(),
			DeadlineDate:  r.DeadlineDate.String(),
			PDF:           PDFLink(r.PDFLink),
			ExtractedLink: externalLink(r.ExtractedLink, "Lien"),
		})
	}
	stats := ComputeStats(p.SummaryTable)
	full, summary := DownloadPaths(processID)
	return View{
		ProcessID:       processID,
		Stats:           stats,
		Rows:            rows,
		DepartmentCount: len(p.Departments),
		StatusLine:      StatusLine(stats.Total, len(p.Departments)),
		Message:         strings.TrimSpace(p.Message),
		DownloadURL:     full,
		SummaryURL:      summary,
	}
}
