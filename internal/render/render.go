// Package render produces the console's HTML: the full page and the
// fragments the page swaps in when the state changes. Every value goes
// through html/template, so backend text is always escaped.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/JakeFAU/boamp-console/internal/app"
	"github.com/JakeFAU/boamp-console/internal/notify"
	"github.com/JakeFAU/boamp-console/internal/results"
	"github.com/JakeFAU/boamp-console/internal/selection"
)

//go:embed templates/*.html
var templateFS embed.FS

var labels = map[string]string{
	"total": results.LabelTotal,
	"lots":  results.LabelLotsFound,
	"visit": results.LabelVisitMandatory,
	"empty": results.EmptyTableMessage,
}

var alertClasses = map[notify.Level]string{
	notify.LevelInfo:    "info",
	notify.LevelSuccess: "success",
	notify.LevelError:   "danger",
}

// Renderer executes the parsed templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"label":   func(key string) string { return labels[key] },
		"columns": func() []string { return results.Columns },
		"level": func(l notify.Level) string {
			if c, ok := alertClasses[l]; ok {
				return c
			}
			return "info"
		},
	}
	tmpl, err := template.New("console").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page renders the full console page.
func (r *Renderer) Page(w io.Writer, st app.State) error {
	return r.execute(w, "page", st)
}

// Selection renders the selected-departments panel.
func (r *Renderer) Selection(w io.Writer, v selection.View) error {
	return r.execute(w, "selection", v)
}

// Job renders the status line and progress bar.
func (r *Renderer) Job(w io.Writer, v app.JobView) error {
	return r.execute(w, "job", v)
}

// Results renders the stat cards, download links and table. A nil view
// renders an empty section.
func (r *Renderer) Results(w io.Writer, v *results.View) error {
	return r.execute(w, "results", v)
}

// Notification renders the toast. A nil notification renders nothing
// inside the container.
func (r *Renderer) Notification(w io.Writer, n *notify.Notification) error {
	return r.execute(w, "notification", n)
}

// execute renders into a buffer first so a failing template never leaves a
// half-written response.
func (r *Renderer) execute(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
