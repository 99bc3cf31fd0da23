package selection

import (
	"slices"
	"strings"
	"sync"

	"github.com/JakeFAU/boamp-console/internal/department"
)

// EmptyHint is shown when nothing is selected.
const EmptyHint = `Aucun département sélectionné. Cliquez sur la carte ou utilisez le bouton "Île-de-France".`

// View is the rendered state of the panel.
type View struct {
	Entries     []department.Department `json:"entries"`
	Count       int                     `json:"count"`
	EmptyHint   string                  `json:"empty_hint,omitempty"`
	HiddenValue string                  `json:"hidden_value"`
}

// Empty reports whether the panel shows the placeholder.
func (v View) Empty() bool {
	return v.Count == 0
}

// Panel re-renders itself from the Store after every mutation and keeps the
// comma-joined hidden field value that the submitter reads.
type Panel struct {
	store *Store

	mu       sync.RWMutex
	view     View
	onChange []func(View)
}

// NewPanel builds a Panel observing store.
func NewPanel(store *Store) *Panel {
	p := &Panel{store: store}
	p.render()
	store.Subscribe(p)
	return p
}

// OnChange registers fn to receive every re-rendered view.
func (p *Panel) OnChange(fn func(View)) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}

// View returns the latest rendered view.
func (p *Panel) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// HiddenValue returns the serialized selection handed to the submitter.
func (p *Panel) HiddenValue() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view.HiddenValue
}

// Remove handles an entry's remove button.
func (p *Panel) Remove(code string) bool {
	return p.store.Remove(code)
}

// Added implements Observer.
func (p *Panel) Added(department.Department) { p.render() }

// Removed implements Observer.
func (p *Panel) Removed(string) { p.render() }

// Cleared implements Observer.
func (p *Panel) Cleared() { p.render() }

func (p *Panel) render() {
	entries := p.store.Sorted()
	codes := make([]string, len(entries))
	for i, d := range entries {
		codes[i] = d.Code
	}
	v := View{
		Entries:     entries,
		Count:       len(entries),
		HiddenValue: strings.Join(codes, ","),
	}
	if v.Count == 0 {
		v.EmptyHint = EmptyHint
	}

	p.mu.Lock()
	p.view = v
	listeners := slices.Clone(p.onChange)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
