// Package geo bridges department boundaries to the map widget: it downloads
// the GeoJSON, keeps per-feature styling in sync with the selection and
// turns widget clicks into selections.
package geo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/department"
	"github.com/JakeFAU/boamp-console/internal/selection"
)

var (
	// ErrGeometryUnavailable is returned for feature interactions before
	// the boundaries loaded, or after the load failed.
	ErrGeometryUnavailable = errors.New("department geometry not loaded")
	// ErrUnknownFeature is returned for codes absent from the boundaries.
	ErrUnknownFeature = errors.New("unknown department feature")
)

// State tracks the boundary load.
type State string

// Load states.
const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Notice is shown in place of the map when the boundaries cannot be loaded.
type Notice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// FallbackNotice replaces the map after a failed load.
var FallbackNotice = Notice{
	Title: "Impossible de charger la carte",
	Body: `Les limites des départements n'ont pas pu être chargées. ` +
		`Vous pouvez toujours utiliser le bouton "Île-de-France" pour sélectionner les départements prédéfinis.`,
}

// View is the initial map view and tile layer.
type View struct {
	CenterLat   float64 `json:"center_lat"`
	CenterLng   float64 `json:"center_lng"`
	Zoom        int     `json:"zoom"`
	TileURL     string  `json:"tile_url"`
	Attribution string  `json:"attribution"`
}

// Loader fetches the raw boundary document.
type Loader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config wires an Adapter.
type Config struct {
	View          View
	GeometryURL   string
	ReadyDelay    time.Duration
	FallbackDelay time.Duration
	Logger        *zap.Logger
	OnChange      func()
}

// FeatureState is the widget-facing state of one department feature.
type FeatureState struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Selected    bool   `json:"selected"`
	Highlighted bool   `json:"highlighted"`
	Style       Style  `json:"style"`
	Tooltip     string `json:"tooltip,omitempty"`
}

// Snapshot summarizes the adapter for clients.
type Snapshot struct {
	State        State          `json:"state"`
	View         View           `json:"view"`
	Notice       *Notice        `json:"notice,omitempty"`
	Bounds       *[2][2]float64 `json:"bounds,omitempty"`
	FeatureCount int            `json:"feature_count"`
	Hovered      string         `json:"hovered,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type feature struct {
	code     string
	name     string
	geometry orb.Geometry
}

// Adapter owns the map-side view of the selection. It never owns selection
// state itself: it mirrors the Store through the Observer callbacks.
type Adapter struct {
	cfg    Config
	loader Loader
	store  *selection.Store
	logger *zap.Logger

	mu       sync.RWMutex
	state    State
	loadErr  error
	features map[string]feature
	order    []string
	bounds   orb.Bound
	selected map[string]struct{}
	hovered  string
}

// NewAdapter builds an Adapter that observes store.
func NewAdapter(cfg Config, loader Loader, store *selection.Store) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		cfg:      cfg,
		loader:   loader,
		store:    store,
		logger:   logger.Named("geo"),
		state:    StateLoading,
		features: make(map[string]feature),
		selected: make(map[string]struct{}),
	}
	for _, code := range store.Codes() {
		a.selected[code] = struct{}{}
	}
	store.Subscribe(a)
	return a
}

// Init loads the boundaries and, after the ready or fallback delay,
// invokes onReady. It blocks until the load finishes; callers usually run
// it on its own goroutine.
func (a *Adapter) Init(ctx context.Context, onReady func()) error {
	err := a.Load(ctx)
	delay := a.cfg.ReadyDelay
	if err != nil {
		delay = a.cfg.FallbackDelay
	}
	if onReady != nil {
		timer := time.AfterFunc(delay, func() {
			if ctx.Err() != nil {
				return
			}
			onReady()
		})
		context.AfterFunc(ctx, func() { timer.Stop() })
	}
	return err
}

// Load fetches and decodes the boundary document.
func (a *Adapter) Load(ctx context.Context) error {
	if a.loader == nil {
		return a.fail(errors.New("no geometry loader configured"))
	}
	body, err := a.loader.Fetch(ctx, a.cfg.GeometryURL)
	if err != nil {
		return a.fail(fmt.Errorf("fetch geometry: %w", err))
	}
	features, order, bounds, err := decode(body)
	if err != nil {
		return a.fail(err)
	}

	a.mu.Lock()
	a.features = features
	a.order = order
	a.bounds = bounds
	a.state = StateReady
	a.loadErr = nil
	a.mu.Unlock()

	a.logger.Info("department geometry loaded", zap.Int("features", len(order)))
	a.changed()
	return nil
}

func (a *Adapter) fail(err error) error {
	a.mu.Lock()
	a.state = StateFailed
	a.loadErr = err
	a.mu.Unlock()
	a.logger.Warn("department geometry unavailable, using fallback", zap.Error(err))
	a.changed()
	return err
}

func decode(body []byte) (map[string]feature, []string, orb.Bound, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, nil, orb.Bound{}, fmt.Errorf("decode geometry: %w", err)
	}
	features := make(map[string]feature, len(fc.Features))
	order := make([]string, 0, len(fc.Features))
	var (
		bounds orb.Bound
		first  = true
	)
	for _, f := range fc.Features {
		code := strings.TrimSpace(f.Properties.MustString("code", ""))
		if code == "" || f.Geometry == nil {
			continue
		}
		name := f.Properties.MustString("nom", "")
		if name == "" {
			if d, ok := department.Lookup(code); ok {
				name = d.Name
			}
		}
		if _, dup := features[code]; !dup {
			order = append(order, code)
		}
		features[code] = feature{code: code, name: name, geometry: f.Geometry}
		if first {
			bounds = f.Geometry.Bound()
			first = false
		} else {
			bounds = bounds.Union(f.Geometry.Bound())
		}
	}
	if len(order) == 0 {
		return nil, nil, orb.Bound{}, errors.New("decode geometry: no department features")
	}
	department.SortCodes(order)
	return features, order, bounds, nil
}

// Click selects the clicked department. It reports whether the selection
// changed.
func (a *Adapter) Click(code string) (bool, error) {
	f, err := a.lookup(code)
	if err != nil {
		return false, err
	}
	return a.store.Add(f.code, f.name), nil
}

// Hover highlights the feature and returns its state with a tooltip. The
// emphasis belongs to the pointer that asked for it, so no change is
// published.
func (a *Adapter) Hover(code string) (FeatureState, error) {
	if _, err := a.lookup(code); err != nil {
		return FeatureState{}, err
	}
	a.mu.Lock()
	a.hovered = code
	a.mu.Unlock()
	return a.Feature(code)
}

// Leave restores the feature to its selected or unselected style.
func (a *Adapter) Leave(code string) (FeatureState, error) {
	if _, err := a.lookup(code); err != nil {
		return FeatureState{}, err
	}
	a.mu.Lock()
	if a.hovered == code {
		a.hovered = ""
	}
	a.mu.Unlock()
	return a.Feature(code)
}

// Feature returns the current state of one feature.
func (a *Adapter) Feature(code string) (FeatureState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateReady {
		return FeatureState{}, ErrGeometryUnavailable
	}
	f, ok := a.features[code]
	if !ok {
		return FeatureState{}, fmt.Errorf("%w: %s", ErrUnknownFeature, code)
	}
	return a.featureStateLocked(f), nil
}

// Features returns every feature state in display order.
func (a *Adapter) Features() []FeatureState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]FeatureState, 0, len(a.order))
	for _, code := range a.order {
		out = append(out, a.featureStateLocked(a.features[code]))
	}
	return out
}

func (a *Adapter) featureStateLocked(f feature) FeatureState {
	_, selected := a.selected[f.code]
	style := UnselectedStyle
	if selected {
		style = SelectedStyle
	}
	fs := FeatureState{Code: f.code, Name: f.name, Selected: selected, Style: style}
	if a.hovered == f.code {
		fs.Highlighted = true
		fs.Style = highlight(style)
		fs.Tooltip = Tooltip(f.name, f.code)
	}
	return fs
}

// Collection returns the boundaries as a FeatureCollection whose properties
// carry the current style, ready for the widget's GeoJSON layer.
func (a *Adapter) Collection() (*geojson.FeatureCollection, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateReady {
		return nil, ErrGeometryUnavailable
	}
	fc := geojson.NewFeatureCollection()
	for _, code := range a.order {
		f := a.features[code]
		fs := a.featureStateLocked(f)
		out := geojson.NewFeature(f.geometry)
		out.Properties["code"] = fs.Code
		out.Properties["nom"] = fs.Name
		out.Properties["selected"] = fs.Selected
		out.Properties["highlighted"] = fs.Highlighted
		out.Properties["style"] = fs.Style
		if fs.Tooltip != "" {
			out.Properties["tooltip"] = fs.Tooltip
		}
		fc.Append(out)
	}
	return fc, nil
}

// Snapshot returns the load state, view and fit bounds.
func (a *Adapter) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := Snapshot{
		State:        a.state,
		View:         a.cfg.View,
		FeatureCount: len(a.order),
		Hovered:      a.hovered,
	}
	switch a.state {
	case StateReady:
		// Leaflet expects [[south, west], [north, east]].
		b := [2][2]float64{
			{a.bounds.Min.Lat(), a.bounds.Min.Lon()},
			{a.bounds.Max.Lat(), a.bounds.Max.Lon()},
		}
		snap.Bounds = &b
	case StateFailed:
		notice := FallbackNotice
		snap.Notice = &notice
		if a.loadErr != nil {
			snap.Error = a.loadErr.Error()
		}
	}
	return snap
}

// Ready reports whether click-to-select is available.
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == StateReady
}

// Codes returns the feature codes in display order.
func (a *Adapter) Codes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

func (a *Adapter) lookup(code string) (feature, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateReady {
		return feature{}, ErrGeometryUnavailable
	}
	f, ok := a.features[code]
	if !ok {
		return feature{}, fmt.Errorf("%w: %s", ErrUnknownFeature, code)
	}
	return f, nil
}

// Added implements selection.Observer.
func (a *Adapter) Added(d department.Department) {
	a.mu.Lock()
	a.selected[d.Code] = struct{}{}
	a.mu.Unlock()
	a.changed()
}

// Removed implements selection.Observer.
func (a *Adapter) Removed(code string) {
	a.mu.Lock()
	delete(a.selected, code)
	a.mu.Unlock()
	a.changed()
}

// Cleared implements selection.Observer.
func (a *Adapter) Cleared() {
	a.mu.Lock()
	clear(a.selected)
	a.mu.Unlock()
	a.changed()
}

func (a *Adapter) changed() {
	if a.cfg.OnChange != nil {
		a.cfg.OnChange()
	}
}
