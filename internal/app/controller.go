// Package app holds the console's application state. The Controller owns the
// selection, the map adapter, the current job and the notification, and is
// the only writer of that state.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/department"
	"github.com/JakeFAU/boamp-console/internal/geo"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/keyword"
	"github.com/JakeFAU/boamp-console/internal/metrics"
	"github.com/JakeFAU/boamp-console/internal/notify"
	"github.com/JakeFAU/boamp-console/internal/progress"
	"github.com/JakeFAU/boamp-console/internal/results"
	"github.com/JakeFAU/boamp-console/internal/selection"
)

// User-facing messages.
const (
	MsgCleared          = "Tous les départements ont été désélectionnés!"
	MsgPredefinedAdded  = "Départements d'Île-de-France ajoutés!"
	MsgNoDepartments    = "Veuillez sélectionner au moins un département!"
	MsgNoKeywords       = "Veuillez sélectionner au moins un mot-clé!"
	MsgCompleted        = "Traitement terminé avec succès!"
	MsgUnknownError     = "Erreur inconnue"
	MsgPollTimeout      = "le suivi du traitement a dépassé la durée maximale"
	msgErrorPrefix      = "Erreur: "
	msgStartingTemplate = "Démarrage du traitement pour %d départements..."
)

// ErrUnknownDepartment is returned for codes absent from the catalog.
var ErrUnknownDepartment = errors.New("unknown department")

// Clock supplies the time and the default target date.
type Clock interface {
	Now() time.Time
	Today() string
}

// Poller starts progress subscriptions.
type Poller interface {
	Start(ctx context.Context, processID string, obs jobs.Observer) *jobs.Subscription
}

// Config wires a Controller.
type Config struct {
	// Predefined is the shortcut set; defaults to Île-de-France.
	Predefined []string
	// AutoSelect adds the predefined set once the geometry load settles.
	AutoSelect bool
	// Keywords are the checkbox options; defaults to the built-in list.
	Keywords        []string
	Map             geo.View
	GeometryURL     string
	ReadyDelay      time.Duration
	FallbackDelay   time.Duration
	NotificationTTL time.Duration

	Loader geo.Loader
	Sender jobs.Sender
	Poller Poller
	Events progress.Emitter
	Clock  Clock
	IDs    notify.IDGenerator
	Logger *zap.Logger
}

type jobState struct {
	view    JobView
	sub     *jobs.Subscription
	started time.Time
	gen     uint64
}

// Controller is the console's single state owner.
type Controller struct {
	cfg       Config
	logger    *zap.Logger
	store     *selection.Store
	panel     *selection.Panel
	adapter   *geo.Adapter
	submitter *jobs.Submitter
	poller    Poller
	notes     *notify.Center
	events    progress.Emitter
	clock     Clock

	baseCtx context.Context

	mu      sync.Mutex
	job     jobState
	results *results.View

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int
}

// New builds a Controller. Call Start to load the map.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Predefined) == 0 {
		cfg.Predefined = department.IleDeFrance
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = keyword.Predefined()
	}
	events := cfg.Events
	if events == nil {
		events = progress.NopEmitter{}
	}
	c := &Controller{
		cfg:       cfg,
		logger:    logger.Named("controller"),
		store:     selection.NewStore(),
		submitter: jobs.NewSubmitter(cfg.Sender, logger),
		poller:    cfg.Poller,
		events:    events,
		clock:     cfg.Clock,
		baseCtx:   context.Background(),
		subs:      make(map[int]func(Change)),
	}
	c.panel = selection.NewPanel(c.store)
	c.panel.OnChange(func(v selection.View) {
		metrics.SetSelectionSize(v.Count)
		c.publish(ChangeSelection, v)
	})
	c.adapter = geo.NewAdapter(geo.Config{
		View:          cfg.Map,
		GeometryURL:   cfg.GeometryURL,
		ReadyDelay:    cfg.ReadyDelay,
		FallbackDelay: cfg.FallbackDelay,
		Logger:        logger,
		OnChange:      func() { c.publish(ChangeMap, c.mapView()) },
	}, cfg.Loader, c.store)
	c.notes = notify.NewCenter(notify.Config{
		TTL:      cfg.NotificationTTL,
		Clock:    cfg.Clock,
		IDs:      cfg.IDs,
		OnChange: func(n *notify.Notification) { c.publish(ChangeNotification, n) },
	})
	return c
}

// Start loads the department boundaries in the background. ctx bounds the
// load and every poll subscription started later.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	go func() {
		var onReady func()
		if c.cfg.AutoSelect {
			onReady = func() { c.SelectPredefined() }
		}
		if err := c.adapter.Init(ctx, onReady); err != nil {
			metrics.ObserveGeometryLoad(metrics.OutcomeFailure)
			return
		}
		metrics.ObserveGeometryLoad(metrics.OutcomeSuccess)
	}()
}

// Close stops polling and pending notification timers.
func (c *Controller) Close() {
	c.mu.Lock()
	sub := c.job.sub
	c.job.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
	c.notes.Close()
}

// Subscribe registers fn for every state change and returns its cancel
// function. fn must not block.
func (c *Controller) Subscribe(fn func(Change)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) publish(kind string, payload any) {
	c.subMu.RLock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()
	ch := Change{Type: kind, Payload: payload}
	for _, fn := range fns {
		fn(ch)
	}
}

// Add selects a catalog department. It reports whether the selection changed.
func (c *Controller) Add(code string) (bool, error) {
	d, ok := department.Lookup(code)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDepartment, code)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Add(d.Code, d.Name), nil
}

// Remove deselects code. Removing an absent code is a no-op.
func (c *Controller) Remove(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel.Remove(code)
}

// Clear deselects everything and confirms it.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.store.Clear()
	c.mu.Unlock()
	c.notes.Info(MsgCleared)
}

// SelectPredefined adds the predefined departments and returns how many
// were newly selected.
func (c *Controller) SelectPredefined() int {
	added := 0
	c.mu.Lock()
	for _, d := range department.Resolve(c.cfg.Predefined) {
		if c.store.Add(d.Code, d.Name) {
			added++
		}
	}
	c.mu.Unlock()
	c.notes.Success(MsgPredefinedAdded)
	return added
}

// ClickFeature selects the clicked map feature.
func (c *Controller) ClickFeature(code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed, err := c.adapter.Click(code)
	if err != nil {
		return false, fmt.Errorf("click feature: %w", err)
	}
	return changed, nil
}

// HoverFeature highlights a map feature.
func (c *Controller) HoverFeature(code string) (geo.FeatureState, error) {
	fs, err := c.adapter.Hover(code)
	if err != nil {
		return geo.FeatureState{}, fmt.Errorf("hover feature: %w", err)
	}
	return fs, nil
}

// LeaveFeature removes the hover highlight.
func (c *Controller) LeaveFeature(code string) (geo.FeatureState, error) {
	fs, err := c.adapter.Leave(code)
	if err != nil {
		return geo.FeatureState{}, fmt.Errorf("leave feature: %w", err)
	}
	return fs, nil
}

// Selection returns the panel view.
func (c *Controller) Selection() selection.View {
	return c.panel.View()
}

// Map returns the map load state and feature styles.
func (c *Controller) Map() MapView {
	return c.mapView()
}

func (c *Controller) mapView() MapView {
	return MapView{Snapshot: c.adapter.Snapshot(), Features: c.adapter.Features()}
}

// Features returns the styled boundaries for the map widget.
func (c *Controller) Features() (*geojson.FeatureCollection, error) {
	fc, err := c.adapter.Collection()
	if err != nil {
		return nil, fmt.Errorf("map features: %w", err)
	}
	return fc, nil
}

// Keywords returns the checkbox options.
func (c *Controller) Keywords() []string {
	return append([]string(nil), c.cfg.Keywords...)
}

// Job returns the current job view.
func (c *Controller) Job() JobView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.view
}

// Results returns the latest completed results, if any.
func (c *Controller) Results() (results.View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		return results.View{}, false
	}
	return *c.results, true
}

// Notification returns the visible notification, if any.
func (c *Controller) Notification() (notify.Notification, bool) {
	return c.notes.Current()
}

// Dismiss hides the notification with id.
func (c *Controller) Dismiss(id string) bool {
	return c.notes.Dismiss(id)
}

// Snapshot returns everything the page shows.
func (c *Controller) Snapshot() State {
	st := State{
		Selection:  c.panel.View(),
		Map:        c.mapView(),
		Keywords:   c.Keywords(),
		TargetDate: c.today(),
	}
	c.mu.Lock()
	st.Job = c.job.view
	if c.results != nil {
		r := *c.results
		st.Results = &r
	}
	c.mu.Unlock()
	if n, ok := c.notes.Current(); ok {
		st.Notification = &n
	}
	return st
}

func (c *Controller) today() string {
	if c.clock == nil {
		return time.Now().UTC().Format("2006-01-02")
	}
	return c.clock.Today()
}

func (c *Controller) now() time.Time {
	if c.clock == nil {
		return time.Now()
	}
	return c.clock.Now()
}
