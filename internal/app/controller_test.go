package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/geo"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/notify"
	"github.com/JakeFAU/boamp-console/internal/progress"
)

const testGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"code": "75", "nom": "Paris"},
     "geometry": {"type": "Polygon", "coordinates": [[[2.2, 48.8], [2.4, 48.8], [2.4, 48.9], [2.2, 48.9], [2.2, 48.8]]]}},
    {"type": "Feature", "properties": {"code": "93", "nom": "Seine-Saint-Denis"},
     "geometry": {"type": "Polygon", "coordinates": [[[2.4, 48.9], [2.6, 48.9], [2.6, 49.0], [2.4, 49.0], [2.4, 48.9]]]}}
  ]
}`

type stubLoader struct {
	body []byte
	err  error
}

func (s stubLoader) Fetch(context.Context, string) ([]byte, error) {
	return s.body, s.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
func (c fixedClock) Today() string  { return c.t.Format("2006-01-02") }

// fakeBackend answers submissions and replays a scripted progress sequence
// per process id.
type fakeBackend struct {
	mu        sync.Mutex
	requests  []jobs.Request
	submitErr error
	ids       []string
	scripts   map[string][]jobs.Progress
	polls     map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{scripts: map[string][]jobs.Progress{}, polls: map[string]int{}}
}

func (b *fakeBackend) Submit(_ context.Context, req jobs.Request) (jobs.Submission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.submitErr != nil {
		return jobs.Submission{}, b.submitErr
	}
	id := b.ids[0]
	b.ids = b.ids[1:]
	return jobs.Submission{ProcessID: id, Status: jobs.StatusStarted}, nil
}

func (b *fakeBackend) Progress(_ context.Context, id string) (jobs.Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	script := b.scripts[id]
	i := b.polls[id]
	b.polls[id]++
	if i >= len(script) {
		return jobs.Progress{Status: jobs.StatusProcessing}, nil
	}
	return script[i], nil
}

func (b *fakeBackend) Requests() []jobs.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]jobs.Request(nil), b.requests...)
}

func (b *fakeBackend) Polls(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls[id]
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

type harness struct {
	c       *Controller
	backend *fakeBackend
	events  *recordingEmitter
}

func newHarness(t *testing.T, loader geo.Loader) *harness {
	t.Helper()
	backend := newFakeBackend()
	events := &recordingEmitter{}
	c := New(Config{
		AutoSelect:      true,
		ReadyDelay:      5 * time.Millisecond,
		FallbackDelay:   time.Millisecond,
		NotificationTTL: time.Minute,
		Loader:          loader,
		Sender:          backend,
		Poller:          jobs.NewPoller(backend, jobs.PollerConfig{Interval: 5 * time.Millisecond, BackoffMax: 20 * time.Millisecond}),
		Events:          events,
		Clock:           fixedClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
	})
	t.Cleanup(c.Close)
	return &harness{c: c, backend: backend, events: events}
}

func currentMessage(t *testing.T, c *Controller) (notify.Level, string) {
	t.Helper()
	n, ok := c.Notification()
	require.True(t, ok, "expected a visible notification")
	return n.Level, n.Message
}

func TestSelectPredefinedOnEmptyStore(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	assert.Equal(t, 8, h.c.SelectPredefined())

	v := h.c.Selection()
	assert.Equal(t, 8, v.Count)
	assert.Equal(t, "75,77,78,91,92,93,94,95", v.HiddenValue)
	assert.Equal(t, "Paris", v.Entries[0].Name)
	assert.Equal(t, "Val-d'Oise", v.Entries[7].Name)

	level, msg := currentMessage(t, h.c)
	assert.Equal(t, notify.LevelSuccess, level)
	assert.Equal(t, MsgPredefinedAdded, msg)

	assert.Zero(t, h.c.SelectPredefined())
}

func TestAddRemoveClear(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	changed, err := h.c.Add("93")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = h.c.Add("93")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = h.c.Add("99")
	require.ErrorIs(t, err, ErrUnknownDepartment)

	assert.False(t, h.c.Remove("75"))
	assert.True(t, h.c.Remove("93"))
	assert.True(t, h.c.Selection().Empty())

	_, _ = h.c.Add("2A")
	h.c.Clear()
	assert.True(t, h.c.Selection().Empty())
	level, msg := currentMessage(t, h.c)
	assert.Equal(t, notify.LevelInfo, level)
	assert.Equal(t, MsgCleared, msg)
}

func TestSubmitWithoutDepartmentsSendsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	_, err := h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	require.ErrorIs(t, err, jobs.ErrNoDepartments)
	assert.Empty(t, h.backend.Requests())

	level, msg := currentMessage(t, h.c)
	assert.Equal(t, notify.LevelInfo, level)
	assert.Equal(t, MsgNoDepartments, msg)
	assert.Equal(t, []progress.Stage{progress.StageRejected}, h.events.Stages())
	assert.False(t, h.c.Job().ModalOpen)
}

func TestSubmitWithoutKeywordsSendsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	_, _ = h.c.Add("75")
	_, err := h.c.Submit(context.Background(), SubmitForm{CustomKeywords: " \n "})
	require.ErrorIs(t, err, jobs.ErrNoKeywords)
	assert.Empty(t, h.backend.Requests())

	_, msg := currentMessage(t, h.c)
	assert.Equal(t, MsgNoKeywords, msg)
}

func TestSubmitPollsUntilCompleted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.backend.ids = []string{"p1"}
	h.backend.scripts["p1"] = []jobs.Progress{
		{Status: jobs.StatusProcessing, CurrentStep: "data_extraction", TotalRecords: 4, ProcessedRecords: 1},
		{Status: jobs.StatusProcessing, CurrentStep: "pdf_processing"},
		{
			Status:      jobs.StatusCompleted,
			CurrentStep: "completed",
			Departments: []string{"75", "93"},
			SummaryTable: []jobs.ResultRow{
				{Keywords: "Serrurerie", Lots: "Lot 1", VisitMandatory: "no"},
				{Keywords: "Clôtures", Buyer: "<script>alert(1)</script>"},
			},
		},
	}

	var mu sync.Mutex
	var kinds []string
	cancel := h.c.Subscribe(func(ch Change) {
		mu.Lock()
		kinds = append(kinds, ch.Type)
		mu.Unlock()
	})
	defer cancel()

	_, _ = h.c.Add("93")
	_, _ = h.c.Add("75")
	sub, err := h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie", " "}, CustomKeywords: "Clôtures"})
	require.NoError(t, err)
	assert.Equal(t, "p1", sub.ProcessID)

	reqs := h.backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "75,93", reqs[0].Departments)
	assert.Equal(t, "2025-06-02", reqs[0].TargetDate)
	assert.Equal(t, []string{"Serrurerie"}, reqs[0].Keywords)

	require.Eventually(t, func() bool {
		_, ok := h.c.Results()
		return ok
	}, time.Second, 2*time.Millisecond)

	view, _ := h.c.Results()
	assert.Equal(t, 2, view.Stats.Total)
	assert.Equal(t, 1, view.Stats.LotsFound)
	assert.Equal(t, 0, view.Stats.VisitMandatory)

	job := h.c.Job()
	assert.False(t, job.ModalOpen)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	// total 0 on the second poll leaves the bar where the first poll put it
	assert.Equal(t, 25, job.Percent)
	assert.Equal(t, "25% (1/4)", job.ProgressText)
	assert.Equal(t, "Traitement terminé! 2 enregistrements trouvés pour 2 départements.", job.StatusText)

	_, msg := currentMessage(t, h.c)
	assert.Equal(t, MsgCompleted, msg)

	require.Eventually(t, func() bool {
		stages := h.events.Stages()
		return len(stages) > 0 && stages[len(stages)-1] == progress.StageCompleted
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, progress.StageSubmitted, h.events.Stages()[0])

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, ChangeSelection)
	assert.Contains(t, kinds, ChangeJob)
	assert.Contains(t, kinds, ChangeResults)
	assert.Contains(t, kinds, ChangeNotification)
}

func TestSubmitBackendErrorSurfacesDetail(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.backend.submitErr = &jobs.BackendError{StatusCode: 422, Detail: "Date invalide"}
	_, _ = h.c.Add("75")

	_, err := h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	var be *jobs.BackendError
	require.ErrorAs(t, err, &be)

	job := h.c.Job()
	assert.False(t, job.ModalOpen)
	assert.Equal(t, "Date invalide", job.StatusText)
	assert.Equal(t, LevelDanger, job.StatusLevel)
	level, msg := currentMessage(t, h.c)
	assert.Equal(t, notify.LevelError, level)
	assert.Equal(t, "Erreur: Date invalide", msg)

	h.backend.submitErr = errors.New("connection refused")
	_, err = h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	require.Error(t, err)
	_, msg = currentMessage(t, h.c)
	assert.Equal(t, "Erreur: "+jobs.DefaultSubmitError, msg)
}

func TestJobErrorStatusNotifies(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.backend.ids = []string{"p1", "p2"}
	h.backend.scripts["p1"] = []jobs.Progress{{Status: jobs.StatusError, Error: "BOAMP indisponible"}}
	h.backend.scripts["p2"] = []jobs.Progress{{Status: jobs.StatusError}}
	_, _ = h.c.Add("75")

	_, err := h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.c.Job().Error != "" }, time.Second, 2*time.Millisecond)
	_, msg := currentMessage(t, h.c)
	assert.Equal(t, "Erreur: BOAMP indisponible", msg)
	_, ok := h.c.Results()
	assert.False(t, ok)

	_, err = h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.c.Job().Error == MsgUnknownError }, time.Second, 2*time.Millisecond)
}

func TestResubmissionStopsPreviousPoller(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.backend.ids = []string{"old", "new"}
	_, _ = h.c.Add("75")

	_, err := h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.backend.Polls("old") >= 2 }, time.Second, time.Millisecond)

	_, err = h.c.Submit(context.Background(), SubmitForm{Keywords: []string{"Serrurerie"}})
	require.NoError(t, err)
	stopped := h.backend.Polls("old")
	require.Eventually(t, func() bool { return h.backend.Polls("new") >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, stopped, h.backend.Polls("old"))
	assert.Equal(t, "new", h.c.Job().ProcessID)
	assert.Contains(t, h.events.Stages(), progress.StageAbandoned)
}

func TestGeometryFailureFallsBackToPredefined(t *testing.T) {
	t.Parallel()

	h := newHarness(t, stubLoader{err: errors.New("offline")})
	h.c.Start(context.Background())

	require.Eventually(t, func() bool { return h.c.Selection().Count == 8 }, time.Second, 2*time.Millisecond)
	m := h.c.Map()
	assert.Equal(t, geo.StateFailed, m.State)
	require.NotNil(t, m.Notice)
	assert.Equal(t, geo.FallbackNotice.Title, m.Notice.Title)

	_, err := h.c.ClickFeature("75")
	require.ErrorIs(t, err, geo.ErrGeometryUnavailable)
	_, err = h.c.Features()
	require.ErrorIs(t, err, geo.ErrGeometryUnavailable)
}

func TestGeometryLoadEnablesClicks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, stubLoader{body: []byte(testGeoJSON)})
	h.c.Start(context.Background())

	require.Eventually(t, func() bool { return h.c.Selection().Count == 8 }, time.Second, 2*time.Millisecond)
	h.c.Clear()

	changed, err := h.c.ClickFeature("93")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "93", h.c.Selection().HiddenValue)

	fs, err := h.c.HoverFeature("75")
	require.NoError(t, err)
	assert.True(t, fs.Highlighted)
	fs, err = h.c.LeaveFeature("75")
	require.NoError(t, err)
	assert.Equal(t, geo.UnselectedStyle, fs.Style)

	_, err = h.c.HoverFeature("2B")
	require.ErrorIs(t, err, geo.ErrUnknownFeature)

	fc, err := h.c.Features()
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, true, fc.Features[1].Properties["selected"])

	st := h.c.Snapshot()
	assert.Equal(t, geo.StateReady, st.Map.State)
	assert.Len(t, st.Map.Features, 2)
	assert.Equal(t, "2025-06-02", st.TargetDate)
	assert.NotEmpty(t, st.Keywords)
}
