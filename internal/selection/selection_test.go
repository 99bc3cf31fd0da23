package selection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/department"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) Added(d department.Department) { r.record("add:" + d.Code) }
func (r *recordingObserver) Removed(code string)           { r.record("remove:" + code) }
func (r *recordingObserver) Cleared()                      { r.record("clear") }

func (r *recordingObserver) record(evt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingObserver) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestStoreAddIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	obs := &recordingObserver{}
	store.Subscribe(obs)

	require.True(t, store.Add("75", "Paris"))
	require.False(t, store.Add("75", "Paris"))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{"add:75"}, obs.Events())
}

func TestStoreRemoveThenAddRestoresState(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.Add("75", "Paris")
	store.Add("93", "Seine-Saint-Denis")
	before := store.Sorted()

	require.True(t, store.Remove("93"))
	require.False(t, store.Remove("93"))
	require.True(t, store.Add("93", "Seine-Saint-Denis"))
	assert.Equal(t, before, store.Sorted())
}

func TestStoreRemoveAbsentDoesNotNotify(t *testing.T) {
	t.Parallel()

	store := NewStore()
	obs := &recordingObserver{}
	store.Subscribe(obs)

	assert.False(t, store.Remove("01"))
	assert.Empty(t, obs.Events())
}

func TestPanelTracksStore(t *testing.T) {
	t.Parallel()

	store := NewStore()
	panel := NewPanel(store)

	view := panel.View()
	assert.True(t, view.Empty())
	assert.Equal(t, EmptyHint, view.EmptyHint)
	assert.Equal(t, "", panel.HiddenValue())

	for _, code := range []string{"93", "2A", "01", "2B", "75"} {
		d, ok := department.Lookup(code)
		require.True(t, ok)
		store.Add(d.Code, d.Name)
	}

	view = panel.View()
	require.Equal(t, 5, view.Count)
	codes := make([]string, 0, view.Count)
	for _, e := range view.Entries {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{"01", "75", "93", "2A", "2B"}, codes)
	assert.Equal(t, "01,75,93,2A,2B", panel.HiddenValue())
	assert.Empty(t, view.EmptyHint)

	require.True(t, panel.Remove("2A"))
	assert.Equal(t, "01,75,93,2B", panel.HiddenValue())

	store.Clear()
	assert.Equal(t, 0, store.Len())
	assert.True(t, panel.View().Empty())
	assert.Equal(t, "", panel.HiddenValue())
}

func TestPanelOnChangeReceivesEveryRender(t *testing.T) {
	t.Parallel()

	store := NewStore()
	panel := NewPanel(store)
	var counts []int
	panel.OnChange(func(v View) { counts = append(counts, v.Count) })

	store.Add("75", "Paris")
	store.Add("75", "Paris")
	store.Add("77", "Seine-et-Marne")
	store.Clear()

	assert.Equal(t, []int{1, 2, 0}, counts)
}

func TestStoreConcurrentAdds(t *testing.T) {
	t.Parallel()

	store := NewStore()
	var wg sync.WaitGroup
	for _, d := range department.All() {
		wg.Add(2)
		go func() { defer wg.Done(); store.Add(d.Code, d.Name) }()
		go func() { defer wg.Done(); store.Add(d.Code, d.Name) }()
	}
	wg.Wait()
	assert.Equal(t, department.Len(), store.Len())
}
