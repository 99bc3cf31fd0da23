package notify

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/id/uuid"
)

type recorder struct {
	mu     sync.Mutex
	events []*Notification
}

func (r *recorder) record(n *Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recorder) snapshot() []*Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Notification(nil), r.events...)
}

func TestCenterLatestWins(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := NewCenter(Config{TTL: time.Minute, IDs: uuid.New(), OnChange: rec.record})
	defer c.Close()

	first := c.Info("Veuillez sélectionner au moins un département!")
	second := c.Success("Départements d'Île-de-France ajoutés!")
	assert.NotEqual(t, first.ID, second.ID)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, LevelSuccess, cur.Level)
	assert.Equal(t, "Départements d'Île-de-France ajoutés!", cur.Message)
	assert.Equal(t, cur.CreatedAt.Add(time.Minute), cur.ExpiresAt)

	assert.False(t, c.Dismiss(first.ID))
	assert.True(t, c.Dismiss(second.ID))
	_, ok = c.Current()
	assert.False(t, ok)

	events := rec.snapshot()
	require.Len(t, events, 3)
	assert.Nil(t, events[2])
}

func TestCenterExpires(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := NewCenter(Config{TTL: 10 * time.Millisecond, OnChange: rec.record})
	defer c.Close()

	n := c.Error("Erreur: boom")
	assert.Equal(t, "n1", n.ID)
	require.Eventually(t, func() bool {
		_, ok := c.Current()
		return !ok
	}, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool {
		events := rec.snapshot()
		return len(events) == 2 && events[1] == nil
	}, time.Second, 2*time.Millisecond)
}

func TestCenterReplacedNotificationDoesNotExpireSuccessor(t *testing.T) {
	t.Parallel()

	c := NewCenter(Config{TTL: 30 * time.Millisecond})
	defer c.Close()

	c.Info("first")
	time.Sleep(20 * time.Millisecond)
	c.Info("second")
	time.Sleep(15 * time.Millisecond)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "second", cur.Message)
}

func TestCenterEmitsInReplacementOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := NewCenter(Config{TTL: time.Minute, OnChange: rec.record})
	defer c.Close()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Info("notification " + strconv.Itoa(i))
		}()
	}
	wg.Wait()

	events := rec.snapshot()
	require.Len(t, events, 50)
	prev := 0
	for _, n := range events {
		require.NotNil(t, n)
		seq, err := strconv.Atoi(strings.TrimPrefix(n.ID, "n"))
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		prev = seq
	}
	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, events[len(events)-1].ID, cur.ID)
}
