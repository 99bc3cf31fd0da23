package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "boamp/abc/summary.csv", "text/csv", bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.Equal(t, "memory://boamp/abc/summary.csv", uri)

	obj, ok := store.Get("boamp/abc/summary.csv")
	require.True(t, ok)
	assert.Equal(t, "text/csv", obj.ContentType)
	obj.Data[0] = 'C'

	again, _ := store.Get("boamp/abc/summary.csv")
	assert.Equal(t, "content", string(again.Data))
	assert.Equal(t, []string{"boamp/abc/summary.csv"}, store.Paths())

	_, err = store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
	_, ok = store.Get("missing")
	assert.False(t, ok)
}
