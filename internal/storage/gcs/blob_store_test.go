package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type upload struct {
	path string
	name string
	body string
}

func newFakeGCS(t *testing.T, bucketStatus int) (*httptest.Server, func() []upload) {
	t.Helper()
	var (
		mu      sync.Mutex
		uploads []upload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/upload/") {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			uploads = append(uploads, upload{path: r.URL.Path, name: r.URL.Query().Get("name"), body: string(body)})
			mu.Unlock()
			fmt.Fprintf(w, `{"name": %q, "bucket": "exports"}`, r.URL.Query().Get("name"))
			return
		}
		if bucketStatus != http.StatusOK {
			w.WriteHeader(bucketStatus)
			fmt.Fprint(w, `{"error": {"code": 404, "message": "bucket not found"}}`)
			return
		}
		fmt.Fprint(w, `{"name": "exports"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []upload {
		mu.Lock()
		defer mu.Unlock()
		return append([]upload(nil), uploads...)
	}
}

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	srv, uploads := newFakeGCS(t, http.StatusOK)
	client, err := storage.NewClient(context.Background(), option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	store, err := New(client, Config{Bucket: "exports"})
	require.NoError(t, err)
	uri, err := store.PutObject(context.Background(), "boamp/abc/summary.csv", "text/csv", bytes.NewReader([]byte("a,b\n")))
	require.NoError(t, err)
	assert.Equal(t, "gs://exports/boamp/abc/summary.csv", uri)

	got := uploads()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].path, "/b/exports/o")
	assert.Equal(t, "boamp/abc/summary.csv", got[0].name)
	assert.Contains(t, got[0].body, "a,b")
	require.NoError(t, store.Close())
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestOpenChecksBucket(t *testing.T) {
	t.Parallel()

	srv, _ := newFakeGCS(t, http.StatusOK)
	store, err := Open(context.Background(), Config{Bucket: "exports"}, option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	missing, _ := newFakeGCS(t, http.StatusNotFound)
	_, err = Open(context.Background(), Config{Bucket: "exports"}, option.WithEndpoint(missing.URL), option.WithoutAuthentication())
	require.Error(t, err)
}
