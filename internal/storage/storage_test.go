package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/storage/memory"
)

type fakeDownloader struct {
	files map[jobs.ExportKind]jobs.Export
	err   map[jobs.ExportKind]error
}

func (f fakeDownloader) Download(_ context.Context, _ string, kind jobs.ExportKind) (jobs.Export, error) {
	if err := f.err[kind]; err != nil {
		return jobs.Export{}, err
	}
	exp := f.files[kind]
	exp.Body = io.NopCloser(strings.NewReader(exp.Filename + " body"))
	return exp, nil
}

func TestExporterSavesBothExports(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	exp := NewExporter(store, "/boamp/", nil)
	saved, err := exp.Save(context.Background(), fakeDownloader{files: map[jobs.ExportKind]jobs.Export{
		jobs.ExportFull:    {Filename: "boamp_abc.xlsx", ContentType: "application/vnd.ms-excel"},
		jobs.ExportSummary: {Filename: "../../summary.csv", ContentType: "text/csv"},
	}}, "abc")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "memory://boamp/abc/boamp_abc.xlsx", saved[0].URI)
	assert.Equal(t, "memory://boamp/abc/summary.csv", saved[1].URI)

	obj, ok := store.Get("boamp/abc/summary.csv")
	require.True(t, ok)
	assert.Equal(t, "text/csv", obj.ContentType)
	assert.Equal(t, "../../summary.csv body", string(obj.Data))
}

func TestExporterKeepsGoingAfterFailure(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	saved, err := NewExporter(store, "", nil).Save(context.Background(), fakeDownloader{
		files: map[jobs.ExportKind]jobs.Export{jobs.ExportSummary: {Filename: "s.csv"}},
		err:   map[jobs.ExportKind]error{jobs.ExportFull: &jobs.BackendError{StatusCode: 400, Detail: "Process not completed"}},
	}, "abc")
	require.Error(t, err)
	var be *jobs.BackendError
	assert.True(t, errors.As(err, &be))
	require.Len(t, saved, 1)
	assert.Equal(t, jobs.ExportSummary, saved[0].Kind)
	assert.Equal(t, []string{"abc/s.csv"}, store.Paths())
}

func TestExporterRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := NewExporter(nil, "", nil).Save(context.Background(), fakeDownloader{}, "abc")
	require.Error(t, err)
}
