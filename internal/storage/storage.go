// Package storage saves a finished job's exports to a blob destination.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/jobs"
)

// BlobStore writes one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Downloader streams a job export from the backend.
type Downloader interface {
	Download(ctx context.Context, processID string, kind jobs.ExportKind) (jobs.Export, error)
}

// Saved describes one stored export.
type Saved struct {
	Kind     jobs.ExportKind `json:"kind"`
	Filename string          `json:"filename"`
	URI      string          `json:"uri"`
}

// Exporter copies both exports of a job into a BlobStore under
// prefix/processID/filename.
type Exporter struct {
	store  BlobStore
	prefix string
	logger *zap.Logger
}

// NewExporter wires an Exporter.
func NewExporter(store BlobStore, prefix string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, prefix: strings.Trim(prefix, "/"), logger: logger.Named("exporter")}
}

// Save downloads and stores the full and summary exports. Both are attempted
// even when the first fails.
func (e *Exporter) Save(ctx context.Context, d Downloader, processID string) ([]Saved, error) {
	if e == nil || e.store == nil {
		return nil, errors.New("no export destination configured")
	}
	var (
		saved []Saved
		errs  []error
	)
	for _, kind := range []jobs.ExportKind{jobs.ExportFull, jobs.ExportSummary} {
		s, err := e.saveOne(ctx, d, processID, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("save %s export: %w", kind, err))
			continue
		}
		saved = append(saved, s)
	}
	return saved, errors.Join(errs...)
}

func (e *Exporter) saveOne(ctx context.Context, d Downloader, processID string, kind jobs.ExportKind) (Saved, error) {
	exp, err := d.Download(ctx, processID, kind)
	if err != nil {
		return Saved{}, err
	}
	defer func() { _ = exp.Body.Close() }()

	name := path.Base(strings.ReplaceAll(exp.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return Saved{}, fmt.Errorf("unusable export filename %q", exp.Filename)
	}
	objectPath := path.Join(e.prefix, processID, name)
	uri, err := e.store.PutObject(ctx, objectPath, exp.ContentType, exp.Body)
	if err != nil {
		return Saved{}, err
	}
	e.logger.Info("export saved",
		zap.String("process_id", processID),
		zap.String("kind", string(kind)),
		zap.String("uri", uri),
	)
	return Saved{Kind: kind, Filename: name, URI: uri}, nil
}
