package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Exporter copies valuation data to cold storage.
type Exporter interface {
	// ExportSnapshot uploads one snapshot as a JSON object and returns the
	// object key it was stored under.
	ExportSnapshot(ctx context.Context, snap *Snapshot) (string, error)

	// ArchiveNetValueHistory uploads the net worth series recorded strictly
	// before the cutoff and returns the number of archived points.
	ArchiveNetValueHistory(ctx context.Context, before time.Time) (int64, error)

	// ListExports returns metadata for every stored export object.
	ListExports(ctx context.Context) ([]BlobInfo, error)
}
