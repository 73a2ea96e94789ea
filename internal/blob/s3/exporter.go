package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// exportPrefix is the key prefix under which all export objects live.
const exportPrefix = "exports/"

// NetValueArchiveStore provides the read access the exporter needs for
// history archival. The Postgres snapshot store satisfies it implicitly.
type NetValueArchiveStore interface {
	NetValueSeries(ctx context.Context, from, to *time.Time) ([]domain.NetValuePoint, error)
}

// ExporterImpl implements domain.Exporter by serializing snapshot data and
// uploading it to an S3-compatible bucket.
//
// Exports never mutate the primary store. Pruning archived rows from Postgres
// is a separate, explicit step to be executed after the upload has been
// verified.
type ExporterImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	store  NetValueArchiveStore
}

// NewExporter creates a new ExporterImpl.
func NewExporter(writer domain.BlobWriter, reader domain.BlobReader, store NetValueArchiveStore) *ExporterImpl {
	return &ExporterImpl{
		writer: writer,
		reader: reader,
		store:  store,
	}
}

// ExportSnapshot marshals the snapshot to its API JSON form and uploads it at
// exports/snapshots/<RFC3339 timestamp>.json. The object key is returned so
// callers can report where the export landed.
func (e *ExporterImpl) ExportSnapshot(ctx context.Context, snap *domain.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("s3blob: export snapshot: nil snapshot")
	}

	buf, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: export snapshot marshal: %w", err)
	}

	path := snapshotPath(snap.Timestamp)
	if err := e.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: export snapshot upload: %w", err)
	}
	return path, nil
}

// ArchiveNetValueHistory queries the net worth series recorded strictly
// before the cutoff, serializes it to JSONL, and uploads the file at
// exports/netvalue/YYYY-MM.jsonl. The count of archived points is returned.
func (e *ExporterImpl) ArchiveNetValueHistory(ctx context.Context, before time.Time) (int64, error) {
	points, err := e.store.NetValueSeries(ctx, nil, &before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive net value query: %w", err)
	}
	if len(points) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(points)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive net value marshal: %w", err)
	}

	path := fmt.Sprintf("%snetvalue/%s.jsonl", exportPrefix, before.Format("2006-01"))
	if err := e.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0); err != nil {
		return 0, fmt.Errorf("s3blob: archive net value upload: %w", err)
	}

	return int64(len(points)), nil
}

// ListExports returns metadata for every object under the export prefix.
func (e *ExporterImpl) ListExports(ctx context.Context) ([]domain.BlobInfo, error) {
	infos, err := e.reader.List(ctx, exportPrefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list exports: %w", err)
	}
	return infos, nil
}

// snapshotPath builds the S3 key for a snapshot export.
//
//	exports/snapshots/2025-01-31T120000Z.json
func snapshotPath(ts time.Time) string {
	return fmt.Sprintf("%ssnapshots/%s.json", exportPrefix, ts.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Exporter = (*ExporterImpl)(nil)
