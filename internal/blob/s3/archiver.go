package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

const contentTypeJSONL = "application/x-ndjson"

// maxSuffix bounds the search for a free archive key.
const maxSuffix = 1000

// ClosedArchiveStore is the part of domain.OpportunityStore the archiver uses.
type ClosedArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ClosedOpportunity, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// CandidateArchiveStore is the part of domain.CandidateStore the archiver
// uses.
type CandidateArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageCandidate, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiverOptions tune an Archiver.
type ArchiverOptions struct {
	// Prune deletes archived rows from the primary store after a
	// successful upload.
	Prune bool
	// MultipartThreshold is the payload size above which the multipart
	// uploader is used. Zero means MinPartSize.
	MultipartThreshold int64
}

// Archiver implements domain.Archiver. It serialises old rows to JSONL and
// uploads them to archive/<kind>/<YYYY-MM>.jsonl, adding a numeric suffix
// when that key is taken.
type Archiver struct {
	writer     domain.BlobWriter
	reader     domain.BlobReader
	closed     ClosedArchiveStore
	candidates CandidateArchiveStore
	audit      domain.AuditStore
	opts       ArchiverOptions
	logger     *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	closed ClosedArchiveStore,
	candidates CandidateArchiveStore,
	audit domain.AuditStore,
	opts ArchiverOptions,
	logger *slog.Logger,
) *Archiver {
	if opts.MultipartThreshold <= 0 {
		opts.MultipartThreshold = MinPartSize
	}
	return &Archiver{
		writer:     writer,
		reader:     reader,
		closed:     closed,
		candidates: candidates,
		audit:      audit,
		opts:       opts,
		logger:     logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveClosedOpportunities archives closed records older than before and
// returns how many were written.
func (a *Archiver) ArchiveClosedOpportunities(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.closed.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive closed opportunities: query: %w", err)
	}
	return archive(ctx, a, "closed_opportunities", before, recs, a.closed.DeleteClosedBefore)
}

// ArchiveCandidates archives candidates evaluated before the cutoff and
// returns how many were written.
func (a *Archiver) ArchiveCandidates(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.candidates.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive candidates: query: %w", err)
	}
	return archive(ctx, a, "candidates", before, recs, a.candidates.DeleteBefore)
}

func archive[T any](
	ctx context.Context,
	a *Archiver,
	kind string,
	before time.Time,
	recs []T,
	prune func(context.Context, time.Time) (int64, error),
) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: marshal: %w", kind, err)
	}

	path, err := a.freePath(ctx, kind, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}

	if int64(len(buf)) > a.opts.MultipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), MinPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: upload: %w", kind, err)
	}

	count := int64(len(recs))
	detail := map[string]any{
		"path":   path,
		"count":  count,
		"bytes":  len(buf),
		"before": before.UTC().Format(time.RFC3339),
	}

	if a.opts.Prune {
		deleted, err := prune(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive %s: prune: %w", kind, err)
		}
		detail["pruned"] = deleted
	}

	a.logger.Info("archiver: uploaded",
		slog.String("kind", kind),
		slog.String("path", path),
		slog.Int64("count", count),
	)

	if err := a.audit.Log(ctx, "archive."+kind, detail); err != nil {
		return count, fmt.Errorf("s3blob: archive %s: audit log: %w", kind, err)
	}
	return count, nil
}

// freePath returns the first archive key for kind and month that is not
// already stored.
func (a *Archiver) freePath(ctx context.Context, kind string, before time.Time) (string, error) {
	for n := 0; n < maxSuffix; n++ {
		path := archivePath(kind, before, n)
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if !exists {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free key for %s after %d attempts", archivePath(kind, before, 0), maxSuffix)
}

// archivePath builds the object key, partitioned by the cutoff's month:
//
//	archive/candidates/2026-03.jsonl
//	archive/candidates/2026-03-1.jsonl
func archivePath(kind string, before time.Time, n int) string {
	month := before.UTC().Format("2006-01")
	if n == 0 {
		return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
	}
	return fmt.Sprintf("archive/%s/%s-%d.jsonl", kind, month, n)
}

// marshalJSONL encodes one compact JSON value per line.
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

var _ domain.Archiver = (*Archiver)(nil)
