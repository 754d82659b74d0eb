package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Narrow read surfaces for archiving; the Postgres stores satisfy these
// through their ListBefore methods.

// OpportunitySource reads opportunities older than a cutoff.
type OpportunitySource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ArbOpportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ExecutionSource reads executions older than a cutoff.
type ExecutionSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ExecutionRecord, error)
}

// Archiver implements domain.Archiver: old rows are serialized to JSONL and
// uploaded under archive/, partitioned by the cutoff's year-month. Archived
// opportunities are then deleted from the primary store; executions are kept
// since they are the system of record for exposure.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunitySource
	execs  ExecutionSource
	audit  domain.AuditStore // optional
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, opps OpportunitySource, execs ExecutionSource, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, opps: opps, execs: execs, audit: audit}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchiveOpportunities uploads opportunities detected before the cutoff and
// deletes them from the store. Returns the archived count.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	// Delete only after a verified upload.
	if _, err := a.opps.DeleteBefore(ctx, before); err != nil {
		return int64(len(opps)), fmt.Errorf("s3blob: archive opportunities delete: %w", err)
	}

	count := int64(len(opps))
	a.logAudit(ctx, "archive.opportunities", path, count, before)
	return count, nil
}

// ArchiveExecutions uploads executions started before the cutoff. Rows stay
// in the store.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.execs.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := archivePath("executions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	count := int64(len(recs))
	a.logAudit(ctx, "archive.executions", path, count, before)
	return count, nil
}

func (a *Archiver) logAudit(ctx context.Context, event, path string, count int64, before time.Time) {
	if a.audit == nil {
		return
	}
	_ = a.audit.Log(ctx, event, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	})
}

// archivePath partitions archive keys by year-month, e.g.
// archive/opportunities/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL encodes records as newline-delimited JSON.
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
