package s3blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type fakeBlobWriter struct {
	puts map[string]string // path -> body
	ct   string
	err  error
}

func (f *fakeBlobWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[path] = string(body)
	f.ct = contentType
	return nil
}

type fakeOppSource struct {
	rows    []domain.ArbOpportunity
	deletes int
	listErr error
	delErr  error
}

func (f *fakeOppSource) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ArbOpportunity, error) {
	return f.rows, f.listErr
}

func (f *fakeOppSource) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	if f.delErr != nil {
		return 0, f.delErr
	}
	f.deletes++
	return int64(len(f.rows)), nil
}

type fakeExecSource struct {
	rows []domain.ExecutionRecord
}

func (f *fakeExecSource) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ExecutionRecord, error) {
	return f.rows, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

var cutoff = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestArchiveOpportunities(t *testing.T) {
	writer := &fakeBlobWriter{}
	opps := &fakeOppSource{rows: []domain.ArbOpportunity{
		{ID: "opp-1", ProfitPercent: 5},
		{ID: "opp-2", ProfitPercent: 2},
	}}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, opps, &fakeExecSource{}, audit)

	n, err := arch.ArchiveOpportunities(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	body, ok := writer.puts["archive/opportunities/2026-08.jsonl"]
	require.True(t, ok, "partitioned by the cutoff's year-month")
	assert.Equal(t, "application/x-ndjson", writer.ct)
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	assert.Len(t, lines, 2, "one JSON object per line")
	assert.Contains(t, lines[0], `"opp-1"`)

	assert.Equal(t, 1, opps.deletes, "rows removed only after the upload")
	assert.Equal(t, []string{"archive.opportunities"}, audit.events)
}

func TestArchiveOpportunitiesEmpty(t *testing.T) {
	writer := &fakeBlobWriter{}
	arch := NewArchiver(writer, &fakeOppSource{}, &fakeExecSource{}, nil)

	n, err := arch.ArchiveOpportunities(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.puts, "nothing uploaded for an empty window")
}

func TestArchiveOpportunitiesUploadFailureSkipsDelete(t *testing.T) {
	writer := &fakeBlobWriter{err: errors.New("s3 down")}
	opps := &fakeOppSource{rows: []domain.ArbOpportunity{{ID: "opp-1"}}}
	arch := NewArchiver(writer, opps, &fakeExecSource{}, nil)

	_, err := arch.ArchiveOpportunities(context.Background(), cutoff)
	require.Error(t, err)
	assert.Zero(t, opps.deletes, "a failed upload must not drop rows")
}

func TestArchiveExecutionsKeepsRows(t *testing.T) {
	writer := &fakeBlobWriter{}
	audit := &fakeAudit{}
	execs := &fakeExecSource{rows: []domain.ExecutionRecord{
		{ID: "exec-1", Outcome: domain.OutcomeBothFilled},
	}}
	arch := NewArchiver(writer, &fakeOppSource{}, execs, audit)

	n, err := arch.ArchiveExecutions(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, writer.puts, "archive/executions/2026-08.jsonl")
	assert.Equal(t, []string{"archive.executions"}, audit.events)
}

func TestArchivePath(t *testing.T) {
	assert.Equal(t, "archive/opportunities/2026-08.jsonl", archivePath("opportunities", cutoff))
	assert.Equal(t, "archive/executions/2025-12.jsonl",
		archivePath("executions", time.Date(2025, 12, 15, 10, 0, 0, 0, time.UTC)))
}
