package usage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteRecorder_RecordListPurge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	r, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("new sqlite recorder: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
	})

	now := time.Now().UTC()
	records := []Record{
		{
			ID:         "inv-1",
			CallerID:   "u1",
			Mode:       "CHAT",
			Provider:   "openai",
			StartedAt:  now.Add(-2 * time.Hour),
			DurationMs: 820,
			Success:    true,
			TokensUsed: 310,
			Metadata:   map[string]string{"source": "web"},
		},
		{
			ID:         "inv-2",
			CallerID:   "u1",
			Mode:       "EMAIL_OUTREACH",
			Provider:   "openai",
			StartedAt:  now.Add(-1 * time.Hour),
			DurationMs: 1240,
			Success:    true,
			TokensUsed: 95,
		},
		{
			ID:           "inv-3",
			CallerID:     "u2",
			Mode:         "CHAT",
			Provider:     "openai",
			StartedAt:    now,
			DurationMs:   45012,
			Success:      false,
			ErrorKind:    "TIMEOUT",
			ErrorMessage: "provider did not respond within 45s",
		},
	}
	for _, rec := range records {
		if err := r.Record(context.Background(), rec); err != nil {
			t.Fatalf("record %s: %v", rec.ID, err)
		}
	}

	all, err := r.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all.Total != 3 || len(all.Data) != 3 {
		t.Fatalf("expected 3 records, total=%d len=%d", all.Total, len(all.Data))
	}
	if all.Data[0].ID != "inv-3" {
		t.Fatalf("expected newest first, got %s", all.Data[0].ID)
	}
	if all.Data[0].ErrorKind != "TIMEOUT" || all.Data[0].Success {
		t.Fatalf("failure record round-trip mismatch: %+v", all.Data[0])
	}

	byCaller, err := r.List(context.Background(), Query{CallerID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("list by caller: %v", err)
	}
	if byCaller.Total != 2 {
		t.Fatalf("expected 2 records for u1, got %d", byCaller.Total)
	}

	byKind, err := r.List(context.Background(), Query{ErrorKind: "TIMEOUT", Limit: 10})
	if err != nil {
		t.Fatalf("list by kind: %v", err)
	}
	if byKind.Total != 1 || byKind.Data[0].ID != "inv-3" {
		t.Fatalf("expected inv-3 only, got %+v", byKind)
	}

	meta := all.Data[2].Metadata
	if meta["source"] != "web" {
		t.Fatalf("metadata round-trip mismatch: %v", meta)
	}

	deleted, err := r.Purge(context.Background(), now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected purge=2, got %d", deleted)
	}

	remaining, err := r.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if remaining.Total != 1 || remaining.Data[0].ID != "inv-3" {
		t.Fatalf("expected inv-3 to remain, got %+v", remaining)
	}
}

func TestPostgresRecorderContract(t *testing.T) {
	dsn := os.Getenv("AICORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set AICORE_TEST_POSTGRES_DSN to run Postgres usage integration tests")
	}

	r, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("new postgres recorder: %v", err)
	}
	t.Cleanup(func() {
		_, _ = r.db.Exec("DELETE FROM ai_invocations")
		_ = r.Close()
	})
	_, _ = r.db.Exec("DELETE FROM ai_invocations")

	rec := Record{
		ID:         "pg-inv",
		CallerID:   "u1",
		Mode:       "CHAT",
		Provider:   "openai",
		StartedAt:  time.Now().UTC(),
		DurationMs: 300,
		Success:    true,
		TokensUsed: 42,
	}
	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	res, err := r.List(context.Background(), Query{CallerID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 || res.Data[0].ID != "pg-inv" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
