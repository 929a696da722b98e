package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/neomorfeo/boxsync/internal/adapter/sqlite"
	"github.com/neomorfeo/boxsync/internal/domain"
)

func appendEntry(t *testing.T, logs *sqlite.LogStore, runID string, ts time.Time, msg string) {
	t.Helper()
	err := logs.Append(context.Background(), domain.LogEntry{
		RunID:     runID,
		Timestamp: ts,
		Level:     domain.LevelInfo,
		Action:    domain.ActionCreated,
		Message:   msg,
		Details:   domain.LogDetails{DocumentID: 7},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestLogs_EntriesNewestFirstWithPaging(t *testing.T) {
	logs := newTestStore(t).Logs()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		appendEntry(t, logs, "run-a", base.Add(time.Duration(i)*time.Minute), string(rune('a'+i)))
	}

	page, err := logs.Entries(ctx, domain.LogQuery{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if page.Total != 5 || page.Pages != 3 {
		t.Errorf("total/pages = %d/%d, want 5/3", page.Total, page.Pages)
	}
	if len(page.Entries) != 2 || page.Entries[0].Message != "e" || page.Entries[1].Message != "d" {
		t.Fatalf("first page = %+v", page.Entries)
	}
	if page.Entries[0].Details.DocumentID != 7 {
		t.Errorf("details not decoded: %+v", page.Entries[0].Details)
	}

	last, err := logs.Entries(ctx, domain.LogQuery{Page: 3, PerPage: 2})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(last.Entries) != 1 || last.Entries[0].Message != "a" {
		t.Errorf("last page = %+v", last.Entries)
	}
}

func TestLogs_FilterByRunAndRuns(t *testing.T) {
	logs := newTestStore(t).Logs()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	appendEntry(t, logs, "run-a", base, "a1")
	appendEntry(t, logs, "run-a", base.Add(time.Minute), "a2")
	appendEntry(t, logs, "run-b", base.Add(time.Hour), "b1")

	page, err := logs.Entries(ctx, domain.LogQuery{RunID: "run-a"})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("run-a total = %d, want 2", page.Total)
	}

	runs, err := logs.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-b" || runs[1].RunID != "run-a" {
		t.Errorf("runs order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
	if runs[1].EntryCount != 2 || !runs[1].StartedAt.Equal(base) || !runs[1].EndedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("run-a summary = %+v", runs[1])
	}
}

func TestLogs_PurgeAndClear(t *testing.T) {
	logs := newTestStore(t).Logs()
	ctx := context.Background()
	now := time.Now().UTC()

	appendEntry(t, logs, "old", now.AddDate(0, 0, -40), "old")
	appendEntry(t, logs, "new", now, "new")

	n, err := logs.PurgeBefore(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PurgeBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	if err := logs.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	page, err := logs.Entries(ctx, domain.LogQuery{})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if page.Total != 0 || len(page.Entries) != 0 {
		t.Errorf("after clear total = %d", page.Total)
	}
}
