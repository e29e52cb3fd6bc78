package history_test

import (
	"context"
	"testing"
	"time"

	"lectern/internal/config"
	"lectern/internal/download"
	"lectern/internal/history"
	"lectern/internal/portal"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.SaveDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	store, err := history.Open(&cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListDownloads(t *testing.T) {
	store := openStore(t)

	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		err := store.RecordDownload(download.Record{
			TaskID:      "task",
			Kind:        "upload",
			Name:        name,
			Path:        "/tmp/" + name,
			Size:        int64(i + 1),
			CompletedAt: time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("RecordDownload: %v", err)
		}
	}

	entries, err := store.RecentDownloads(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentDownloads: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Name != "c.pdf" || entries[1].Name != "b.pdf" {
		t.Fatalf("wrong order: %+v", entries)
	}
	if entries[0].CompletedAt.Minute() != 2 {
		t.Fatalf("timestamp lost: %v", entries[0].CompletedAt)
	}
}

func TestScoreSnapshots(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	scores, _, err := store.LatestScores(ctx)
	if err != nil {
		t.Fatalf("LatestScores on empty store: %v", err)
	}
	if scores != nil {
		t.Fatalf("expected no snapshot, got %+v", scores)
	}

	first := []portal.Score{
		{ClassCode: "CS101", CourseName: "Operating Systems", Grade: "92", Credit: "4", GradePoint: "4.2"},
	}
	if err := store.SaveScores(ctx, first, time.Unix(100, 0)); err != nil {
		t.Fatalf("SaveScores: %v", err)
	}

	second := []portal.Score{
		first[0],
		{ClassCode: "MA201", CourseName: "Analysis", Grade: "88", Credit: "5", GradePoint: "3.9"},
	}
	if err := store.SaveScores(ctx, second, time.Unix(200, 0)); err != nil {
		t.Fatalf("SaveScores: %v", err)
	}

	latest, recordedAt, err := store.LatestScores(ctx)
	if err != nil {
		t.Fatalf("LatestScores: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("latest snapshot has %d scores, want 2", len(latest))
	}
	if !recordedAt.Equal(time.Unix(200, 0)) {
		t.Fatalf("recordedAt = %v", recordedAt)
	}

	diff := history.DiffScores(first, second)
	if len(diff) != 1 || diff[0].ClassCode != "MA201" {
		t.Fatalf("diff = %+v", diff)
	}
}

func TestDiffScoresDetectsGradeChange(t *testing.T) {
	previous := []portal.Score{{ClassCode: "CS101", Grade: "60", GradePoint: "1.5"}}
	current := []portal.Score{{ClassCode: "CS101", Grade: "85", GradePoint: "3.7"}}
	diff := history.DiffScores(previous, current)
	if len(diff) != 1 || diff[0].Grade != "85" {
		t.Fatalf("diff = %+v", diff)
	}
	if got := history.DiffScores(current, current); got != nil {
		t.Fatalf("identical snapshots must not diff, got %+v", got)
	}
}
