// Package history persists finished downloads and score snapshots in a
// local SQLite database, so sync runs can tell what is new and score-change
// notifications can compare against the previous state.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"lectern/internal/config"
	"lectern/internal/download"
	"lectern/internal/portal"
)

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database under the log
// directory and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS downloads (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            name TEXT NOT NULL,
            path TEXT NOT NULL,
            size INTEGER NOT NULL DEFAULT 0,
            completed_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_path ON downloads(path)`,
		`CREATE TABLE IF NOT EXISTS score_snapshots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            recorded_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS scores (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            snapshot_id INTEGER NOT NULL REFERENCES score_snapshots(id) ON DELETE CASCADE,
            class_code TEXT NOT NULL,
            course_name TEXT NOT NULL,
            grade TEXT NOT NULL,
            credit TEXT NOT NULL,
            grade_point TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_scores_snapshot ON scores(snapshot_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// RecordDownload stores one finished download. It satisfies the engine's
// Recorder interface.
func (s *Store) RecordDownload(rec download.Record) error {
	_, err := s.db.Exec(
		`INSERT INTO downloads (task_id, kind, name, path, size, completed_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TaskID,
		rec.Kind,
		rec.Name,
		rec.Path,
		rec.Size,
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// DownloadEntry is one row of the downloads ledger.
type DownloadEntry struct {
	ID          int64
	TaskID      string
	Kind        string
	Name        string
	Path        string
	Size        int64
	CompletedAt time.Time
}

// RecentDownloads returns the newest entries, most recent first.
func (s *Store) RecentDownloads(ctx context.Context, limit int) ([]DownloadEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, kind, name, path, size, completed_at
         FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var entries []DownloadEntry
	for rows.Next() {
		var entry DownloadEntry
		var completed string
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Kind, &entry.Name,
			&entry.Path, &entry.Size, &completed); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		entry.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveScores stores a new score snapshot.
func (s *Store) SaveScores(ctx context.Context, scores []portal.Score, recordedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO score_snapshots (recorded_at) VALUES (?)`,
		recordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	for _, score := range scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scores (snapshot_id, class_code, course_name, grade, credit, grade_point)
             VALUES (?, ?, ?, ?, ?, ?)`,
			snapshotID, score.ClassCode, score.CourseName, score.Grade, score.Credit, score.GradePoint,
		); err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}
	return tx.Commit()
}

// LatestScores returns the most recent snapshot, or nil when none exists.
func (s *Store) LatestScores(ctx context.Context) ([]portal.Score, time.Time, error) {
	var snapshotID int64
	var recorded string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, recorded_at FROM score_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&snapshotID, &recorded)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query snapshot: %w", err)
	}
	recordedAt, _ := time.Parse(time.RFC3339Nano, recorded)

	rows, err := s.db.QueryContext(ctx,
		`SELECT class_code, course_name, grade, credit, grade_point
         FROM scores WHERE snapshot_id = ? ORDER BY id`, snapshotID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var scores []portal.Score
	for rows.Next() {
		var score portal.Score
		if err := rows.Scan(&score.ClassCode, &score.CourseName, &score.Grade,
			&score.Credit, &score.GradePoint); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, recordedAt, rows.Err()
}

// DiffScores returns the entries of current that are new or changed relative
// to previous, keyed by class code.
func DiffScores(previous, current []portal.Score) []portal.Score {
	known := make(map[string]portal.Score, len(previous))
	for _, score := range previous {
		known[score.ClassCode] = score
	}
	var changed []portal.Score
	for _, score := range current {
		old, ok := known[score.ClassCode]
		if !ok || old.Grade != score.Grade || old.GradePoint != score.GradePoint {
			changed = append(changed, score)
		}
	}
	return changed
}
