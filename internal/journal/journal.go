// Package journal keeps a SQLite record of every scrobble submitted during a
// replay, so that submissions Last.fm rejected can be retried later.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// AcceptanceWindow is how far back Last.fm accepts scrobble timestamps.
const AcceptanceWindow = 14 * 24 * time.Hour

// Journal is a SQLite-backed log of submission attempts
type Journal struct {
	db *sql.DB
}

// Entry is one submission attempt
type Entry struct {
	ID        int64
	Index     int // position of the record in the history file
	Artist    string
	Track     string
	Album     string
	Timestamp time.Time
	Submitted bool
	Rejected  bool // ignored by Last.fm; never retried
	Error     string
	CreatedAt time.Time
}

// Open opens (creating if needed) the journal database at path.
// ":memory:" gives a throwaway in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			history_index INTEGER NOT NULL,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL,
			submitted BOOLEAN DEFAULT 0,
			rejected BOOLEAN DEFAULT 0,
			error TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_submitted ON submissions(submitted, timestamp);
	`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record stores the outcome of one submission attempt. A nil submitErr marks
// the entry submitted; otherwise the error text is kept for a later retry.
// The Submitted and Error fields of entry are overwritten.
func (j *Journal) Record(ctx context.Context, entry Entry, submitErr error) error {
	entry.Submitted = submitErr == nil
	entry.Error = ""
	if submitErr != nil {
		entry.Error = submitErr.Error()
	}

	_, err := j.Add(ctx, entry)
	return err
}

// Add inserts an entry and returns its id
func (j *Journal) Add(ctx context.Context, entry Entry) (int64, error) {
	query := `
		INSERT INTO submissions (history_index, artist, track, album, timestamp, submitted, rejected, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	result, err := j.db.ExecContext(ctx, query,
		entry.Index,
		entry.Artist,
		entry.Track,
		entry.Album,
		entry.Timestamp.Unix(),
		entry.Submitted,
		entry.Rejected,
		errText,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// MarkError records why an entry failed
func (j *Journal) MarkError(ctx context.Context, id int64, errMsg string) error {
	return j.update(ctx, "UPDATE submissions SET error = ? WHERE id = ?", errMsg, id)
}

// MarkRejected records that Last.fm ignored an entry. Rejected entries are
// left out of Failed so they are not sent again.
func (j *Journal) MarkRejected(ctx context.Context, id int64, reason string) error {
	return j.update(ctx, "UPDATE submissions SET rejected = 1, error = ? WHERE id = ?", reason, id)
}

func (j *Journal) update(ctx context.Context, query string, args ...interface{}) error {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("submission with id %d not found", args[len(args)-1])
	}

	return nil
}

// MarkSubmittedBatch marks several entries as accepted in one transaction
func (j *Journal) MarkSubmittedBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE submissions SET submitted = 1, error = NULL WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to mark submission %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Failed returns entries that were rejected and not yet resubmitted, oldest
// timestamp first. A limit of zero returns all of them.
func (j *Journal) Failed(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx, "WHERE submitted = 0 AND rejected = 0 AND error IS NOT NULL ORDER BY timestamp ASC", limit)
}

// All returns every entry, newest timestamp first
func (j *Journal) All(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, "ORDER BY timestamp DESC", 0)
}

func (j *Journal) query(ctx context.Context, clause string, limit int) ([]Entry, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT id, history_index, artist, track, album, timestamp, submitted, rejected, COALESCE(error, ''), created_at
		FROM submissions
	`)
	b.WriteString(clause)
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	rows, err := j.db.QueryContext(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var timestampUnix, createdUnix int64

		if err := rows.Scan(
			&e.ID,
			&e.Index,
			&e.Artist,
			&e.Track,
			&e.Album,
			&timestampUnix,
			&e.Submitted,
			&e.Rejected,
			&e.Error,
			&createdUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		e.Timestamp = time.Unix(timestampUnix, 0)
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return entries, nil
}

// Cleanup removes submitted and rejected entries whose timestamp is older
// than maxAge. Entries still waiting for a retry are kept.
func (j *Journal) Cleanup(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	return j.delete(ctx,
		"DELETE FROM submissions WHERE (submitted = 1 OR rejected = 1) AND timestamp < ?",
		now.Add(-maxAge).Unix())
}

// CleanupOldFailed removes retryable entries Last.fm would no longer accept
func (j *Journal) CleanupOldFailed(ctx context.Context, now time.Time) (int64, error) {
	return j.delete(ctx,
		"DELETE FROM submissions WHERE submitted = 0 AND rejected = 0 AND error IS NOT NULL AND timestamp < ?",
		now.Add(-AcceptanceWindow).Unix())
}

func (j *Journal) delete(ctx context.Context, query string, cutoff int64) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up submissions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of entries. If includeSubmitted is false, only
// entries waiting for a retry are counted.
func (j *Journal) Count(ctx context.Context, includeSubmitted bool) (int, error) {
	query := "SELECT COUNT(*) FROM submissions"
	if !includeSubmitted {
		query += " WHERE submitted = 0 AND rejected = 0"
	}

	var count int
	if err := j.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	return count, nil
}
