package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/calibright/internal/device"
)

// Repository defines the interface for inventory persistence.
type Repository interface {
	UpsertSeen(ctx context.Context, id device.ID, kind device.Kind, at time.Time) error
	MarkGone(ctx context.Context, id device.ID, at time.Time) error
	ResetPresence(ctx context.Context) error
	Get(ctx context.Context, id device.ID) (*Display, error)
	List(ctx context.Context) ([]Display, error)

	RecordReload(ctx context.Context, r *Reload) error
	ListReloads(ctx context.Context, limit int) ([]Reload, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a new SQLite-backed inventory repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertSeen records that a display is present. first_seen is kept from
// the original row.
func (r *SQLiteRepository) UpsertSeen(ctx context.Context, id device.ID, kind device.Kind, at time.Time) error {
	const query = `INSERT INTO displays (id, kind, first_seen, last_seen, present)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET kind = excluded.kind, last_seen = excluded.last_seen, present = 1`
	ts := formatTime(at)
	if _, err := r.db.ExecContext(ctx, query, string(id), string(kind), ts, ts); err != nil {
		return fmt.Errorf("upserting display %s: %w", id, err)
	}
	return nil
}

// MarkGone records that a display disappeared.
func (r *SQLiteRepository) MarkGone(ctx context.Context, id device.ID, at time.Time) error {
	const query = `UPDATE displays SET present = 0, last_seen = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, formatTime(at), string(id))
	if err != nil {
		return fmt.Errorf("marking display %s gone: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite3 always reports rows affected
		return fmt.Errorf("%w: %s", ErrDisplayNotFound, id)
	}
	return nil
}

// ResetPresence marks every display absent. Called at startup, before the
// first discovery pass.
func (r *SQLiteRepository) ResetPresence(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE displays SET present = 0`); err != nil {
		return fmt.Errorf("resetting display presence: %w", err)
	}
	return nil
}

// Get returns one display.
func (r *SQLiteRepository) Get(ctx context.Context, id device.ID) (*Display, error) {
	const query = `SELECT id, kind, first_seen, last_seen, present FROM displays WHERE id = ?`
	d, err := scanDisplay(r.db.QueryRowContext(ctx, query, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDisplayNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns every known display, present ones first, then by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Display, error) {
	const query = `SELECT id, kind, first_seen, last_seen, present FROM displays
		ORDER BY present DESC, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying displays: %w", err)
	}
	defer rows.Close()

	displays := []Display{}
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, err
		}
		displays = append(displays, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating displays: %w", err)
	}
	return displays, nil
}

// RecordReload inserts a reload record. ID and AppliedAt are generated if
// empty.
func (r *SQLiteRepository) RecordReload(ctx context.Context, rec *Reload) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}

	const query = `INSERT INTO config_reloads (id, applied_at, source, accepted, changed, version, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, formatTime(rec.AppliedAt), rec.Source,
		boolInt(rec.Accepted), boolInt(rec.Changed),
		int64(rec.Version), //nolint:gosec // config versions never approach 2^63
		nullableString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting reload record: %w", err)
	}
	return nil
}

// ListReloads returns the most recent reload records first.
func (r *SQLiteRepository) ListReloads(ctx context.Context, limit int) ([]Reload, error) {
	if limit <= 0 {
		limit = DefaultReloadLimit
	}
	limit = min(limit, MaxReloadLimit)

	const query = `SELECT id, applied_at, source, accepted, changed, version, error
		FROM config_reloads ORDER BY applied_at DESC, rowid DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reloads: %w", err)
	}
	defer rows.Close()

	reloads := []Reload{}
	for rows.Next() {
		var rec Reload
		var appliedAt string
		var accepted, changed int
		var version int64
		var errText sql.NullString
		if err := rows.Scan(&rec.ID, &appliedAt, &rec.Source, &accepted, &changed, &version, &errText); err != nil {
			return nil, fmt.Errorf("scanning reload: %w", err)
		}
		if rec.AppliedAt, err = parseTime(appliedAt); err != nil {
			return nil, err
		}
		rec.Accepted = accepted != 0
		rec.Changed = changed != 0
		rec.Version = uint64(version) //nolint:gosec // written from a uint64
		rec.Error = errText.String
		reloads = append(reloads, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reloads: %w", err)
	}
	return reloads, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDisplay(s scanner) (*Display, error) {
	var d Display
	var id, kind, firstSeen, lastSeen string
	var present int
	if err := s.Scan(&id, &kind, &firstSeen, &lastSeen, &present); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning display: %w", err)
	}
	d.ID = device.ID(id)
	d.Kind = device.Kind(kind)
	d.Present = present != 0

	var err error
	if d.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if d.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &d, nil
}

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableString returns nil for empty strings so the column stays NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
