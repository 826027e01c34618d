// Package sqlite implements the download store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ferrydl/ferry"
)

// timeFormat is fixed width so that stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const downloadColumns = `id, name, file_url, category, password, rules, download_count, menu_order, created_at, updated_at`

type Repo struct {
	db        *sql.DB
	downloads string
	events    string
	options   string
}

func NewRepo(db *sql.DB, tables ferry.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{
		db:        db,
		downloads: quoteIdentifier(tables.Downloads),
		events:    quoteIdentifier(tables.Events),
		options:   quoteIdentifier(tables.Options),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (ferry.Download, error) {
	var d ferry.Download
	var rules, createdAt, updatedAt string

	if err := row.Scan(&d.ID, &d.Name, &d.FileURL, &d.Category, &d.Password, &rules,
		&d.DownloadCount, &d.MenuOrder, &createdAt, &updatedAt); err != nil {
		return ferry.Download{}, err
	}

	if err := json.Unmarshal([]byte(rules), &d.Rules); err != nil {
		return ferry.Download{}, fmt.Errorf("parse rules: %w", err)
	}

	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return ferry.Download{}, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ferry.Download{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return d, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (ferry.Download, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, downloadColumns, r.downloads)

	d, err := scanDownload(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ferry.Download{}, ferry.ErrNotFound
		}
		return ferry.Download{}, fmt.Errorf("get: %w", err)
	}

	return d, nil
}

func (r *Repo) GetByName(ctx context.Context, name string) (ferry.Download, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE name = ?`, downloadColumns, r.downloads)

	d, err := scanDownload(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ferry.Download{}, ferry.ErrNotFound
		}
		return ferry.Download{}, fmt.Errorf("get by name: %w", err)
	}

	return d, nil
}

func (r *Repo) Upsert(ctx context.Context, d ferry.Download) (ferry.Download, bool, error) {
	rules, err := json.Marshal(d.Rules)
	if err != nil {
		return ferry.Download{}, false, fmt.Errorf("upsert: encode rules: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ferry.Download{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())

	var id int64
	checkQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id FROM %s WHERE name = ?`, r.downloads)
	err = tx.QueryRowContext(ctx, checkQuery, d.Name).Scan(&id)

	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return ferry.Download{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	if isInsert {
		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (name, file_url, category, password, rules, download_count, menu_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`, r.downloads)

		result, execErr := tx.ExecContext(ctx, insertQuery,
			d.Name, d.FileURL, d.Category, d.Password, string(rules), d.MenuOrder, now, now)
		if execErr != nil {
			return ferry.Download{}, false, fmt.Errorf("upsert: insert: %w", execErr)
		}

		if id, err = result.LastInsertId(); err != nil {
			return ferry.Download{}, false, fmt.Errorf("upsert: last insert id: %w", err)
		}
	} else {
		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s
			SET file_url = ?, category = ?, password = ?, rules = ?, menu_order = ?, updated_at = ?
			WHERE id = ?`, r.downloads)

		if _, execErr := tx.ExecContext(ctx, updateQuery,
			d.FileURL, d.Category, d.Password, string(rules), d.MenuOrder, now, id); execErr != nil {
			return ferry.Download{}, false, fmt.Errorf("upsert: update: %w", execErr)
		}
	}

	getQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, downloadColumns, r.downloads)
	stored, err := scanDownload(tx.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		return ferry.Download{}, false, fmt.Errorf("upsert: reload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ferry.Download{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	return stored, isInsert, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE id = ?`, r.downloads)

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", ferry.ErrNotFound)
	}

	eventsQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE download_id = ?`, r.events)
	if _, err := tx.ExecContext(ctx, eventsQuery, id); err != nil {
		return fmt.Errorf("delete: events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete: commit: %w", err)
	}

	return nil
}

func (r *Repo) List(ctx context.Context, q ferry.ListQuery) (ferry.ListResult, error) {
	after, err := ferry.DecodeCursor(q.Cursor)
	if err != nil {
		return ferry.ListResult{}, fmt.Errorf("list: %w: %w", ferry.ErrInvalidInput, err)
	}

	limit := q.PageSize()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s
		FROM %s
		WHERE id > ? AND name LIKE ? || '%%' ESCAPE '\' AND (? = '' OR category = ?)
		ORDER BY id
		LIMIT ?`, downloadColumns, r.downloads)

	rows, err := r.db.QueryContext(ctx, query,
		after, ferry.EscapeLikePattern(q.NamePrefix), q.Category, q.Category, limit+1)
	if err != nil {
		return ferry.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]ferry.Download, 0, limit)
	for rows.Next() {
		d, scanErr := scanDownload(rows)
		if scanErr != nil {
			return ferry.ListResult{}, fmt.Errorf("list: scan: %w", scanErr)
		}
		items = append(items, d)
	}

	if err := rows.Err(); err != nil {
		return ferry.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		items = items[:limit]
		nextCursor = ferry.EncodeCursor(items[limit-1].ID)
	}

	return ferry.ListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *Repo) RecordDownload(ctx context.Context, e ferry.Event) (ferry.Event, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ferry.Event{}, fmt.Errorf("record download: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET download_count = download_count + 1 WHERE id = ?`, r.downloads)

	result, err := tx.ExecContext(ctx, updateQuery, e.DownloadID)
	if err != nil {
		return ferry.Event{}, fmt.Errorf("record download: increment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ferry.Event{}, fmt.Errorf("record download: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ferry.Event{}, fmt.Errorf("record download: %w", ferry.ErrNotFound)
	}

	insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (download_id, user_id, ip_address, created_at) VALUES (?, ?, ?, ?)`, r.events)

	result, err = tx.ExecContext(ctx, insertQuery, e.DownloadID, e.UserID, e.IPAddress, formatTime(e.CreatedAt))
	if err != nil {
		return ferry.Event{}, fmt.Errorf("record download: event: %w", err)
	}

	if e.ID, err = result.LastInsertId(); err != nil {
		return ferry.Event{}, fmt.Errorf("record download: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ferry.Event{}, fmt.Errorf("record download: commit: %w", err)
	}

	return e, nil
}

func (r *Repo) ListEvents(ctx context.Context, downloadID int64, limit int) ([]ferry.Event, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, download_id, user_id, ip_address, created_at
		FROM %s
		WHERE download_id = ?
		ORDER BY id DESC
		LIMIT ?`, r.events)

	rows, err := r.db.QueryContext(ctx, query, downloadID, ferry.PageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []ferry.Event{}
	for rows.Next() {
		var e ferry.Event
		var userID, ip sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DownloadID, &userID, &ip, &createdAt); err != nil {
			return nil, fmt.Errorf("list events: scan: %w", err)
		}

		if userID.Valid {
			e.UserID = &userID.String
		}
		if ip.Valid {
			e.IPAddress = &ip.String
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("list events: parse created_at: %w", err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: rows: %w", err)
	}

	return events, nil
}

func (r *Repo) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE created_at < ?`, r.events)

	result, err := r.db.ExecContext(ctx, query, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events: rows affected: %w", err)
	}

	return n, nil
}

func (r *Repo) GetOption(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT value FROM %s WHERE key = ?`, r.options)

	var value string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ferry.ErrNotFound
		}
		return "", fmt.Errorf("get option %s: %w", key, err)
	}

	return value, nil
}

func (r *Repo) SetOption(ctx context.Context, key, value string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, r.options)

	if _, err := r.db.ExecContext(ctx, query, key, value, formatTime(time.Now())); err != nil {
		return fmt.Errorf("set option %s: %w", key, err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
