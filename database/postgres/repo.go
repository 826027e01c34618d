// Package postgres implements the download store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ferrydl/ferry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const downloadColumns = `id, name, file_url, category, password, rules, download_count, menu_order, created_at, updated_at`

type Repo struct {
	pool      *pgxpool.Pool
	downloads string
	events    string
	options   string
}

func NewRepo(pool *pgxpool.Pool, tables ferry.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return newRepo(pool, tables), nil
}

func newRepo(pool *pgxpool.Pool, tables ferry.Tables) *Repo {
	return &Repo{
		pool:      pool,
		downloads: pgx.Identifier{tables.Downloads}.Sanitize(),
		events:    pgx.Identifier{tables.Events}.Sanitize(),
		options:   pgx.Identifier{tables.Options}.Sanitize(),
	}
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanDownload(row pgx.Row, extra ...any) (ferry.Download, error) {
	var d ferry.Download
	var rules []byte

	dest := append([]any{&d.ID, &d.Name, &d.FileURL, &d.Category, &d.Password, &rules,
		&d.DownloadCount, &d.MenuOrder, &d.CreatedAt, &d.UpdatedAt}, extra...)

	if err := row.Scan(dest...); err != nil {
		return ferry.Download{}, err
	}

	if err := json.Unmarshal(rules, &d.Rules); err != nil {
		return ferry.Download{}, fmt.Errorf("parse rules: %w", err)
	}

	return d, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (ferry.Download, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, downloadColumns, r.downloads)

	d, err := scanDownload(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ferry.Download{}, ferry.ErrNotFound
		}
		return ferry.Download{}, fmt.Errorf("get: %w", err)
	}

	return d, nil
}

func (r *Repo) GetByName(ctx context.Context, name string) (ferry.Download, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = $1`, downloadColumns, r.downloads)

	d, err := scanDownload(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	query := fmt.Sprintf(`
		INSERT INTO %s (name, file_url, category, password, rules, menu_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET file_url = EXCLUDED.file_url,
			category = EXCLUDED.category,
			password = EXCLUDED.password,
			rules = EXCLUDED.rules,
			menu_order = EXCLUDED.menu_order,
			updated_at = NOW()
		RETURNING %s, (xmax = 0) AS inserted
	`, r.downloads, downloadColumns)

	var inserted bool
	stored, err := scanDownload(
		r.pool.QueryRow(ctx, query, d.Name, d.FileURL, d.Category, d.Password, string(rules), d.MenuOrder),
		&inserted,
	)
	if err != nil {
		return ferry.Download{}, false, fmt.Errorf("upsert: %w", err)
	}

	return stored, inserted, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.downloads), id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete: %w", ferry.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE download_id = $1`, r.events), id); err != nil {
		return fmt.Errorf("delete: events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
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

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id > $1 AND name LIKE $2 || '%%' ESCAPE '\' AND ($3 = '' OR category = $3)
		ORDER BY id
		LIMIT $4
	`, downloadColumns, r.downloads)

	rows, err := r.pool.Query(ctx, query, after, ferry.EscapeLikePattern(q.NamePrefix), q.Category, limit+1)
	if err != nil {
		return ferry.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

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

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ferry.Event{}, fmt.Errorf("record download: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET download_count = download_count + 1 WHERE id = $1`, r.downloads), e.DownloadID)
	if err != nil {
		return ferry.Event{}, fmt.Errorf("record download: increment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ferry.Event{}, fmt.Errorf("record download: %w", ferry.ErrNotFound)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (download_id, user_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.events)

	if err := tx.QueryRow(ctx, query, e.DownloadID, e.UserID, e.IPAddress, e.CreatedAt).Scan(&e.ID, &e.CreatedAt); err != nil {
		return ferry.Event{}, fmt.Errorf("record download: event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ferry.Event{}, fmt.Errorf("record download: commit: %w", err)
	}

	return e, nil
}

func (r *Repo) ListEvents(ctx context.Context, downloadID int64, limit int) ([]ferry.Event, error) {
	query := fmt.Sprintf(`
		SELECT id, download_id, user_id, ip_address, created_at
		FROM %s
		WHERE download_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, r.events)

	rows, err := r.pool.Query(ctx, query, downloadID, ferry.PageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ferry.Event, error) {
		var e ferry.Event
		err := row.Scan(&e.ID, &e.DownloadID, &e.UserID, &e.IPAddress, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return events, nil
}

func (r *Repo) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, r.events), before)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *Repo) GetOption(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, r.options), key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ferry.ErrNotFound
		}
		return "", fmt.Errorf("get option %s: %w", key, err)
	}

	return value, nil
}

func (r *Repo) SetOption(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, r.options)

	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set option %s: %w", key, err)
	}

	return nil
}
