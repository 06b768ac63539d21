// Package sqlite implements dataset.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). It is used for single-node deployments and as
// a real-SQL store in tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ldxinsight/catalog/internal/dataset"
)

// Schema creates the datasets table. Tags are a JSON array; timestamps are
// fixed-width UTC text so they sort lexically.
const Schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '[]',
	category       TEXT NOT NULL DEFAULT '',
	data_url       TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	view_count     INTEGER NOT NULL DEFAULT 0,
	download_count INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS datasets_category_idx ON datasets (category COLLATE NOCASE);
`

const timeLayout = "2006-01-02T15:04:05.000000000Z"

const columns = `id, title, description, source, tags, category, data_url, provider,
	view_count, download_count, created_at, updated_at`

// Store is a dataset.Store backed by database/sql with the sqlite driver.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ dataset.Store = (*Store)(nil)

// Open opens (or creates) the database at path, applies pragmas and the
// schema. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (*dataset.Dataset, error) {
	var (
		d                dataset.Dataset
		tags             string
		created, updated string
	)
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Source, &tags, &d.Category,
		&d.DataURL, &d.Provider, &d.ViewCount, &d.DownloadCount, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if d.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &d, nil
}

func notFound(err error, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", dataset.ErrNotFound, id)
	}
	return err
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func (s *Store) Get(ctx context.Context, id string) (*dataset.Dataset, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM datasets WHERE id = ?", id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, notFound(err, id)
	}
	return d, nil
}

// Insert stores a fully populated record as is. It is meant for seeding and
// imports where ids and counters already exist.
func (s *Store) Insert(ctx context.Context, d dataset.Dataset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Description, d.Source, encodeTags(d.Tags), d.Category, d.DataURL, d.Provider,
		d.ViewCount, d.DownloadCount, d.CreatedAt.UTC().Format(timeLayout), d.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, in dataset.Input) (*dataset.Dataset, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	d := dataset.Dataset{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	in.Apply(&d)
	if err := s.Insert(ctx, d); err != nil {
		return nil, err
	}
	return s.Get(ctx, d.ID)
}

func (s *Store) Update(ctx context.Context, id string, in dataset.Input) (*dataset.Dataset, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var d dataset.Dataset
	in.Apply(&d)

	row := s.db.QueryRowContext(ctx, `
		UPDATE datasets
		SET title = ?, description = ?, source = ?, tags = ?, category = ?,
			data_url = ?, provider = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+columns,
		d.Title, d.Description, d.Source, encodeTags(d.Tags), d.Category, d.DataURL, d.Provider,
		s.now().Format(timeLayout), id)
	updated, err := scanDataset(row)
	if err != nil {
		return nil, notFound(err, id)
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", dataset.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, p dataset.SearchParams) (*dataset.Page, error) {
	p = p.Normalize()

	var where string
	var args []any
	switch {
	case p.Query != "":
		pattern := "%" + escapeLike(strings.ToLower(p.Query)) + "%"
		where = ` WHERE lower(title) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	case p.Category != "":
		where = " WHERE category = ? COLLATE NOCASE"
		args = append(args, p.Category)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM datasets"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count datasets: %w", err)
	}

	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM datasets%s ORDER BY %s %s, id LIMIT ? OFFSET ?",
		columns, where, p.Sort.Column(), dir)
	items, err := s.queryDatasets(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, err
	}
	return dataset.NewPage(items, total, p), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) queryDatasets(ctx context.Context, query string, args ...any) ([]dataset.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []dataset.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT category FROM datasets WHERE category <> '' ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE datasets SET view_count = view_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", dataset.ErrNotFound, id)
	}
	return nil
}

func (s *Store) IncrementDownloads(ctx context.Context, id string) (*dataset.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		"UPDATE datasets SET download_count = download_count + 1 WHERE id = ? RETURNING "+columns, id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, notFound(err, id)
	}
	return d, nil
}

func (s *Store) Summary(ctx context.Context) (dataset.Summary, error) {
	var sum dataset.Summary
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(view_count), 0), COALESCE(SUM(download_count), 0) FROM datasets").
		Scan(&sum.TotalDatasets, &sum.TotalViews, &sum.TotalDownloads)
	if err != nil {
		return dataset.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}

func (s *Store) CategoryStats(ctx context.Context) ([]dataset.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM datasets
		WHERE category <> ''
		GROUP BY category
		ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	out := []dataset.CategoryCount{}
	for rows.Next() {
		var c dataset.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Top(ctx context.Context, by dataset.Counter, limit int) ([]dataset.Dataset, error) {
	col := "view_count"
	if by == dataset.CounterDownloads {
		col = "download_count"
	}
	if limit <= 0 {
		limit = 5
	}
	return s.queryDatasets(ctx,
		fmt.Sprintf("SELECT %s FROM datasets ORDER BY %s DESC, id LIMIT ?", columns, col), limit)
}
