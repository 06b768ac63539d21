// Package postgres implements dataset.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ldxinsight/catalog/internal/dataset"
)

// Schema creates the datasets table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	tags           TEXT[] NOT NULL DEFAULT '{}',
	category       TEXT NOT NULL DEFAULT '',
	data_url       TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	view_count     BIGINT NOT NULL DEFAULT 0,
	download_count BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS datasets_category_idx ON datasets (lower(category));
CREATE INDEX IF NOT EXISTS datasets_created_at_idx ON datasets (created_at);
`

const columns = `id, title, description, source, tags, category, data_url, provider,
	view_count, download_count, created_at, updated_at`

// Store is a dataset.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ dataset.Store = (*Store)(nil)

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate datasets: %w", err)
	}
	return nil
}

func scanDataset(row pgx.Row) (*dataset.Dataset, error) {
	var d dataset.Dataset
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Source, &d.Tags, &d.Category,
		&d.DataURL, &d.Provider, &d.ViewCount, &d.DownloadCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func notFound(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", dataset.ErrNotFound, id)
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*dataset.Dataset, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+columns+" FROM datasets WHERE id = $1", id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, notFound(err, id)
	}
	return d, nil
}

func (s *Store) Create(ctx context.Context, in dataset.Input) (*dataset.Dataset, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := dataset.Dataset{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	in.Apply(&d)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO datasets (id, title, description, source, tags, category, data_url, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+columns,
		d.ID, d.Title, d.Description, d.Source, d.Tags, d.Category, d.DataURL, d.Provider, d.CreatedAt, d.UpdatedAt)
	created, err := scanDataset(row)
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, in dataset.Input) (*dataset.Dataset, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var d dataset.Dataset
	in.Apply(&d)

	row := s.pool.QueryRow(ctx, `
		UPDATE datasets
		SET title = $2, description = $3, source = $4, tags = $5, category = $6,
			data_url = $7, provider = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+columns,
		id, d.Title, d.Description, d.Source, d.Tags, d.Category, d.DataURL, d.Provider)
	updated, err := scanDataset(row)
	if err != nil {
		return nil, notFound(err, id)
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM datasets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
		where = " WHERE title ILIKE $1 OR description ILIKE $1"
		args = append(args, "%"+escapeLike(p.Query)+"%")
	case p.Category != "":
		where = " WHERE lower(category) = lower($1)"
		args = append(args, p.Category)
	}

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM datasets"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count datasets: %w", err)
	}

	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM datasets%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d",
		columns, where, p.Sort.Column(), dir, len(args)+1, len(args)+2)
	args = append(args, p.Size, p.Offset())

	items, err := s.queryDatasets(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return dataset.NewPage(items, total, p), nil
}

func (s *Store) queryDatasets(ctx context.Context, query string, args ...any) ([]dataset.Dataset, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT category FROM datasets WHERE category <> '' ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect categories: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE datasets SET view_count = view_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", dataset.ErrNotFound, id)
	}
	return nil
}

// IncrementDownloads bumps the counter in one statement and returns the
// updated record.
func (s *Store) IncrementDownloads(ctx context.Context, id string) (*dataset.Dataset, error) {
	row := s.pool.QueryRow(ctx,
		"UPDATE datasets SET download_count = download_count + 1 WHERE id = $1 RETURNING "+columns, id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, notFound(err, id)
	}
	return d, nil
}

func (s *Store) Summary(ctx context.Context) (dataset.Summary, error) {
	var sum dataset.Summary
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(SUM(view_count), 0)::BIGINT, COALESCE(SUM(download_count), 0)::BIGINT FROM datasets").
		Scan(&sum.TotalDatasets, &sum.TotalViews, &sum.TotalDownloads)
	if err != nil {
		return dataset.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}

func (s *Store) CategoryStats(ctx context.Context) ([]dataset.CategoryCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*) FROM datasets
		WHERE category <> ''
		GROUP BY category
		ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dataset.CategoryCount, error) {
		var c dataset.CategoryCount
		err := row.Scan(&c.Category, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect category stats: %w", err)
	}
	return out, nil
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
		fmt.Sprintf("SELECT %s FROM datasets ORDER BY %s DESC, id LIMIT $1", columns, col), limit)
}
