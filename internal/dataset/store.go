package dataset

import (
	"context"
	"strings"
)

// Store is the metadata store behind the catalog API.
//
// IncrementViews and IncrementDownloads must be single atomic updates in the
// backing store; concurrent downloads of the same dataset may not lose counts.
type Store interface {
	Get(ctx context.Context, id string) (*Dataset, error)
	Create(ctx context.Context, in Input) (*Dataset, error)
	Update(ctx context.Context, id string, in Input) (*Dataset, error)
	Delete(ctx context.Context, id string) error

	Search(ctx context.Context, p SearchParams) (*Page, error)
	Categories(ctx context.Context) ([]string, error)

	IncrementViews(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) (*Dataset, error)

	Summary(ctx context.Context) (Summary, error)
	CategoryStats(ctx context.Context) ([]CategoryCount, error)
	Top(ctx context.Context, by Counter, limit int) ([]Dataset, error)
}

// Default and maximum page sizes for Search.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortField names a sortable dataset attribute.
type SortField string

const (
	SortCreatedAt     SortField = "createdAt"
	SortTitle         SortField = "title"
	SortViewCount     SortField = "viewCount"
	SortDownloadCount SortField = "downloadCount"
)

// Column returns the SQL column for the sort field, defaulting to created_at.
func (f SortField) Column() string {
	switch f {
	case SortTitle:
		return "title"
	case SortViewCount:
		return "view_count"
	case SortDownloadCount:
		return "download_count"
	default:
		return "created_at"
	}
}

// ParseSortField maps a client sort name (camelCase or snake_case) to a
// SortField. Unknown names fall back to SortCreatedAt.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "title":
		return SortTitle
	case "viewcount":
		return SortViewCount
	case "downloadcount":
		return SortDownloadCount
	default:
		return SortCreatedAt
	}
}

// SearchParams selects one page of datasets.
//
// Query takes precedence over Category; with neither set all datasets match.
// Page is zero-based.
type SearchParams struct {
	Query    string
	Category string
	Page     int
	Size     int
	Sort     SortField
	Desc     bool
}

// Normalize clamps paging values and fills defaults.
func (p SearchParams) Normalize() SearchParams {
	p.Query = strings.TrimSpace(p.Query)
	p.Category = strings.TrimSpace(p.Category)
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Sort == "" {
		p.Sort = SortCreatedAt
	}
	return p
}

// Offset returns the row offset of the page.
func (p SearchParams) Offset() int {
	return p.Page * p.Size
}

// Page is one page of search results, shaped like the catalog frontend
// expects.
type Page struct {
	Content       []Dataset `json:"content"`
	TotalElements int64     `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	Number        int       `json:"number"`
	Size          int       `json:"size"`
}

// NewPage assembles a Page from a result slice and the total match count.
func NewPage(items []Dataset, total int64, p SearchParams) *Page {
	if items == nil {
		items = []Dataset{}
	}
	pages := 0
	if p.Size > 0 {
		pages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return &Page{
		Content:       items,
		TotalElements: total,
		TotalPages:    pages,
		Number:        p.Page,
		Size:          p.Size,
	}
}

// Counter selects which counter a Top query ranks by.
type Counter string

const (
	CounterViews     Counter = "views"
	CounterDownloads Counter = "downloads"
)

// Summary aggregates counters over the whole catalog.
type Summary struct {
	TotalDatasets  int64 `json:"totalDatasets"`
	TotalViews     int64 `json:"totalViews"`
	TotalDownloads int64 `json:"totalDownloads"`
}

// CategoryCount is the number of datasets in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}
