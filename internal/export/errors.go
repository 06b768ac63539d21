package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ldxinsight/catalog/internal/dataset"
)

var (
	// ErrUnavailable means the origin could not deliver usable bytes:
	// transport failure, non-2xx status, empty body, oversize body, or a
	// missing or unreadable local file.
	ErrUnavailable = errors.New("content unavailable")

	// ErrBlockedContent means the origin answered with a gateway or firewall
	// block page instead of the dataset.
	ErrBlockedContent = errors.New("blocked content")

	// ErrConversionFailed means a JSON tree could not be rendered as CSV.
	ErrConversionFailed = errors.New("csv conversion failed")
)

// OriginNotFoundError is returned when a dataset has no stored data URL and
// no local file matches the naming conventions. It matches
// dataset.ErrNotFound with errors.Is.
type OriginNotFoundError struct {
	DatasetID string
	Dir       string
	Tried     []string
}

func (e *OriginNotFoundError) Error() string {
	return fmt.Sprintf("no data source for dataset %s: tried %s in %s",
		e.DatasetID, strings.Join(e.Tried, ", "), e.Dir)
}

func (e *OriginNotFoundError) Unwrap() error {
	return dataset.ErrNotFound
}
