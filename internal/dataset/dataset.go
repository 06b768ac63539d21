// Package dataset defines the catalog's dataset record and the metadata store
// contract shared by the PostgreSQL, SQLite and in-memory implementations.
//
// Records are owned by the store. The export pipeline only reads them and asks
// the store to bump the download counter, which every implementation performs
// as a single atomic increment.
package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no dataset exists for an identifier.
var ErrNotFound = errors.New("dataset not found")

// ErrInvalid is returned when create/update input fails validation.
var ErrInvalid = errors.New("invalid dataset")

// Dataset is a catalog entry describing one published dataset.
type Dataset struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Source        string    `json:"source"`
	Tags          []string  `json:"tags"`
	Category      string    `json:"category"`
	DataURL       string    `json:"dataUrl"`
	Provider      string    `json:"provider"`
	ViewCount     int64     `json:"viewCount"`
	DownloadCount int64     `json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Metadata is the descriptive part of a dataset, without counters or the
// stored data URL. It is what the export pipeline serves when no content can
// be delivered, so repeated exports of an unchanged record are identical.
type Metadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Metadata returns the descriptive view of d.
func (d *Dataset) Metadata() Metadata {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return Metadata{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Source:      d.Source,
		Tags:        tags,
		Category:    d.Category,
		Provider:    d.Provider,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Input holds the client-editable fields of a dataset.
type Input struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	DataURL     string   `json:"dataUrl"`
	Provider    string   `json:"provider"`
}

// Validate checks required fields and reports every missing one at once.
func (in Input) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(in.DataURL) == "" {
		missing = append(missing, "dataUrl")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// Apply copies the input onto d, trimming free-text fields.
func (in Input) Apply(d *Dataset) {
	d.Title = strings.TrimSpace(in.Title)
	d.Description = in.Description
	d.Source = strings.TrimSpace(in.Source)
	d.Tags = cleanTags(in.Tags)
	d.Category = strings.TrimSpace(in.Category)
	d.DataURL = strings.TrimSpace(in.DataURL)
	d.Provider = strings.TrimSpace(in.Provider)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
