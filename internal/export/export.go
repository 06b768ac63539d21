package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/logging"
)

// Records is the part of the metadata store the exporter needs.
type Records interface {
	DatasetReader
	IncrementDownloads(ctx context.Context, id string) (*dataset.Dataset, error)
}

// OriginLocator maps a loaded record to its origin.
type OriginLocator interface {
	Locate(d *dataset.Dataset) (Origin, error)
}

// ContentFetcher reads the bytes behind an origin.
type ContentFetcher interface {
	Fetch(ctx context.Context, o Origin) (*Content, error)
}

// Branch records which step of the fallback chain produced an artifact.
type Branch string

const (
	BranchCSV      Branch = "csv"
	BranchOriginal Branch = "original"
	BranchMetadata Branch = "metadata"
)

// Artifact is one downloadable response.
type Artifact struct {
	Body        []byte
	Filename    string
	MediaType   string
	Disposition string // always "attachment"
	NoCache     bool
	Branch      Branch
}

func newArtifact(body []byte, filename, mediaType string, branch Branch) *Artifact {
	return &Artifact{
		Body:        body,
		Filename:    filename,
		MediaType:   mediaType,
		Disposition: "attachment",
		NoCache:     true,
		Branch:      branch,
	}
}

// Exporter runs the export pipeline.
type Exporter struct {
	records Records
	locator OriginLocator
	fetcher ContentFetcher
}

// NewExporter wires the pipeline stages together.
func NewExporter(records Records, locator OriginLocator, fetcher ContentFetcher) *Exporter {
	return &Exporter{records: records, locator: locator, fetcher: fetcher}
}

// Export builds the artifact for dataset id and counts the download.
//
// The only error for a known dataset is a failing store; every pipeline
// failure degrades to the metadata document. An unknown id returns an error
// matching dataset.ErrNotFound and is not counted.
func (e *Exporter) Export(ctx context.Context, id string) (*Artifact, error) {
	d, err := e.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logging.WithFields(ctx, "dataset_id", id)

	art := e.build(ctx, d, log)

	// Count the access even if the client has gone away.
	if _, err := e.records.IncrementDownloads(context.WithoutCancel(ctx), id); err != nil {
		log.Warn("download counter not incremented", "error", err)
	}

	log.Info("export served",
		"branch", art.Branch,
		"filename", art.Filename,
		"bytes", len(art.Body),
	)
	return art, nil
}

// build is the recovery boundary of the pipeline.
func (e *Exporter) build(ctx context.Context, d *dataset.Dataset, log *slog.Logger) (art *Artifact) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("export panicked, serving metadata",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			art = MetadataArtifact(d)
		}
	}()

	art, err := e.content(ctx, d, log)
	if err != nil {
		var notFound *OriginNotFoundError
		switch {
		case errors.As(err, &notFound):
			log.Info("no data source, serving metadata", "tried", notFound.Tried, "dir", notFound.Dir)
		case errors.Is(err, ErrUnavailable), errors.Is(err, ErrBlockedContent):
			log.Warn("content unavailable, serving metadata", "error", err)
		default:
			log.Error("export failed, serving metadata", "error", err)
		}
		return MetadataArtifact(d)
	}
	return art
}

func (e *Exporter) content(ctx context.Context, d *dataset.Dataset, log *slog.Logger) (*Artifact, error) {
	origin, err := e.locator.Locate(d)
	if err != nil {
		return nil, err
	}
	log.Debug("origin resolved", "origin", origin.String())

	content, err := e.fetcher.Fetch(ctx, origin)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: fetcher returned no content", ErrUnavailable)
	}

	c := Classify(content.Data)
	log.Debug("content classified",
		"kind", c.Kind,
		"bytes", len(c.Data),
		"declared_type", content.MediaType,
	)

	base := FileBase(d)
	if c.Kind == KindJSON {
		csv, err := ToCSV(c.Tree)
		if err == nil && csv != "" {
			return newArtifact([]byte(csv), base+".csv", CSVMediaType, BranchCSV), nil
		}
		log.Warn("csv conversion failed, serving original json", "error", err)
	}
	return newArtifact(c.Data, base+c.Kind.Extension(), c.Kind.MediaType(), BranchOriginal), nil
}

// MetadataArtifact serializes the descriptive fields of d as indented JSON.
func MetadataArtifact(d *dataset.Dataset) *Artifact {
	body, err := json.MarshalIndent(d.Metadata(), "", "  ")
	if err != nil {
		body = []byte("{}")
	}
	return newArtifact(body, FileBase(d)+".json", "application/json", BranchMetadata)
}
