package export

import (
	"bytes"
	"context"
	"encoding/json"
)

// Raw fetches the dataset's content without conversion or fallback. Valid
// JSON is compacted; anything else is returned as is. The artifact is always
// named <title>.txt and served as text/plain. Raw does not count a download.
//
// Errors: dataset.ErrNotFound for an unknown id, *OriginNotFoundError when
// no source exists, and the Fetcher's ErrUnavailable/ErrBlockedContent.
func (e *Exporter) Raw(ctx context.Context, id string) (*Artifact, error) {
	d, err := e.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	origin, err := e.locator.Locate(d)
	if err != nil {
		return nil, err
	}
	content, err := e.fetcher.Fetch(ctx, origin)
	if err != nil {
		return nil, err
	}

	body := content.Data
	var compact bytes.Buffer
	if err := json.Compact(&compact, bytes.TrimPrefix(body, utf8BOM)); err == nil {
		body = compact.Bytes()
	}
	return newArtifact(body, FileBase(d)+".txt", "text/plain; charset=utf-8", BranchOriginal), nil
}
