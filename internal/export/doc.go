// Package export turns a catalog dataset into a downloadable artifact.
//
// The pipeline runs top-down for every request:
//
//	Locator    dataset -> Origin (remote URL or local file)
//	Fetcher    Origin  -> Content (raw bytes, size bounded, block pages rejected)
//	Classify   bytes   -> Kind (json, json-like, html, text)
//	ToCSV      JSON    -> CSV text
//	Exporter   sequences the stages and picks the artifact
//
// Any failure after the dataset lookup degrades to the next cheaper result and
// finally to the dataset's metadata serialized as JSON, which always succeeds.
// Only an unknown dataset is reported to the caller as an error.
//
// Nothing in this package is shared between requests except the Fetcher's
// HTTP client and the concurrency Limiter.
package export
