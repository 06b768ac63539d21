package export

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FetcherConfig configures the Fetcher.
type FetcherConfig struct {
	Timeout   time.Duration // per fetch. Default: 15s.
	MaxBytes  int64         // largest accepted payload. Default: 50MiB.
	UserAgent string
}

func (c *FetcherConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "Ldx-Insight/1.0 (+go)"
	}
}

// Content is a fetched payload. MediaType is whatever the origin declared and
// is never used for classification.
type Content struct {
	Data      []byte
	MediaType string
}

// Fetcher reads origins. It issues at most one request or one file read per
// call and never retries.
type Fetcher struct {
	client *http.Client
	config FetcherConfig
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// blockMarkers identify proxy and WAF rejection pages served with a 200.
var blockMarkers = []string{
	"The requested URL was rejected",
	"Please consult with your administrator",
	"support ID",
}

const blockScanBytes = 500

// Fetch returns the bytes behind o. Failures wrap ErrUnavailable, or
// ErrBlockedContent when the payload is a block page.
func (f *Fetcher) Fetch(ctx context.Context, o Origin) (*Content, error) {
	var (
		c   *Content
		err error
	)
	switch o.Kind {
	case OriginRemote:
		c, err = f.fetchRemote(ctx, o.Location)
	case OriginLocal:
		c, err = f.readLocal(ctx, o.Location)
	default:
		return nil, fmt.Errorf("%w: unknown origin %q", ErrUnavailable, o.Location)
	}
	if err != nil {
		return nil, err
	}
	if isBlockPage(c.Data) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedContent, o.Location)
	}
	return c, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, rawURL string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %w", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, text/html, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d from %s", ErrUnavailable, resp.StatusCode, rawURL)
	}
	if resp.ContentLength > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: body of %d bytes exceeds limit of %d", ErrUnavailable, resp.ContentLength, f.config.MaxBytes)
	}

	data, err := f.readBounded(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Content{Data: data, MediaType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) readLocal(ctx context.Context, location string) (*Content, error) {
	path, err := localPath(location)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnavailable, path)
	}
	if fi.Size() > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrUnavailable, path, fi.Size(), f.config.MaxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer file.Close()

	data, err := f.readBounded(file)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Content{Data: data, MediaType: mime.TypeByExtension(filepath.Ext(path))}, nil
}

// readBounded reads at most MaxBytes; a longer or empty stream is an error
// and whatever was read is dropped.
func (f *Fetcher) readBounded(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: body exceeds limit of %d bytes", ErrUnavailable, f.config.MaxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnavailable)
	}
	return data, nil
}

var driveLetterPath = regexp.MustCompile(`^/[A-Za-z]:`)

// localPath turns a bare path or file: URI into an OS path. For URIs a slash
// in front of a drive letter (/C:/data/x.json) is dropped.
func localPath(location string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(location), "file:") {
		return location, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: bad file URI %q: %w", ErrUnavailable, location, err)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("%w: file URI %q has no path", ErrUnavailable, location)
	}
	if driveLetterPath.MatchString(p) {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

func isBlockPage(data []byte) bool {
	head := data
	if len(head) > blockScanBytes {
		head = head[:blockScanBytes]
	}
	s := strings.ToValidUTF8(string(head), "\uFFFD")
	for _, m := range blockMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
