package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ldxinsight/catalog/internal/dataset"
)

// OriginKind tells remote origins from local ones.
type OriginKind int

const (
	OriginRemote OriginKind = iota + 1
	OriginLocal
)

func (k OriginKind) String() string {
	switch k {
	case OriginRemote:
		return "remote"
	case OriginLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Origin is where a dataset's bytes live: an http(s) URL or a local path
// (bare OS path or file: URI).
type Origin struct {
	Kind     OriginKind
	Location string
}

// Remote returns a remote origin for url.
func Remote(url string) Origin { return Origin{Kind: OriginRemote, Location: url} }

// Local returns a local origin for a path or file: URI.
func Local(path string) Origin { return Origin{Kind: OriginLocal, Location: path} }

func (o Origin) String() string {
	return o.Kind.String() + ":" + o.Location
}

// DatasetReader looks up catalog records.
type DatasetReader interface {
	Get(ctx context.Context, id string) (*dataset.Dataset, error)
}

// Locator maps datasets to origins. Datasets without a stored data URL are
// looked up in Dir as <id>.json, then <slug(title)>.json.
type Locator struct {
	records DatasetReader
	dir     string
}

// NewLocator returns a Locator searching dir for local data files.
func NewLocator(records DatasetReader, dir string) *Locator {
	return &Locator{records: records, dir: dir}
}

// Dir returns the base directory searched for local data files.
func (l *Locator) Dir() string { return l.dir }

// Resolve looks up the dataset and locates its origin. Both an unknown
// dataset and a missing origin match dataset.ErrNotFound; the latter is an
// *OriginNotFoundError.
func (l *Locator) Resolve(ctx context.Context, id string) (Origin, error) {
	d, err := l.records.Get(ctx, id)
	if err != nil {
		return Origin{}, err
	}
	return l.Locate(d)
}

// Locate picks the origin for an already loaded record. It never guesses:
// a local candidate counts only if it is a readable regular file.
func (l *Locator) Locate(d *dataset.Dataset) (Origin, error) {
	if u := strings.TrimSpace(d.DataURL); u != "" {
		if isHTTP(u) {
			return Remote(u), nil
		}
		return Local(u), nil
	}

	names := []string{d.ID + ".json"}
	if slug := Slug(d.Title); slug != "" {
		names = append(names, slug+".json")
	}
	for _, name := range names {
		if p, ok := l.candidate(name); ok {
			return Local(p), nil
		}
	}
	return Origin{}, &OriginNotFoundError{DatasetID: d.ID, Dir: l.dir, Tried: names}
}

func (l *Locator) candidate(name string) (string, bool) {
	// Identifiers and titles must not walk out of the data directory.
	if l.dir == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", false
	}
	p := filepath.Join(l.dir, name)
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}
	f, err := os.Open(p)
	if err != nil {
		return "", false
	}
	f.Close()
	return p, true
}

func isHTTP(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.M)))

// Slug reduces a title to a lowercase ASCII file stem: accents are removed,
// đ becomes d and every run of other characters becomes a single dash.
//
//	Slug("Dân số Việt Nam 2024") == "dan-so-viet-nam-2024"
func Slug(title string) string {
	s, _, err := transform.String(stripMarks, title)
	if err != nil {
		s = title
	}

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r == 'đ' || r == 'Đ':
			r = 'd'
		case r >= 'A' && r <= 'Z':
			r = unicode.ToLower(r)
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
