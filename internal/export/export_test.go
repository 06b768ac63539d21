package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ldxinsight/catalog/internal/dataset"
)

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/table.json":   `[{"a":1,"b":"x,y"}]`,
		"/page.html":    "<!doctype html><html><body>hi</body></html>",
		"/notes.txt":    "plain notes",
		"/broken.json":  `{"a": [1, 2`,
		"/empty.json":   `{}`,
		"/numbers.json": `[10,20,30]`,
		"/null.json":    `null`,
		"/waf":          "<html>The requested URL was rejected. support ID: 99</html>",
		"/spaced.json":  "{ \"b\" : 2, \"a\" : [ 1 ] }",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type pipeline struct {
	store    *dataset.MemoryStore
	exporter *Exporter
	srv      *httptest.Server
	dir      string
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	store := dataset.NewMemoryStore()
	dir := t.TempDir()
	return &pipeline{
		store:    store,
		exporter: NewExporter(store, NewLocator(store, dir), NewFetcher(FetcherConfig{Timeout: 2 * time.Second})),
		srv:      upstream(t),
		dir:      dir,
	}
}

func (p *pipeline) put(id, title, dataURL string) {
	p.store.Put(dataset.Dataset{
		ID:          id,
		Title:       title,
		Description: "test dataset",
		Source:      "unit",
		Tags:        []string{"t"},
		DataURL:     dataURL,
		CreatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

func (p *pipeline) downloads(t *testing.T, id string) int64 {
	t.Helper()
	d, err := p.store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return d.DownloadCount
}

func TestExport_Branches(t *testing.T) {
	p := newPipeline(t)
	writeFile(t, p.dir, "local-1.json", `[{"x":"1"},{"y":2}]`)

	tests := []struct {
		name      string
		title     string
		dataURL   string
		id        string
		branch    Branch
		filename  string
		mediaType string
		body      string
	}{
		{"json to csv", "Air: Quality/2024", p.srv.URL + "/table.json", "r1",
			BranchCSV, "Air_ Quality_2024.csv", CSVMediaType, "a,b\n1,\"x,y\"\n"},
		{"html served as is", "Page", p.srv.URL + "/page.html", "r2",
			BranchOriginal, "Page.html", "text/html", "<!doctype html><html><body>hi</body></html>"},
		{"text served as is", "Notes", p.srv.URL + "/notes.txt", "r3",
			BranchOriginal, "Notes.txt", "text/plain", "plain notes"},
		{"json-like served as json", "Broken", p.srv.URL + "/broken.json", "r4",
			BranchOriginal, "Broken.json", "application/json", `{"a": [1, 2`},
		{"conversion failure serves original json", "Empty", p.srv.URL + "/empty.json", "r5",
			BranchOriginal, "Empty.json", "application/json", `{}`},
		{"array of scalars serves original json", "Numbers", p.srv.URL + "/numbers.json", "r6",
			BranchOriginal, "Numbers.json", "application/json", `[10,20,30]`},
		{"null document serves original json", "Nothing", p.srv.URL + "/null.json", "r7",
			BranchOriginal, "Nothing.json", "application/json", `null`},
		{"local file by id", "Local", "", "local-1",
			BranchCSV, "Local.csv", CSVMediaType, "x,y\n1,\n,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.put(tt.id, tt.title, tt.dataURL)
			art, err := p.exporter.Export(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if art.Branch != tt.branch {
				t.Errorf("Branch = %s, want %s", art.Branch, tt.branch)
			}
			if art.Filename != tt.filename {
				t.Errorf("Filename = %q, want %q", art.Filename, tt.filename)
			}
			if art.MediaType != tt.mediaType {
				t.Errorf("MediaType = %q, want %q", art.MediaType, tt.mediaType)
			}
			if string(art.Body) != tt.body {
				t.Errorf("Body = %q, want %q", art.Body, tt.body)
			}
			if art.Disposition != "attachment" || !art.NoCache {
				t.Errorf("Disposition = %q, NoCache = %v", art.Disposition, art.NoCache)
			}
			if got := p.downloads(t, tt.id); got != 1 {
				t.Errorf("DownloadCount = %d, want 1", got)
			}
		})
	}
}

func TestExport_MetadataFallback(t *testing.T) {
	p := newPipeline(t)

	tests := []struct {
		name    string
		dataURL string
	}{
		{"upstream error", p.srv.URL + "/missing"},
		{"block page", p.srv.URL + "/waf"},
		{"missing local file", "file:///definitely/not/here.json"},
		{"no origin at all", ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "m" + string(rune('0'+i))
			p.put(id, "Hospital beds", tt.dataURL)

			art, err := p.exporter.Export(context.Background(), id)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if art.Branch != BranchMetadata || art.MediaType != "application/json" || art.Filename != "Hospital beds.json" {
				t.Errorf("artifact = %s %q %q", art.Branch, art.MediaType, art.Filename)
			}

			var md dataset.Metadata
			if err := json.Unmarshal(art.Body, &md); err != nil {
				t.Fatalf("metadata body is not JSON: %v", err)
			}
			if md.ID != id || md.Title != "Hospital beds" || md.Source != "unit" || len(md.Tags) != 1 {
				t.Errorf("metadata = %+v", md)
			}
			if bytes.Contains(art.Body, []byte("downloadCount")) {
				t.Error("metadata should not carry counters")
			}
			if got := p.downloads(t, id); got != 1 {
				t.Errorf("DownloadCount = %d, want 1", got)
			}
		})
	}
}

func TestExport_RepeatIsIdenticalAndCounted(t *testing.T) {
	p := newPipeline(t)
	p.put("csv", "Table", p.srv.URL+"/table.json")
	p.put("meta", "Meta", p.srv.URL+"/missing")

	for _, id := range []string{"csv", "meta"} {
		first, err := p.exporter.Export(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		second, err := p.exporter.Export(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first.Body, second.Body) || first.Filename != second.Filename {
			t.Errorf("%s: repeated export differs:\n%s\n---\n%s", id, first.Body, second.Body)
		}
		if got := p.downloads(t, id); got != 2 {
			t.Errorf("%s: DownloadCount = %d, want 2", id, got)
		}
	}
}

func TestExport_UnknownDataset(t *testing.T) {
	p := newPipeline(t)

	art, err := p.exporter.Export(context.Background(), "nope")
	if !errors.Is(err, dataset.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if art != nil {
		t.Errorf("artifact = %+v, want nil", art)
	}
	if s, _ := p.store.Summary(context.Background()); s.TotalDownloads != 0 {
		t.Errorf("TotalDownloads = %d, want 0", s.TotalDownloads)
	}
}

func TestExport_BlankTitleFilename(t *testing.T) {
	p := newPipeline(t)
	p.put("abc", "   ", "")

	art, err := p.exporter.Export(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if art.Filename != "dataset-abc.json" {
		t.Errorf("Filename = %q, want dataset-abc.json", art.Filename)
	}
}

func TestExport_CancelledClientStillCounted(t *testing.T) {
	p := newPipeline(t)
	p.put("c1", "Cancelled", p.srv.URL+"/table.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	art, err := p.exporter.Export(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if art.Branch != BranchMetadata {
		t.Errorf("Branch = %s, want metadata", art.Branch)
	}
	if got := p.downloads(t, "c1"); got != 1 {
		t.Errorf("DownloadCount = %d, want 1", got)
	}
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, Origin) (*Content, error) {
	panic("fetcher exploded")
}

func TestExport_PanicFallsBackToMetadata(t *testing.T) {
	store := dataset.NewMemoryStore()
	store.Put(dataset.Dataset{ID: "p1", Title: "Panic", DataURL: "http://example.invalid/x"})
	e := NewExporter(store, NewLocator(store, ""), panickingFetcher{})

	art, err := e.Export(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if art.Branch != BranchMetadata {
		t.Errorf("Branch = %s, want metadata", art.Branch)
	}
	d, _ := store.Get(context.Background(), "p1")
	if d.DownloadCount != 1 {
		t.Errorf("DownloadCount = %d, want 1", d.DownloadCount)
	}
}

func TestRaw(t *testing.T) {
	p := newPipeline(t)
	p.put("j", "Spaced", p.srv.URL+"/spaced.json")
	p.put("t", "Notes", p.srv.URL+"/notes.txt")
	p.put("none", "Nothing", "")
	p.put("down", "Down", p.srv.URL+"/missing")
	ctx := context.Background()

	art, err := p.exporter.Raw(ctx, "j")
	if err != nil {
		t.Fatalf("Raw(j) error = %v", err)
	}
	if string(art.Body) != `{"b":2,"a":[1]}` {
		t.Errorf("Raw(j) body = %q", art.Body)
	}
	if art.Filename != "Spaced.txt" || art.MediaType != "text/plain; charset=utf-8" {
		t.Errorf("Raw(j) = %q %q", art.Filename, art.MediaType)
	}

	art, err = p.exporter.Raw(ctx, "t")
	if err != nil || string(art.Body) != "plain notes" {
		t.Errorf("Raw(t) = %v, %v", art, err)
	}

	var nf *OriginNotFoundError
	if _, err := p.exporter.Raw(ctx, "none"); !errors.As(err, &nf) {
		t.Errorf("Raw(none) error = %v, want *OriginNotFoundError", err)
	}
	if _, err := p.exporter.Raw(ctx, "down"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Raw(down) error = %v, want ErrUnavailable", err)
	}
	if _, err := p.exporter.Raw(ctx, "ghost"); !errors.Is(err, dataset.ErrNotFound) {
		t.Errorf("Raw(ghost) error = %v, want ErrNotFound", err)
	}

	if got := p.downloads(t, "j"); got != 0 {
		t.Errorf("Raw counted a download: %d", got)
	}
}
