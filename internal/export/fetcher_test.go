package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetcher_Remote(t *testing.T) {
	var gotUA, gotAccept string
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`[{"a":1}]`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	})
	mux.HandleFunc("/waf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>The requested URL was rejected. Your support ID is: 1234</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{MaxBytes: 1024, UserAgent: "test-agent"})
	ctx := context.Background()

	c, err := f.Fetch(ctx, Remote(srv.URL+"/ok"))
	if err != nil {
		t.Fatalf("Fetch(/ok) error = %v", err)
	}
	if string(c.Data) != `[{"a":1}]` || c.MediaType != "text/html" {
		t.Errorf("Fetch(/ok) = %q (%s)", c.Data, c.MediaType)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/json, text/plain, text/html, */*" {
		t.Errorf("Accept = %q", gotAccept)
	}

	tests := []struct {
		path string
		want error
	}{
		{"/missing", ErrUnavailable},
		{"/empty", ErrUnavailable},
		{"/big", ErrUnavailable},
		{"/waf", ErrBlockedContent},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, err := f.Fetch(ctx, Remote(srv.URL+tt.path))
			if !errors.Is(err, tt.want) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.want)
			}
			if c != nil {
				t.Errorf("Fetch() returned content %q on error", c.Data)
			}
		})
	}
}

func TestFetcher_RemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(FetcherConfig{Timeout: time.Second})
	if _, err := f.Fetch(context.Background(), Remote(url+"/gone")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestFetcher_RemoteCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFetcher(FetcherConfig{Timeout: 5 * time.Second})
	start := time.Now()
	_, err := f.Fetch(ctx, Remote(srv.URL))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not abort the request")
	}
}

func TestFetcher_Local(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "data.json", `{"a":1}`)
	writeFile(t, dir, "empty.json", "")
	writeFile(t, dir, "big.txt", strings.Repeat("y", 100))
	writeFile(t, dir, "blocked.html", "Please consult with your administrator.")

	f := NewFetcher(FetcherConfig{MaxBytes: 64})
	ctx := context.Background()

	for _, loc := range []string{good, "file://" + filepath.ToSlash(good), "FILE:" + filepath.ToSlash(good)} {
		c, err := f.Fetch(ctx, Local(loc))
		if err != nil {
			t.Errorf("Fetch(%s) error = %v", loc, err)
			continue
		}
		if string(c.Data) != `{"a":1}` {
			t.Errorf("Fetch(%s) = %q", loc, c.Data)
		}
	}

	tests := []struct {
		name string
		loc  string
		want error
	}{
		{"missing", filepath.Join(dir, "nope.json"), ErrUnavailable},
		{"directory", dir, ErrUnavailable},
		{"empty", filepath.Join(dir, "empty.json"), ErrUnavailable},
		{"oversize", filepath.Join(dir, "big.txt"), ErrUnavailable},
		{"block page", filepath.Join(dir, "blocked.html"), ErrBlockedContent},
		{"uri without path", "file:", ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Fetch(ctx, Local(tt.loc)); !errors.Is(err, tt.want) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/srv/data/a.json", "/srv/data/a.json"},
		{"relative/a.json", "relative/a.json"},
		{"file:///srv/data/a.json", filepath.FromSlash("/srv/data/a.json")},
		{"file:/C:/data/a.json", filepath.FromSlash("C:/data/a.json")},
		{"file:///d:/x%20y.json", filepath.FromSlash("d:/x y.json")},
	}
	for _, tt := range tests {
		got, err := localPath(tt.in)
		if err != nil {
			t.Errorf("localPath(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("localPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsBlockPage(t *testing.T) {
	marker := "support ID"
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"marker early", "Request blocked. " + marker + ": 42", true},
		{"marker past scan window", strings.Repeat(" ", 600) + marker, false},
		{"ordinary json", `{"supportId": 1}`, false},
	}
	for _, tt := range tests {
		if got := isBlockPage([]byte(tt.data)); got != tt.want {
			t.Errorf("%s: isBlockPage() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
