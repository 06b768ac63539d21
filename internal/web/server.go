// Package web provides the HTTP API of the dataset catalog: search and
// maintenance of dataset records, the CSV export endpoints and catalog
// statistics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ldxinsight/catalog/internal/config"
	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/export"
	appmw "github.com/ldxinsight/catalog/internal/web/middleware"
)

var errRateLimited = errors.New("rate limit exceeded")

// Server is the HTTP server for the catalog API.
type Server struct {
	store    dataset.Store
	exporter *export.Exporter
	limiter  *export.Limiter
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server

	// stop ends the rate limiter cleanup loops.
	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a Server. The limiter bounds concurrent exports and is
// shared with the shutdown path, which waits for it to drain.
func NewServer(store dataset.Store, exporter *export.Exporter, limiter *export.Limiter, cfg *config.Config) *Server {
	s := &Server{
		store:    store,
		exporter: exporter,
		limiter:  limiter,
		cfg:      cfg,
		router:   chi.NewRouter(),
		stop:     make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	auth := appmw.APIKeyAuth(&s.cfg.Security)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", s.handleSearchDatasets)
			r.Get("/categories", s.handleCategories)
			r.Get("/category/{category}", s.handleDatasetsByCategory)
			r.With(auth).Post("/", s.handleCreateDataset)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDataset)
				r.With(auth).Put("/", s.handleUpdateDataset)
				r.With(auth).Delete("/", s.handleDeleteDataset)
				r.Post("/view", s.handleRecordView)

				// Downloads share a tighter per-IP budget.
				r.Group(func(r chi.Router) {
					if s.cfg.Rate.Enabled && s.cfg.Rate.ExportLimit > 0 {
						r.Use(s.newRateLimiter(s.cfg.Rate.ExportLimit, time.Minute).middleware)
					}
					r.Get("/download", s.handleDownloadLink)
					r.Get("/download.csv", s.handleExportCSV)
					r.Get("/csv", s.handleExportCSV)
					r.Get("/download.json", s.handleDownloadRaw)
				})
			})
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/summary", s.handleStatsSummary)
			r.Get("/by-category", s.handleStatsByCategory)
			r.Get("/top-viewed", s.handleTopViewed)
			r.Get("/top-downloaded", s.handleTopDownloaded)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// jsonAPIPolicy is the CSP for a server that only returns data.
const jsonAPIPolicy = "default-src 'none'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			h.Set("Content-Security-Policy", jsonAPIPolicy)
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time

	respond func(http.ResponseWriter, *http.Request, error)
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a limiter whose cleanup loop ends with the server.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		respond:  s.respondError,
	}
	go rl.cleanup(s.stop)
	return rl
}

// cleanup removes stale visitor entries every window until stop closes.
func (rl *rateLimiter) cleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow reports whether ip may make another request, consuming a token.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP. TrustedRealIP has already replaced
// RemoteAddr with the forwarded address where that is allowed.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			rl.respond(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
