// Package httpapi serves the wiki as a small REST API.
//
// Page text travels as the raw request or response body; everything else is
// JSON. Page names containing "/" must be percent-encoded as %2F within the
// {name} segment.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpl-au/wikid/internal/content"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/validate"
)

// Headers read on writes. Query parameters author and changenote are
// accepted as well.
const (
	HeaderAuthor     = "X-Wikid-Author"
	HeaderChangeNote = "X-Wikid-Changenote"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the wiki service.
type Server struct {
	svc    service.Service
	router chi.Router
}

// New builds the router. Metrics from gatherer are exposed on /metrics
// when it is non-nil.
func New(svc service.Service, gatherer prometheus.Gatherer) *Server {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetPage)
			r.Put("/", s.handlePutPage)
			r.Delete("/", s.handleDeletePage)
			r.Get("/history", s.handleHistory)
			r.Get("/refs", s.handleRefs)
			r.Get("/attachments", s.handleAttachments)
			r.Get("/attachments/{file}", s.handleGetAttachment)
			r.Put("/attachments/{file}", s.handlePutAttachment)
		})
	})
	r.Get("/refs/uncreated", s.handleReport(svc.Uncreated))
	r.Get("/refs/unreferenced", s.handleReport(svc.Unreferenced))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, svc service.Service, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(svc, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("wikid HTTP server ready", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// param returns a decoded URL parameter.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// writer returns the author and change note of a write request.
func writer(r *http.Request) (author, note string) {
	author = r.Header.Get(HeaderAuthor)
	if author == "" {
		author = r.URL.Query().Get("author")
	}
	note = r.Header.Get(HeaderChangeNote)
	if note == "" {
		note = r.URL.Query().Get("changenote")
	}
	return author, note
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, provider.ErrNoSuchVersion):
		status = http.StatusNotFound
	case errors.Is(err, provider.ErrExists), errors.Is(err, service.ErrLocked):
		status = http.StatusConflict
	case errors.Is(err, validate.ErrInvalidName), errors.Is(err, validate.ErrNameTooLong),
		errors.Is(err, validate.ErrInvalidProperty), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, validate.ErrContentTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, content.ErrRejected):
		status = http.StatusForbidden
	case errors.Is(err, content.ErrPending):
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
