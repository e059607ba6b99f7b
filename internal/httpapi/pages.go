// pages.go implements the page, history and reference handlers.

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpl-au/wikid/internal/duration"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

var errBadRequest = errors.New("bad request")

// maxPageBytes bounds a PUT body before validation sees it.
const maxPageBytes = 8 << 20

// version parses the ?version= query parameter, defaulting to Latest.
func version(r *http.Request) (int, error) {
	v := r.URL.Query().Get("version")
	if v == "" {
		return provider.Latest, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid version %q", errBadRequest, v)
	}
	return n, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := service.ListOptions{Prefix: r.URL.Query().Get("prefix")}
	if since := r.URL.Query().Get("since"); since != "" {
		d, err := duration.Parse(since)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		opts.Since = time.Now().Add(-d)
	}

	pages, err := s.svc.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if pages == nil {
		pages = []provider.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

// handleGetPage returns the page text as the body. Metadata travels in
// headers; ?meta=1 returns the metadata as JSON instead.
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	v, err := version(r)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := s.svc.Info(r.Context(), name, v)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("meta") != "" {
		writeJSON(w, http.StatusOK, info)
		return
	}

	text, err := s.svc.Text(r.Context(), name, info.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Wikid-Version", strconv.Itoa(info.Version))
	if info.Author != "" {
		w.Header().Set("X-Wikid-Author", info.Author)
	}
	w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	_, _ = io.WriteString(w, text)
}

func (s *Server) handlePutPage(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPageBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	author, note := writer(r)
	p, err := s.svc.Save(r.Context(), name, string(body), service.SaveOptions{
		Author:     author,
		ChangeNote: note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if p.Version == 1 {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

// handleDeletePage deletes the page, or one version with ?version=N.
func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	var err error
	if r.URL.Query().Get("version") != "" {
		var v int
		if v, err = version(r); err == nil {
			err = s.svc.DeleteVersion(r.Context(), name, v)
		}
	} else {
		err = s.svc.Delete(r.Context(), name)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.History(r.Context(), param(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// refsResult is the /pages/{name}/refs response.
type refsResult struct {
	Page      string   `json:"page"`
	Referrers []string `json:"referrers"`
	RefersTo  []string `json:"refers_to"`
}

func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	res := refsResult{Page: name}
	var err error
	if res.Referrers, err = s.svc.Referrers(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	if res.RefersTo, err = s.svc.RefersTo(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	if res.Referrers == nil {
		res.Referrers = []string{}
	}
	if res.RefersTo == nil {
		res.RefersTo = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReport serves a wiki-wide list of page names.
func (s *Server) handleReport(query func(ctx context.Context) ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := query(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names)
	}
}
