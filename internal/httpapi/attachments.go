// attachments.go implements the attachment handlers.

package httpapi

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/jpl-au/wikid/internal/provider"
)

func (s *Server) handleAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := s.svc.Attachments(r.Context(), param(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if atts == nil {
		atts = []provider.Attachment{}
	}
	writeJSON(w, http.StatusOK, atts)
}

// handleGetAttachment streams one attachment version. Files matching the
// configured no-cache pattern are served with Cache-Control: no-store.
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	v, err := version(r)
	if err != nil {
		writeError(w, err)
		return
	}
	att, rc, err := s.svc.Attachment(r.Context(), param(r, "name"), param(r, "file"), v)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(att.FileName))
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.FormatInt(att.Size, 10))
	h.Set("X-Wikid-Version", strconv.Itoa(att.Version))
	h.Set("Last-Modified", att.LastModified.UTC().Format(http.TimeFormat))
	if !att.Cacheable {
		h.Set("Cache-Control", "no-store")
	}
	_, _ = io.Copy(w, rc)
}

func (s *Server) handlePutAttachment(w http.ResponseWriter, r *http.Request) {
	author, note := writer(r)
	att := &provider.Attachment{
		Page:       param(r, "name"),
		FileName:   param(r, "file"),
		Author:     author,
		ChangeNote: note,
	}
	if err := s.svc.Attach(r.Context(), att, r.Body); err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if att.Version == 1 {
		status = http.StatusCreated
	}
	writeJSON(w, status, att)
}
