package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/httpapi"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	ws, err := workspace.Init(false, false, t.TempDir())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc, err := wiki.Open(context.Background(), ws, cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	ts := httptest.NewServer(httpapi.New(svc, reg))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, header map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPageLifecycle(t *testing.T) {
	ts := newServer(t, nil)
	author := map[string]string{httpapi.HeaderAuthor: "alice"}

	resp := do(t, http.MethodPut, ts.URL+"/pages/MainPage", "Hello [Sandbox]", author)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var p provider.Page
	decode(t, resp, &p)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, "alice", p.Author)

	resp = do(t, http.MethodPut, ts.URL+"/pages/MainPage?changenote=second", "Hello again", author)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/pages/MainPage", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-Wikid-Version"))
	assert.Equal(t, "Hello again", readBody(t, resp))

	resp = do(t, http.MethodGet, ts.URL+"/pages/MainPage?version=1", "", nil)
	assert.Equal(t, "Hello [Sandbox]", readBody(t, resp))

	resp = do(t, http.MethodGet, ts.URL+"/pages/MainPage?meta=1", "", nil)
	decode(t, resp, &p)
	assert.Equal(t, "second", p.ChangeNote)

	resp = do(t, http.MethodGet, ts.URL+"/pages/MainPage/history", "", nil)
	var versions []provider.Page
	decode(t, resp, &versions)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)

	resp = do(t, http.MethodDelete, ts.URL+"/pages/MainPage?version=2", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/pages/MainPage", "", nil)
	assert.Equal(t, "Hello [Sandbox]", readBody(t, resp))

	resp = do(t, http.MethodDelete, ts.URL+"/pages/MainPage", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/pages/MainPage", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrors(t *testing.T) {
	ts := newServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing page", http.MethodGet, "/pages/Nope", "", http.StatusNotFound},
		{"bad version", http.MethodGet, "/pages/Nope?version=x", "", http.StatusBadRequest},
		{"bad since", http.MethodGet, "/pages?since=soon", "", http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/pages/Nope", "", http.StatusNotFound},
		{"attach to missing page", http.MethodPut, "/pages/Nope/attachments/a.txt", "x", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, ts.URL+tt.path, tt.body, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			var body map[string]string
			decode(t, resp, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListAndRefs(t *testing.T) {
	ts := newServer(t, nil)
	do(t, http.MethodPut, ts.URL+"/pages/Alpha", "see [Beta] and [Ghost]", nil)
	do(t, http.MethodPut, ts.URL+"/pages/Beta", "plain", nil)

	resp := do(t, http.MethodGet, ts.URL+"/pages?prefix=al", "", nil)
	var pages []provider.Page
	decode(t, resp, &pages)
	require.Len(t, pages, 1)
	assert.Equal(t, "Alpha", pages[0].Name)

	resp = do(t, http.MethodGet, ts.URL+"/pages/Beta/refs", "", nil)
	var refs struct {
		Referrers []string `json:"referrers"`
		RefersTo  []string `json:"refers_to"`
	}
	decode(t, resp, &refs)
	assert.Equal(t, []string{"Alpha"}, refs.Referrers)
	assert.Empty(t, refs.RefersTo)

	resp = do(t, http.MethodGet, ts.URL+"/refs/uncreated", "", nil)
	var names []string
	decode(t, resp, &names)
	assert.Equal(t, []string{"Ghost"}, names)

	resp = do(t, http.MethodGet, ts.URL+"/refs/unreferenced", "", nil)
	decode(t, resp, &names)
	assert.Equal(t, []string{"Alpha"}, names)
}

func TestAttachments(t *testing.T) {
	cfg := &config.Config{}
	cfg.Attachments.NoCache = `.*\.txt`
	ts := newServer(t, cfg)
	do(t, http.MethodPut, ts.URL+"/pages/Main", "text", nil)

	resp := do(t, http.MethodPut, ts.URL+"/pages/Main/attachments/notes.txt", "v1 data", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPut, ts.URL+"/pages/Main/attachments/notes.txt", "v2 data", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPut, ts.URL+"/pages/Main/attachments/logo.png", "png", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/pages/Main/attachments/notes.txt", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "v2 data", readBody(t, resp))

	resp = do(t, http.MethodGet, ts.URL+"/pages/Main/attachments/notes.txt?version=1", "", nil)
	assert.Equal(t, "v1 data", readBody(t, resp))

	resp = do(t, http.MethodGet, ts.URL+"/pages/Main/attachments/logo.png", "", nil)
	assert.Empty(t, resp.Header.Get("Cache-Control"))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp = do(t, http.MethodGet, ts.URL+"/pages/Main/attachments", "", nil)
	var atts []provider.Attachment
	decode(t, resp, &atts)
	assert.Len(t, atts, 2)
}

func TestEncodedSubPageName(t *testing.T) {
	ts := newServer(t, nil)
	resp := do(t, http.MethodPut, ts.URL+"/pages/Project%2FPlan", "plan", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p provider.Page
	decode(t, resp, &p)
	assert.Equal(t, "Project/Plan", p.Name)

	resp = do(t, http.MethodGet, ts.URL+"/pages/Project%2FPlan", "", nil)
	assert.Equal(t, "plan", readBody(t, resp))
}

func TestMetrics(t *testing.T) {
	ts := newServer(t, nil)
	resp := do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
