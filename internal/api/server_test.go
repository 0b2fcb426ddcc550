package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func newTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "manifest.json", `[{"image":"a.png"},{"image":"b.png"},{"image":"c.png"}]`)
	writeFile(t, root, "sub/registry.jsonl", "{\"status\":\"ok\"}\nnot json\n\n{\"status\":\"error\"}\n")
	writeFile(t, root, "table.csv", "a,b\n1,x\n2,y\n")
	writeFile(t, root, "images/x.png", "PNGDATA")
	writeFile(t, root, ".hidden/secret.json", `[]`)
	writeFile(t, root, "notes.txt", "ignored")

	cfg := DefaultServerConfig()
	cfg.DataRoot = root
	cfg.PageSize = 2
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s.Handler(), root
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCORS(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	rec = do(t, h, http.MethodOptions, "/api/v1/render/pie", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListManifests(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/manifests", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Manifests []ManifestInfo `json:"manifests"`
		Total     int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)

	var names []string
	for _, m := range body.Manifests {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"manifest.json", "sub/registry.jsonl", "table.csv"}, names)
	assert.Equal(t, "jsonl", body.Manifests[1].Format)
}

func TestGetManifest_Paged(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/manifests/manifest.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page ManifestPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageSize)
	assert.Len(t, page.Records, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/manifests/manifest.json?page=2", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Records, 1)
	assert.JSONEq(t, `{"image":"c.png"}`, string(page.Records[0]))

	rec = do(t, h, http.MethodGet, "/api/v1/manifests/manifest.json?page=9", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Records)
}

func TestGetManifest_Formats(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/manifests/sub/registry.jsonl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page ManifestPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	rec = do(t, h, http.MethodGet, "/api/v1/manifests/table.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Records, 2)
	assert.JSONEq(t, `{"a":"1","b":"x"}`, string(page.Records[0]))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/manifests/missing.json", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/manifests/notes.txt", "").Code)
}

func TestGetImage(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/images/images/x.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PNGDATA", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/images/images/missing.png", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/images/images", "").Code)
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()

	p, err := safeJoin(root, "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc", "passwd"), p)

	p, err = safeJoin(root, "a/./b/../c.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "c.png"), p)

	_, err = safeJoin(root, "a\x00b")
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestRenderPie(t *testing.T) {
	h, _ := newTestServer(t)

	body := `{"title":"Share","categories":[{"label":"A","value":3},{"label":"B","value":2},{"label":"C","value":1}],"width":600,"height":400,"background":"#ffffff"}`
	rec := do(t, h, http.MethodPost, "/api/v1/render/pie", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())

	body = `{"categories":[{"label":"A","value":1},{"label":"B","value":1}],"donut":true,"format":"svg","width":400,"height":300}`
	rec = do(t, h, http.MethodPost, "/api/v1/render/pie", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))
}

func TestRenderPie_Concurrent(t *testing.T) {
	h, _ := newTestServer(t)

	body := `{"title":"Regions","subtitle":"Share of total","categories":[{"label":"Asia","value":5},{"label":"Europe","value":3},{"label":"Africa","value":2}],"width":500,"height":350}`
	want := do(t, h, http.MethodPost, "/api/v1/render/pie", body)
	require.Equal(t, http.StatusOK, want.Code, want.Body.String())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/render/pie", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.True(t, bytes.Equal(want.Body.Bytes(), rec.Body.Bytes()), "concurrent render differs")
			}
		}()
	}
	wg.Wait()
}

func TestRenderPie_BadRequests(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"unknown field", `{"slices":[]}`, http.StatusBadRequest},
		{"no categories", `{"categories":[]}`, http.StatusBadRequest},
		{"all zero", `{"categories":[{"label":"A","value":0},{"label":"B","value":0}]}`, http.StatusUnprocessableEntity},
		{"bad format", `{"categories":[{"label":"A","value":1}],"format":"gif"}`, http.StatusBadRequest},
		{"bad background", `{"categories":[{"label":"A","value":1}],"background":"blue"}`, http.StatusBadRequest},
		{"too large", `{"categories":[{"label":"A","value":1}],"width":99999}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/render/pie", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.DataRoot = filepath.Join(t.TempDir(), "missing")
	assert.Error(t, cfg.Validate())

	cfg = DefaultServerConfig()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}
