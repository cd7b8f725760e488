package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/iantal/miniapp/internal/config"
	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/github"
	"github.com/iantal/miniapp/internal/service"
	"github.com/iantal/miniapp/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router    *mux.Router
	staticDir string
}

func newTestEnv(t *testing.T, ghURL string, ghCfg config.GitHubConfig) *testEnv {
	t.Helper()
	log := util.NewLogger("error", "text")
	base := t.TempDir()

	store, err := files.NewLocal(log, filepath.Join(base, "projects"), 1024*1024)
	require.NoError(t, err)
	lock, err := files.NewLocker(filepath.Join(base, "locks"), true)
	require.NoError(t, err)

	pm := service.NewProjectManager(log, store, lock)
	exp, err := service.NewExporter(log, pm, store, filepath.Join(base, "exports"))
	require.NoError(t, err)

	gh := github.NewClient(log, ghURL, ghCfg.Token, 5*time.Second)
	activity := service.NoActivity{}
	imp := service.NewImporter(log, pm, store, gh, activity, 1024*1024)
	pub := service.NewPublisher(log, pm, store, gh, activity, ghCfg)

	staticDir := filepath.Join(base, "static")
	require.NoError(t, os.MkdirAll(staticDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.html"), []byte("<html>mini app</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0644))

	projH := NewProjects(log, pm, exp, imp, pub, activity)
	return &testEnv{router: NewRouter(projH, NewStatic(staticDir)), staticDir: staticDir}
}

func (e *testEnv) do(t *testing.T, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, url, rd)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (e *testEnv) createProject(t *testing.T, body interface{}) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/projects", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decodeBody(t, rec, &created)
	return created.ID
}

func TestCreateProject_DefaultScaffold(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})

	rec := env.do(t, http.MethodPost, "/api/projects", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)

	var created map[string]string
	decodeBody(t, rec, &created)
	assert.Regexp(t, `^[0-9a-f]{12}$`, created["id"])
	assert.Equal(t, "project", created["name"])

	rec = env.do(t, http.MethodGet, "/api/projects/"+created["id"]+"/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed FilesResponse
	decodeBody(t, rec, &listed)
	assert.Equal(t, created["id"], listed.Project.ID)
	assert.Equal(t, "project", listed.Project.Name)
	for _, f := range []string{"main.py", "requirements.txt", "ENV_VARS.json", "README.md"} {
		assert.Contains(t, listed.Files, f)
	}
	assert.NotContains(t, listed.Files, "meta.json")
}

func TestCreateProject_EmptyBodyAndName(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})

	rec := env.do(t, http.MethodPost, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/projects", map[string]string{"name": "My <Bot>"})
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]string
	decodeBody(t, rec, &created)
	assert.Equal(t, "My Bot", created["name"])

	rec = env.do(t, http.MethodPost, "/api/projects", "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProjects(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})

	rec := env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	first := env.createProject(t, map[string]string{"name": "first"})
	second := env.createProject(t, map[string]string{"name": "second"})

	rec = env.do(t, http.MethodPost, "/api/projects/"+first+"/file", map[string]string{"path": "main.py", "content": "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]string
	decodeBody(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0]["id"])
	assert.Equal(t, second, list[1]["id"])
	for _, p := range list {
		assert.NotEmpty(t, p["created_at"])
		assert.NotEmpty(t, p["updated_at"])
		assert.NotEmpty(t, p["name"])
	}
}

func TestDeleteProject(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})
	id := env.createProject(t, nil)

	rec := env.do(t, http.MethodDelete, "/api/projects/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/projects/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/projects/"+id+"/files", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var ge GenericError
	decodeBody(t, rec, &ge)
	assert.Equal(t, "NotFound", ge.Code)
}

func TestFileReadWrite(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})
	id := env.createProject(t, nil)

	rec := env.do(t, http.MethodPost, "/api/projects/"+id+"/file", map[string]string{"path": "src/app.py", "content": "print('héllo')\n"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/projects/"+id+"/file?path=src/app.py", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fr FileResponse
	decodeBody(t, rec, &fr)
	assert.Equal(t, "src/app.py", fr.Path)
	assert.Equal(t, "print('héllo')\n", fr.Content)
}

func TestFileErrors(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})
	id := env.createProject(t, nil)

	rec := env.do(t, http.MethodPost, "/api/projects/"+id+"/file", map[string]string{"path": "pkg.py/mod.py", "content": "x"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
		status int
		code   string
	}{
		{"unsupported type", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "x.exe", "content": "a"}, http.StatusBadRequest, "UnsupportedType"},
		{"traversal write", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "../x.py", "content": "a"}, http.StatusBadRequest, "InvalidPath"},
		{"missing path", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"content": "a"}, http.StatusBadRequest, "MissingInput"},
		{"metadata write", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "meta.json", "content": "{}"}, http.StatusBadRequest, "InvalidPath"},
		{"metadata prefix write", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "meta.json/x.py", "content": "a"}, http.StatusBadRequest, "InvalidPath"},
		{"trailing slash write", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "src/", "content": "a"}, http.StatusBadRequest, "InvalidPath"},
		{"nul byte write", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "a\x00b.py", "content": "a"}, http.StatusBadRequest, "InvalidPath"},
		{"directory write", http.MethodPost, "/api/projects/" + id + "/file", map[string]string{"path": "pkg.py", "content": "a"}, http.StatusBadRequest, "InvalidPath"},
		{"missing file", http.MethodGet, "/api/projects/" + id + "/file?path=nope.py", nil, http.StatusNotFound, "NotFound"},
		{"traversal read", http.MethodGet, "/api/projects/" + id + "/file?path=../../etc/passwd", nil, http.StatusBadRequest, "InvalidPath"},
		{"unknown project", http.MethodGet, "/api/projects/0123456789ab/file?path=main.py", nil, http.StatusNotFound, "NotFound"},
		{"unknown project write", http.MethodPost, "/api/projects/0123456789ab/file", map[string]string{"path": "a.py"}, http.StatusNotFound, "NotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.url, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var ge GenericError
			decodeBody(t, rec, &ge)
			assert.Equal(t, tt.code, ge.Code)
			assert.NotEmpty(t, ge.Message)
		})
	}
}

func multipartUpload(t *testing.T, path, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if path != "" {
		require.NoError(t, mw.WriteField("path", path))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})
	id := env.createProject(t, nil)

	upload := func(path, filename string, content []byte) *httptest.ResponseRecorder {
		body, ct := multipartUpload(t, path, filename, content)
		req := httptest.NewRequest(http.MethodPost, "/api/projects/"+id+"/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("", "logo.png", []byte{0x89, 'P', 'N', 'G'})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true,"path":"logo.png"}`, rec.Body.String())

	rec = upload("assets/icon.bin", "whatever.bin", []byte{1, 2, 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"path":"assets/icon.bin"}`, rec.Body.String())

	rec = upload("only-path.bin", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var ge GenericError
	decodeBody(t, rec, &ge)
	assert.Equal(t, "MissingInput", ge.Code)

	rec = upload("../escape.bin", "x.bin", []byte{1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// not multipart at all
	rec = env.do(t, http.MethodPost, "/api/projects/"+id+"/upload", map[string]string{"path": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportZip(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})
	id := env.createProject(t, nil)

	rec := env.do(t, http.MethodPost, "/api/projects/"+id+"/file", map[string]string{"path": "lib/util.py", "content": "pass\n"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/projects/"+id+"/files", nil)
	var listed FilesResponse
	decodeBody(t, rec, &listed)

	for i := 0; i < 2; i++ {
		rec = env.do(t, http.MethodGet, "/api/projects/"+id+"/export.zip", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), id+".zip")

		b := rec.Body.Bytes()
		zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
		require.NoError(t, err)
		names := []string{}
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		sort.Strings(names)
		assert.Equal(t, listed.Files, names)
	}

	rec = env.do(t, http.MethodGet, "/api/projects/0123456789ab/export.zip", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivity_WithoutDatabase(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})
	id := env.createProject(t, nil)

	rec := env.do(t, http.MethodGet, "/api/projects/"+id+"/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/projects/0123456789ab/activity", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticRoutes(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", config.GitHubConfig{})

	rec := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OK")

	rec = env.do(t, http.MethodGet, "/app", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mini app")

	rec = env.do(t, http.MethodGet, "/static/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/static/missing.css", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "miniapp_http_requests_total")
}
