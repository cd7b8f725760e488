package service

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*ProjectManager, *files.Local) {
	t.Helper()
	log := util.NewLogger("error", "text")
	store, err := files.NewLocal(log, t.TempDir(), 1024*1024)
	require.NoError(t, err)
	lock, err := files.NewLocker("", false)
	require.NoError(t, err)

	pm := NewProjectManager(log, store, lock)
	pm.now = func() time.Time { return fixedNow }
	return pm, store
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	var nf *domain.ErrNotFound
	assert.True(t, xerrors.As(err, &nf), "expected NotFound, got %v", err)
}

func TestNewProjectID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewProjectID()
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{12}$`), id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "project"},
		{"   ", "project"},
		{"My App", "My App"},
		{"weird/<name>!", "weirdname"},
		{"v1.0_final-draft", "v1.0_final-draft"},
		{"émoji 🚀 bot", "moji  bot"},
		{strings.Repeat("a", 100), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestCreate_WritesScaffoldAndMetadata(t *testing.T) {
	pm, store := newTestManager(t)

	p, err := pm.Create("")
	require.NoError(t, err)
	assert.Equal(t, "project", p.Name)
	assert.True(t, files.ValidID(p.ID))

	meta, paths, err := pm.ListFiles(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ENV_VARS.json", "README.md", "main.py", "requirements.txt"}, paths)
	assert.Equal(t, p.ID, meta.ID)
	assert.Equal(t, meta.CreatedAt, meta.UpdatedAt)

	_, err = os.Stat(filepath.Join(store.ProjectPath(p.ID), files.MetaFile))
	assert.NoError(t, err)
}

func TestCreateThenWrite_AdvancesUpdatedAt(t *testing.T) {
	pm, _ := newTestManager(t)

	p, err := pm.Create("demo")
	require.NoError(t, err)

	list, err := pm.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, list[0].CreatedAt, list[0].UpdatedAt)

	// the clock has not moved, the timestamp must still advance
	require.NoError(t, pm.WriteFile(p.ID, "main.py", "print('hi')\n"))
	m, err := pm.Get(p.ID)
	require.NoError(t, err)
	assert.Greater(t, m.UpdatedAt, m.CreatedAt)
	assert.Equal(t, list[0].CreatedAt, m.CreatedAt)

	prev := m.UpdatedAt
	pm.now = func() time.Time { return fixedNow.Add(time.Hour) }
	require.NoError(t, pm.WriteFile(p.ID, "main.py", "print('again')\n"))
	m, err = pm.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatTime(fixedNow.Add(time.Hour)), m.UpdatedAt)
	assert.Greater(t, m.UpdatedAt, prev)
}

func TestList_OrdersByUpdatedDescEmptyLast(t *testing.T) {
	pm, store := newTestManager(t)

	a, err := pm.Create("a")
	require.NoError(t, err)
	pm.now = func() time.Time { return fixedNow.Add(time.Minute) }
	b, err := pm.Create("b")
	require.NoError(t, err)

	c, err := pm.Create("c")
	require.NoError(t, err)
	require.NoError(t, store.WriteMeta(c.ID, domain.Metadata{Name: "c"}))

	pm.now = func() time.Time { return fixedNow.Add(time.Hour) }
	require.NoError(t, pm.WriteFile(a.ID, "notes.md", "x"))

	list, err := pm.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Empty(t, list[2].UpdatedAt)
}

func TestDelete(t *testing.T) {
	pm, store := newTestManager(t)

	p, err := pm.Create("gone")
	require.NoError(t, err)
	require.NoError(t, pm.WriteFile(p.ID, "deep/nested/dir/file.txt", "x"))

	require.NoError(t, pm.Delete(p.ID))
	_, err = os.Stat(store.ProjectPath(p.ID))
	assert.True(t, os.IsNotExist(err))

	_, _, err = pm.ListFiles(p.ID)
	assertNotFound(t, err)
	assertNotFound(t, pm.Delete(p.ID))
}

func TestUnknownProjectIsNotFound(t *testing.T) {
	pm, _ := newTestManager(t)

	_, _, err := pm.ListFiles("0123456789ab")
	assertNotFound(t, err)
	_, err = pm.ReadFile("0123456789ab", "main.py")
	assertNotFound(t, err)
	assertNotFound(t, pm.WriteFile("0123456789ab", "main.py", ""))
	_, err = pm.Upload("0123456789ab", "a.bin", "", strings.NewReader("x"))
	assertNotFound(t, err)
	assertNotFound(t, pm.Delete("../../etc"))
}

func TestWriteThenRead_RoundTrip(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("rt")
	require.NoError(t, err)

	contents := []string{"", "hello\n", "ünïcødé ✓ 日本語\r\n", "\ufeffbom first"}
	for i, c := range contents {
		path := "src/file" + string(rune('a'+i)) + ".txt"
		require.NoError(t, pm.WriteFile(p.ID, path, c))
		got, err := pm.ReadFile(p.ID, path)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestReadFile_LossyDecoding(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("bin")
	require.NoError(t, err)

	stored, err := pm.Upload(p.ID, "blob.dat", "", bytes.NewReader([]byte{'o', 'k', 0xff, 0xfe, '!'}))
	require.NoError(t, err)

	got, err := pm.ReadFile(p.ID, stored)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "ok"))
	assert.True(t, strings.HasSuffix(got, "!"))
	assert.Contains(t, got, "\ufffd")
}

func TestReadFile_Errors(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("errs")
	require.NoError(t, err)

	_, err = pm.ReadFile(p.ID, "missing.py")
	assertNotFound(t, err)

	_, err = pm.ReadFile(p.ID, "../../etc/passwd")
	var ip *domain.ErrInvalidPath
	assert.True(t, xerrors.As(err, &ip))

	_, err = pm.ReadFile(p.ID, "meta.json")
	assert.True(t, xerrors.As(err, &ip))
}

func TestWriteFile_TypeCheck(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("types")
	require.NoError(t, err)

	var ut *domain.ErrUnsupportedType
	assert.True(t, xerrors.As(pm.WriteFile(p.ID, "x.exe", "a"), &ut))
	assert.True(t, xerrors.As(pm.WriteFile(p.ID, "noext", "a"), &ut))

	for _, ok := range []string{"bin/x.exe", "Dockerfile", ".gitignore", "style.CSS", "config.yaml", "dir/noext"} {
		assert.NoError(t, pm.WriteFile(p.ID, ok, "a"), ok)
	}
}

func TestWriteFile_PathErrors(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("paths")
	require.NoError(t, err)

	var mi *domain.ErrMissingInput
	assert.True(t, xerrors.As(pm.WriteFile(p.ID, "", "a"), &mi))

	var ip *domain.ErrInvalidPath
	assert.True(t, xerrors.As(pm.WriteFile(p.ID, "../evil.py", "a"), &ip))
	assert.True(t, xerrors.As(pm.WriteFile(p.ID, "/tmp/evil.py", "a"), &ip))
}

func TestUpload(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("up")
	require.NoError(t, err)

	stored, err := pm.Upload(p.ID, "", "C:\\Users\\me\\logo.png", bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}))
	require.NoError(t, err)
	assert.Equal(t, "logo.png", stored)

	stored, err = pm.Upload(p.ID, "assets/img/logo.png", "ignored.png", bytes.NewReader([]byte{1}))
	require.NoError(t, err)
	assert.Equal(t, "assets/img/logo.png", stored)

	_, paths, err := pm.ListFiles(p.ID)
	require.NoError(t, err)
	assert.Contains(t, paths, "logo.png")
	assert.Contains(t, paths, "assets/img/logo.png")

	m, err := pm.Get(p.ID)
	require.NoError(t, err)
	assert.Greater(t, m.UpdatedAt, m.CreatedAt)
}

func TestUpload_Errors(t *testing.T) {
	pm, _ := newTestManager(t)
	p, err := pm.Create("up")
	require.NoError(t, err)

	var mi *domain.ErrMissingInput
	_, err = pm.Upload(p.ID, "a.bin", "a.bin", nil)
	assert.True(t, xerrors.As(err, &mi))

	_, err = pm.Upload(p.ID, "", "", strings.NewReader("x"))
	assert.True(t, xerrors.As(err, &mi))

	var ip *domain.ErrInvalidPath
	_, err = pm.Upload(p.ID, "../escape.bin", "", strings.NewReader("x"))
	assert.True(t, xerrors.As(err, &ip))
}
