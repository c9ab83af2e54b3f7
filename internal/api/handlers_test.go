package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjwaters/cineshelf/internal/config"
	"github.com/rjwaters/cineshelf/internal/ffmpeg"
	"github.com/rjwaters/cineshelf/internal/library"
	"github.com/rjwaters/cineshelf/internal/models"
	"github.com/rjwaters/cineshelf/internal/netdrive"
	"github.com/rjwaters/cineshelf/internal/scanner"
)

func newTestServer(t *testing.T, cat *library.Catalog) (*Server, string) {
	t.Helper()
	cfg := &config.Config{Port: 0, JWTSecret: "test-secret"}
	resolver := netdrive.NewResolverWithQuery(func() (map[string]string, error) { return nil, nil })
	sc := scanner.New(resolver, scanner.NewDirCache(nil), scanner.NewPosterCache(), 2)

	srv, err := NewServer(cfg, cat, sc, nil, ffmpeg.NewFFprobe("ffprobe"))
	require.NoError(t, err)

	token, err := srv.tokens.Issue()
	require.NoError(t, err)
	return srv, token
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsOpen(t *testing.T) {
	srv, _ := newTestServer(t, library.NewCatalog())
	rec := doJSON(t, srv, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, token := newTestServer(t, library.NewCatalog())

	rec := doJSON(t, srv, "GET", "/api/v1/groups", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, "GET", "/api/v1/groups", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueToken(t *testing.T) {
	srv, _ := newTestServer(t, library.NewCatalog())

	rec := doJSON(t, srv, "POST", "/api/v1/auth/token", "", map[string]string{"secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, "POST", "/api/v1/auth/token", "", map[string]string{"secret": "test-secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token)
}

func TestListDuplicatesRanked(t *testing.T) {
	cat := library.NewCatalog()
	files := []models.VideoFile{
		{Path: "/a/X.mkv", Dir: "/a", Base: "X", Size: 100},
		{Path: "/b/X.mkv", Dir: "/b", Base: "X", Size: 200},
	}
	cat.ReplaceScan(files, scanner.BuildGroups(files), nil)
	cat.SetProbe("/a/X.mkv", models.ProbeInfo{Width: 1920, Height: 1080})
	cat.SetProbe("/b/X.mkv", models.ProbeInfo{Width: 1280, Height: 720})

	srv, token := newTestServer(t, cat)
	rec := doJSON(t, srv, "GET", "/api/v1/duplicates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Clusters []duplicateCluster `json:"clusters"`
			Total    int                `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "/a/X.mkv", resp.Data.Clusters[0].Keep.Path)
	require.Len(t, resp.Data.Clusters[0].Candidates, 1)
	assert.Equal(t, "/b/X.mkv", resp.Data.Clusters[0].Candidates[0].Path)
}

func TestListDuplicatesBadStrategy(t *testing.T) {
	srv, token := newTestServer(t, library.NewCatalog())
	rec := doJSON(t, srv, "GET", "/api/v1/duplicates?strategy=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDuplicatesRefusesUnknownPath(t *testing.T) {
	srv, token := newTestServer(t, library.NewCatalog())
	rec := doJSON(t, srv, "POST", "/api/v1/duplicates/delete", token,
		map[string][]string{"paths": {"/etc/passwd"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDuplicatesRemovesLibraryFile(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "X.mkv")
	require.NoError(t, os.WriteFile(victim, []byte("x"), 0644))

	cat := library.NewCatalog()
	files := []models.VideoFile{
		{Path: victim, Dir: dir, Base: "X", Size: 1},
		{Path: filepath.Join(dir, "other", "X.mkv"), Dir: filepath.Join(dir, "other"), Base: "X", Size: 2},
	}
	cat.ReplaceScan(files, scanner.BuildGroups(files), nil)

	srv, token := newTestServer(t, cat)
	rec := doJSON(t, srv, "POST", "/api/v1/duplicates/delete", token,
		map[string][]string{"paths": {victim}})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NoFileExists(t, victim)
	remaining, _, _ := cat.Counts()
	assert.Equal(t, 1, remaining)
}

func TestMetadataUpdatePreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "Foo.mkv")
	nfoPath := filepath.Join(dir, "Foo.nfo")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(nfoPath, []byte(
		`<movie><title>Old</title><dateadded>2020-01-01</dateadded></movie>`), 0644))

	cat := library.NewCatalog()
	files := []models.VideoFile{{Path: video, Dir: dir, Base: "Foo", NFOPath: nfoPath}}
	cat.ReplaceScan(files, scanner.BuildGroups(files), nil)

	srv, token := newTestServer(t, cat)
	rec := doJSON(t, srv, "PUT", "/api/v1/metadata", token, map[string]interface{}{
		"path":     video,
		"metadata": map[string]interface{}{"Title": "New"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(nfoPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<title>New</title>")
	assert.Contains(t, string(data), "<dateadded>2020-01-01</dateadded>")

	// The pre-edit sidecar is kept as a backup.
	assert.FileExists(t, nfoPath+".bak")
}

func TestGetMetadataNotFound(t *testing.T) {
	srv, token := newTestServer(t, library.NewCatalog())
	rec := doJSON(t, srv, "GET", "/api/v1/metadata?path=/nope/X.mkv", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A direct sidecar path that does not exist on disk is a 404 too, not a
	// read failure.
	rec = doJSON(t, srv, "GET", "/api/v1/metadata?path="+filepath.Join(t.TempDir(), "X.nfo"), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	cat := library.NewCatalog()
	files := []models.VideoFile{{Path: "/m/A.mkv", Dir: "/m", Base: "A", Size: 7}}
	cat.ReplaceScan(files, scanner.BuildGroups(files), &models.ScanStats{FilesFound: 1, DirsTotal: 1})

	srv, token := newTestServer(t, cat)
	rec := doJSON(t, srv, "GET", "/api/v1/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Data["files"])
	assert.EqualValues(t, 7, resp.Data["total_bytes"])
	assert.Contains(t, resp.Data, "last_scan")
}
