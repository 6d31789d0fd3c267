package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bhajanbook "github.com/derWhity/bhajanbook/internal"
	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/database"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/importer"
	"github.com/derWhity/bhajanbook/internal/migrate"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
	gatheringrepo "github.com/derWhity/bhajanbook/internal/repos/gathering/sqlite"
	sessionrepo "github.com/derWhity/bhajanbook/internal/repos/session/sqlite"
	"github.com/derWhity/bhajanbook/internal/repos/snapshot/inmem"
	songrepo "github.com/derWhity/bhajanbook/internal/repos/song/sqlite"
)

type noText struct{}

// switchableStore lets the server's catalog go down while the rest of the server keeps working
type switchableStore struct {
	songs *songrepo.SongRepo
	down  atomic.Bool
}

func (s *switchableStore) Find(ctx context.Context, f filter.Filter, includeBody bool) ([]models.Song, error) {
	if s.down.Load() {
		return nil, repos.Unavailable(fmt.Errorf("database is locked"), "Find")
	}
	return s.songs.Find(ctx, f, includeBody)
}

func (noText) Extract(context.Context, io.Reader, string) (string, error) {
	return "", nil
}

// testServer runs a complete BhajanBook server on an in-memory database
type testServer struct {
	*httptest.Server
	songs       *songrepo.SongRepo
	catalog     *switchableStore
	snapshotDir string
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.NewEntry(logrus.New())
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, logger))

	songs := songrepo.New(db, logger)
	store := &switchableStore{songs: songs}
	gatherings := gatheringrepo.New(db, logger)
	snapshots := inmem.New()
	t.Cleanup(func() { snapshots.Close() })
	conf := bhajanbook.NewConfigService(filepath.Join(t.TempDir(), "config.json"))
	imp := importer.New(songs, t.TempDir(), logger)
	t.Cleanup(imp.StopAll)

	handler := bhajanbook.MakeHTTPHandler(
		bhajanbook.NewSongService(songs, catalog.New(store, snapshots, logger), conf, logger),
		bhajanbook.NewGatheringService(gatherings, logger),
		bhajanbook.NewSessionService(sessionrepo.New(db, logger), gatherings, songs, conf, logger),
		bhajanbook.NewImportService(imp, logger),
		bhajanbook.NewOCRService(noText{}, logger),
		logger,
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	for _, s := range []models.Song{
		{ID: "a", Title: "Arti", LocalTitle: "આરતી", Category: "mangalacharan", Body: "Jay sadguru"},
		{ID: "b", Title: "Bhajan", LocalTitle: "ભજન", Category: "sant-kirtan", Body: "Govinda"},
		{ID: "c", Title: "Krishna Bhajan", LocalTitle: "કૃષ્ણ ભજન", Category: models.CategoryCommunity, Body: "Gopala"},
	} {
		s.LyricsFile = s.ID + ".html"
		require.NoError(t, songs.Create(context.Background(), &s))
	}
	return &testServer{Server: srv, songs: songs, catalog: store, snapshotDir: filepath.Join(t.TempDir(), "snapshot")}
}

// run executes bhajanctl against the server and returns stdout and stderr
func (ts *testServer) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--server", ts.URL, "--snapshot-dir", ts.snapshotDir, "--timeout", "2s"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func (ts *testServer) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := ts.run(t, args...)
	require.NoError(t, err, stderr)
	return out
}

func TestSearchFallsBackToDownloadedSnapshot(t *testing.T) {
	ts := startServer(t)

	out := ts.mustRun(t, "search", "bhajan")
	assert.Contains(t, out, "Krishna Bhajan")
	assert.Contains(t, out, "ભજન")
	assert.NotContains(t, out, "Arti")

	out = ts.mustRun(t, "search", "--category", "mangalacharan", "--full")
	assert.Contains(t, out, "Jay sadguru")

	out = ts.mustRun(t, "download")
	assert.Equal(t, "Stored 3 songs in the offline snapshot\n", out)

	ts.Close()
	out, stderr, err := ts.run(t, "search", "gopala")
	require.NoError(t, err)
	assert.Contains(t, stderr, "offline snapshot")
	assert.Contains(t, out, "Krishna Bhajan")
}

func TestSearchWithoutServerOrSnapshot(t *testing.T) {
	ts := startServer(t)
	ts.Close()
	_, stderr, err := ts.run(t, "search", "arti")
	require.Error(t, err)
	assert.Contains(t, stderr, "no offline snapshot")
}

func TestPlaylistEditing(t *testing.T) {
	ts := startServer(t)

	var gatheringID, sessionID string
	out := ts.mustRun(t, "gathering", "create", "Diwali Satsang", "--location", "Hall")
	_, err := fmt.Sscanf(out, "Created gathering %s", &gatheringID)
	require.NoError(t, err)

	out = ts.mustRun(t, "session", "create", gatheringID, "--festival", "2024-11-01", "--notes", "Annakut")
	_, err = fmt.Sscanf(out, "Created session %s on", &sessionID)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-11-03")

	for _, song := range []string{"a", "b", "c"} {
		ts.mustRun(t, "session", "add", sessionID, song)
	}
	out = ts.mustRun(t, "session", "reorder", sessionID, "3", "1", "2")
	krishna, arti, bhajan := strings.Index(out, "Krishna Bhajan"), strings.Index(out, "Arti"), strings.Index(out, "  Bhajan ")
	assert.True(t, krishna < arti && arti < bhajan, out)

	out = ts.mustRun(t, "session", "remove", sessionID, "2")
	assert.NotContains(t, out, "Arti")

	_, _, err = ts.run(t, "session", "remove", sessionID, "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no position")

	_, _, err = ts.run(t, "session", "reorder", sessionID, "1", "1")
	require.Error(t, err)

	out = ts.mustRun(t, "session", "show", sessionID)
	assert.Contains(t, out, "Notes: Annakut")
	assert.Contains(t, out, "1  Krishna Bhajan")

	out = ts.mustRun(t, "session", "status", sessionID, "completed")
	assert.Contains(t, out, "COMPLETED")

	out = ts.mustRun(t, "session", "list", gatheringID)
	assert.Contains(t, out, sessionID)
}

func TestSuggest(t *testing.T) {
	ts := startServer(t)
	assert.Equal(t, "2024-10-27 (Sunday)\n", ts.mustRun(t, "suggest", "2024-10-30"))
	_, _, err := ts.run(t, "suggest", "30.10.2024")
	assert.Error(t, err)
}

func TestSongAndCategoryCommands(t *testing.T) {
	ts := startServer(t)

	var id string
	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader("Hari <b>Om</b><br/>Tat Sat"))
	root.SetArgs([]string{"--server", ts.URL, "song", "add", "--title", "Hari Om", "--local-title", "હરિ ૐ"})
	require.NoError(t, root.Execute())
	_, err := fmt.Sscanf(stdout.String(), "Created song %s in category", &id)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), models.CategoryCommunity)

	stored, err := ts.songs.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Hari Om\nTat Sat", stored.Body)

	_, _, err = ts.run(t, "song", "delete", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
	ts.mustRun(t, "song", "delete", id)

	ts.mustRun(t, "category", "add", "Dhun")
	assert.Contains(t, ts.mustRun(t, "category", "list"), "dhun")
}

func TestSearchTreatsServerSnapshotAsStale(t *testing.T) {
	ts := startServer(t)
	ts.mustRun(t, "download")
	ts.mustRun(t, "download", "--server-side")
	require.NoError(t, ts.songs.Create(context.Background(), &models.Song{
		ID: "d", Title: "Dhun", LocalTitle: "ધૂન", Category: models.CategoryCommunity, Body: "Swaminarayan",
		LyricsFile: "d.html",
	}))
	ts.catalog.down.Store(true)

	// The server still answers from its own snapshot, which must not be taken as live
	out, stderr, err := ts.run(t, "search")
	require.NoError(t, err)
	assert.Contains(t, stderr, "showing the offline snapshot")
	assert.Contains(t, out, "Krishna Bhajan")

	_, _, err = ts.run(t, "download")
	require.Error(t, err)

	ts.catalog.down.Store(false)
	out = ts.mustRun(t, "search", "dhun")
	assert.Contains(t, out, "Dhun")
	ts.catalog.down.Store(true)
	out, stderr, err = ts.run(t, "search", "dhun")
	require.NoError(t, err)
	assert.Contains(t, stderr, "showing the offline snapshot")
	assert.Equal(t, "No songs found\n", out)
}

func TestSongEdit(t *testing.T) {
	ts := startServer(t)

	out := ts.mustRun(t, "song", "edit", "c", "--title", "Krishna Bhajan (short)", "--keyword", "gokul")
	assert.Equal(t, "Updated song c (Krishna Bhajan (short))\n", out)
	stored, err := ts.songs.GetByID(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "Krishna Bhajan (short)", stored.Title)
	assert.Equal(t, []string{"gokul"}, stored.Keywords)
	assert.Equal(t, "Gopala", stored.Body)

	body := filepath.Join(t.TempDir(), "body.html")
	require.NoError(t, os.WriteFile(body, []byte("Govinda<br>Gopala"), 0640))
	ts.mustRun(t, "song", "edit", "c", "--body-file", body)
	stored, err = ts.songs.GetByID(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "Govinda\nGopala", stored.Body)
	assert.Equal(t, "Krishna Bhajan (short)", stored.Title)

	_, _, err = ts.run(t, "song", "edit", "a", "--title", "Arti")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")

	_, _, err = ts.run(t, "song", "edit", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}
