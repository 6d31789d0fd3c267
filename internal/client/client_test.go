package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/playlist"
	"github.com/derWhity/bhajanbook/internal/repos"
	"github.com/derWhity/bhajanbook/internal/repos/snapshot/inmem"
)

var (
	_ catalog.Store  = (*Client)(nil)
	_ playlist.Store = (*Client)(nil)
)

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "data": data})
}

func writeErr(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": false, "error": code, "errorMessage": message, "errorDetails": details,
	})
}

func newClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 2*time.Second, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	return c, srv
}

func TestNewAddsScheme(t *testing.T) {
	c, err := New("localhost:8080/book", time.Second, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/book/api/songs/a%20b", c.target(nil, "songs", "a b").String())
}

func TestErrorMapping(t *testing.T) {
	r := mux.NewRouter()
	r.Path("/api/songs/missing").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "SONG_NOT_FOUND", "Song not found", nil)
	})
	r.Path("/api/songs/broken").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusServiceUnavailable, "STORAGE_QUERY_FAILED", "database is locked", nil)
	})
	r.Path("/api/songs/garbage").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	})
	r.Methods(http.MethodPost).Path("/api/songs").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusBadRequest, "REQUIRED_FIELD_MISSING", "Field 'title' is required",
			map[string]string{"field": "title"})
	})
	c, srv := newClient(t, r)
	ctx := context.Background()

	_, err := c.GetSong(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, repos.ErrEntityNotExisting, errors.Cause(err))
	assert.Contains(t, err.Error(), "Song not found")

	_, err = c.GetSong(ctx, "broken")
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))

	_, err = c.GetSong(ctx, "garbage")
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))

	_, err = c.CreateSong(ctx, &models.Song{LocalTitle: "x", Body: "x"})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", httpErr.Code)
	assert.JSONEq(t, `{"field":"title"}`, string(httpErr.Details))
	assert.False(t, repos.IsUnavailable(err))

	srv.Close()
	_, err = c.GetSong(ctx, "missing")
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))
}

func TestSearchAndFind(t *testing.T) {
	var source string
	var lastQuery string
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/api/songs").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		lastQuery = req.URL.RawQuery
		w.Header().Set(catalogSourceHeader, source)
		if source == string(catalog.StatusUnavailable) {
			writeData(w, map[string]interface{}{"songs": []models.Song{}, "status": source})
			return
		}
		writeData(w, map[string]interface{}{
			"songs":  []models.Song{{ID: "k", Title: "Krishna Bhajan"}},
			"status": source,
		})
	})
	c, _ := newClient(t, r)
	ctx := context.Background()

	source = "live"
	res, err := c.Search(ctx, filter.New("krishna", "all"), true)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusLive, res.Status)
	require.Len(t, res.Songs, 1)
	assert.Contains(t, lastQuery, "q=krishna")
	assert.Contains(t, lastQuery, "full=true")

	songs, err := c.Find(ctx, filter.All(), false)
	require.NoError(t, err)
	assert.Len(t, songs, 1)
	assert.NotContains(t, lastQuery, "full")

	// The server's own snapshot is stale data and must not pass as a live store answer
	source = "offline"
	res, err = c.Search(ctx, filter.All(), false)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusOffline, res.Status)
	_, err = c.Find(ctx, filter.All(), false)
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))

	source = "unavailable"
	_, err = c.Find(ctx, filter.All(), false)
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))

	res, err = c.Search(ctx, filter.All(), false)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusUnavailable, res.Status)
}

// sessionServer keeps a single session in memory and serves the playlist routes
type sessionServer struct {
	mtx     sync.Mutex
	session models.Session
	fail    bool
}

func (s *sessionServer) handler() http.Handler {
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/api/sessions/{id}").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		if mux.Vars(req)["id"] != s.session.ID {
			writeErr(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
			return
		}
		writeData(w, s.session)
	})
	r.Methods(http.MethodPut).Path("/api/sessions/{id}/entries").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		if s.fail {
			writeErr(w, http.StatusInternalServerError, "STORAGE_QUERY_FAILED", "disk full", nil)
			return
		}
		var body struct {
			Entries []models.PlaylistEntry `json:"entries"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeErr(w, http.StatusBadRequest, "ILLEGAL_JSON_REQUEST", err.Error(), nil)
			return
		}
		s.session.Entries = playlist.Renumber(body.Entries)
		writeData(w, s.session)
	})
	return r
}

func TestPlaylistStore(t *testing.T) {
	srv := &sessionServer{session: models.Session{ID: "s1", GatheringID: "g", Status: models.SessionUpcoming}}
	c, _ := newClient(t, srv.handler())
	ctx := context.Background()

	_, err := c.FindByID(ctx, "nope")
	assert.Equal(t, repos.ErrEntityNotExisting, errors.Cause(err))

	stored, err := c.UpdateEntries(ctx, "s1", []models.PlaylistEntry{
		{ID: "e1", SongID: "a", Title: "Arti"},
		{ID: "e2", SongID: "b", Title: "Bhajan"},
	})
	require.NoError(t, err)
	require.Len(t, stored.Entries, 2)
	assert.Equal(t, 2, stored.Entries[1].Position)

	stored, err = c.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored.Entries, 2)
	assert.Equal(t, "b", stored.Entries[1].SongID)

	_, err = c.UpdateEntries(ctx, "s1", nil)
	require.NoError(t, err)
	stored, err = c.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, stored.Entries)
}

func TestPlaylistManagerReconcilesWithServer(t *testing.T) {
	srv := &sessionServer{session: models.Session{
		ID:      "s1",
		Status:  models.SessionUpcoming,
		Entries: []models.PlaylistEntry{{ID: "e1", SongID: "a", Title: "Arti", Position: 1}},
	}}
	c, _ := newClient(t, srv.handler())
	ctx := context.Background()

	var outcomes []playlist.Outcome
	var mtx sync.Mutex
	m := playlist.New(c, logrus.NewEntry(logrus.New()), playlist.WithNotify(func(o playlist.Outcome) {
		mtx.Lock()
		defer mtx.Unlock()
		outcomes = append(outcomes, o)
	}))

	current, err := c.FindByID(ctx, "s1")
	require.NoError(t, err)
	srv.mtx.Lock()
	srv.fail = true
	srv.mtx.Unlock()

	optimistic, err := m.AddEntry(ctx, current, &models.Song{ID: "b", Title: "Bhajan"}, "")
	require.NoError(t, err)
	assert.Len(t, optimistic.Entries, 2)
	m.Wait()

	mtx.Lock()
	defer mtx.Unlock()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Reconciled)
	assert.Error(t, outcomes[0].Err)
	assert.Len(t, outcomes[0].Session.Entries, 1)
	local, ok := m.Current("s1")
	require.True(t, ok)
	assert.Len(t, local.Entries, 1)
}

// offlineServer answers every search from its own snapshot
func offlineServer() http.Handler {
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/api/songs").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(catalogSourceHeader, string(catalog.StatusOffline))
		writeData(w, map[string]interface{}{
			"songs":   []models.Song{{ID: "old", Title: "Old Bhajan", Body: "stale"}},
			"status":  catalog.StatusOffline,
			"takenAt": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	})
	return r
}

func TestDownloadRefusesServerSnapshot(t *testing.T) {
	c, _ := newClient(t, offlineServer())
	snapshots := inmem.New()
	defer snapshots.Close()
	prior := &models.Snapshot{
		Songs:   []models.Song{{ID: "k", Title: "Krishna Bhajan", Body: "Govinda"}},
		TakenAt: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, snapshots.Replace(prior))
	cat := catalog.New(c, snapshots, logrus.NewEntry(logrus.New()))

	n, err := cat.Download(context.Background())
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))
	assert.Zero(t, n)

	stored, err := snapshots.Load()
	require.NoError(t, err)
	assert.Equal(t, prior.TakenAt, stored.TakenAt)
	require.Len(t, stored.Songs, 1)
	assert.Equal(t, "k", stored.Songs[0].ID)
}

func TestQueryDegradesOnServerSnapshot(t *testing.T) {
	c, _ := newClient(t, offlineServer())
	snapshots := inmem.New()
	defer snapshots.Close()
	cat := catalog.New(c, snapshots, logrus.NewEntry(logrus.New()))

	res := cat.Query(context.Background(), "", models.CategoryAll, false)
	assert.Equal(t, catalog.StatusUnavailable, res.Status)
	assert.True(t, res.Degraded())
	assert.True(t, res.Empty())
	assert.True(t, cat.Offline())

	require.NoError(t, snapshots.Replace(&models.Snapshot{
		Songs:   []models.Song{{ID: "k", Title: "Krishna Bhajan"}},
		TakenAt: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	}))
	res = cat.Query(context.Background(), "krishna", models.CategoryAll, false)
	assert.Equal(t, catalog.StatusOffline, res.Status)
	require.Len(t, res.Songs, 1)
	assert.Equal(t, "k", res.Songs[0].ID)
}
