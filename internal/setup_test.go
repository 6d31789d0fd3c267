package internal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/database"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/importer"
	"github.com/derWhity/bhajanbook/internal/migrate"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/ocr"
	"github.com/derWhity/bhajanbook/internal/repos"
	gatheringrepo "github.com/derWhity/bhajanbook/internal/repos/gathering/sqlite"
	sessionrepo "github.com/derWhity/bhajanbook/internal/repos/session/sqlite"
	"github.com/derWhity/bhajanbook/internal/repos/snapshot/inmem"
	songrepo "github.com/derWhity/bhajanbook/internal/repos/song/sqlite"
)

// testEnv is a complete service stack on top of an in-memory database
type testEnv struct {
	ctx        context.Context
	logger     *logrus.Entry
	songRepo   *songrepo.SongRepo
	gathRepo   *gatheringrepo.GatheringRepo
	snapshots  *inmem.SnapshotRepo
	config     ConfigService
	extractor  *fakeExtractor
	importRoot string
	songs      SongService
	gatherings GatheringService
	sessions   SessionService
	imports    ImportService
	ocr        OCRService
}

// unreachableStore is a catalog store that always fails
type unreachableStore struct{}

func (unreachableStore) Find(context.Context, filter.Filter, bool) ([]models.Song, error) {
	return nil, repos.Unavailable(fmt.Errorf("connection refused"), "Find")
}

// fakeExtractor records the last call and returns a fixed answer
type fakeExtractor struct {
	text     string
	err      error
	lastHint string
	lastSize int
}

func (f *fakeExtractor) Extract(_ context.Context, image io.Reader, hint string) (string, error) {
	data, _ := io.ReadAll(image)
	f.lastSize = len(data)
	f.lastHint = hint
	return f.text, f.err
}

var _ ocr.Extractor = (*fakeExtractor)(nil)

// setupEnv builds the service stack. If store is nil, the catalog is served by the song repository
func setupEnv(t *testing.T, store catalog.Store) *testEnv {
	t.Helper()
	logger := logrus.NewEntry(logrus.New())
	ctx := ctxhelper.WithLogger(context.Background(), logger)
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, logger))

	env := &testEnv{
		ctx:        ctx,
		logger:     logger,
		songRepo:   songrepo.New(db, logger),
		gathRepo:   gatheringrepo.New(db, logger),
		snapshots:  inmem.New(),
		config:     NewConfigService(filepath.Join(t.TempDir(), "config.json")),
		extractor:  &fakeExtractor{},
		importRoot: t.TempDir(),
	}
	t.Cleanup(func() { env.snapshots.Close() })
	sessRepo := sessionrepo.New(db, logger)
	if store == nil {
		store = env.songRepo
	}
	cat := catalog.New(store, env.snapshots, logger)
	imp := importer.New(env.songRepo, env.importRoot, logger)
	t.Cleanup(imp.StopAll)

	conf := env.config.GetConfig(ctx)
	require.NoError(t, SeedGatherings(ctx, env.gathRepo, conf.SeedGatherings, logger))

	env.songs = NewSongService(env.songRepo, cat, env.config, logger)
	env.gatherings = NewGatheringService(env.gathRepo, logger)
	env.sessions = NewSessionService(sessRepo, env.gathRepo, env.songRepo, env.config, logger)
	env.imports = NewImportService(imp, logger)
	env.ocr = NewOCRService(env.extractor, logger)
	return env
}

// addSong stores a song directly in the repository
func (env *testEnv) addSong(t *testing.T, id, title, category string) *models.Song {
	t.Helper()
	s := &models.Song{
		ID:         id,
		Title:      title,
		LocalTitle: title,
		Category:   category,
		Body:       title + " body",
		LyricsFile: id + ".html",
	}
	require.NoError(t, env.songRepo.Create(env.ctx, s))
	return s
}

// assertHTTPError checks that err is an HTTPError with the given status and code
func assertHTTPError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var he *HTTPError
	require.True(t, errors.As(err, &he), "expected an HTTPError, got %v", err)
	assert.Equal(t, status, he.Status())
	assert.Equal(t, code, he.ErrorCode())
}
