package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
	"github.com/derWhity/bhajanbook/internal/repos/snapshot/inmem"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Find(ctx context.Context, f filter.Filter, includeBody bool) ([]models.Song, error) {
	args := m.Called(ctx, f, includeBody)
	songs, _ := args.Get(0).([]models.Song)
	return songs, args.Error(1)
}

// failingSnapshots is a snapshot store that can neither read nor write
type failingSnapshots struct{}

func (failingSnapshots) Replace(*models.Snapshot) error  { return fmt.Errorf("disk full") }
func (failingSnapshots) Load() (*models.Snapshot, error) { return nil, fmt.Errorf("corrupt") }
func (failingSnapshots) Exists() bool                    { return true }

func testCatalog(t *testing.T, store Store) (*Catalog, *inmem.SnapshotRepo) {
	t.Helper()
	snaps := inmem.New()
	t.Cleanup(func() { snaps.Close() })
	return New(store, snaps, logrus.NewEntry(logrus.New())), snaps
}

func scenarioSongs() []models.Song {
	return []models.Song{
		{ID: "2", Title: "Krishna Bhajan", LocalTitle: "કૃષ્ણ ભજન", Category: models.CategoryCommunity, Body: "Govinda"},
		{ID: "1", Title: "Jamo Thal Jivan", LocalTitle: "જમો થાળ", Category: "mangalacharan", Body: "Jamo thal"},
	}
}

func titles(songs []models.Song) []string {
	ret := []string{}
	for _, s := range songs {
		ret = append(ret, s.Title)
	}
	return ret
}

func TestLiveQuery(t *testing.T) {
	store := new(mockStore)
	c, _ := testCatalog(t, store)
	f := filter.New("", "all")
	store.On("Find", mock.Anything, f, false).Return(scenarioSongs(), nil)

	res := c.Query(context.Background(), "", "", false)
	assert.Equal(t, StatusLive, res.Status)
	assert.False(t, res.Degraded())
	assert.Equal(t, []string{"Jamo Thal Jivan", "Krishna Bhajan"}, titles(res.Songs))
	for _, s := range res.Songs {
		assert.Empty(t, s.Body)
	}
	assert.False(t, c.Offline())
	store.AssertExpectations(t)
}

func TestUnavailableWithoutSnapshot(t *testing.T) {
	store := new(mockStore)
	c, _ := testCatalog(t, store)
	store.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, repos.ErrStoreUnavailable)

	res := c.Query(context.Background(), "krishna", "all", false)
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.True(t, res.Degraded())
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Songs)
	assert.Equal(t, repos.ErrStoreUnavailable, res.Err)
	assert.True(t, c.Offline())
}

func TestUnreadableSnapshotCountsAsUnavailable(t *testing.T) {
	store := new(mockStore)
	store.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, fmt.Errorf("connection refused"))
	c := New(store, failingSnapshots{}, logrus.NewEntry(logrus.New()))

	res := c.Query(context.Background(), "", "all", true)
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.True(t, res.Empty())
}

func TestOfflineFallbackAndRecovery(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	c, _ := testCatalog(t, store)
	taken := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return taken }

	download := store.On("Find", mock.Anything, filter.All(), true).Return(scenarioSongs(), nil).Once()
	n, err := c.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, c.HasSnapshot())
	download.Unset()

	remoteErr := repos.Unavailable(fmt.Errorf("dial tcp: connection refused"), "Find")
	failing := store.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, remoteErr)

	res := c.Query(ctx, "krishna", "all", false)
	assert.Equal(t, StatusOffline, res.Status)
	assert.Equal(t, []string{"Krishna Bhajan"}, titles(res.Songs))
	assert.Empty(t, res.Songs[0].Body)
	assert.Equal(t, taken, res.TakenAt)
	assert.Equal(t, remoteErr, res.Err)
	assert.True(t, c.Offline())

	res = c.Query(ctx, "", "mangalacharan", true)
	assert.Equal(t, StatusOffline, res.Status)
	assert.Equal(t, []string{"Jamo Thal Jivan"}, titles(res.Songs))
	assert.Equal(t, "Jamo thal", res.Songs[0].Body)

	res = c.Query(ctx, "nothing matches this", "all", false)
	assert.Equal(t, StatusOffline, res.Status)
	assert.True(t, res.Empty())

	// The next live answer clears the offline flag
	failing.Unset()
	store.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.Song{}, nil)
	res = c.Query(ctx, "", "all", false)
	assert.Equal(t, StatusLive, res.Status)
	assert.False(t, c.Offline())
}

func TestFailedDownloadKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	c, snaps := testCatalog(t, store)

	store.On("Find", mock.Anything, filter.All(), true).Return(scenarioSongs(), nil).Once()
	_, err := c.Download(ctx)
	require.NoError(t, err)

	store.On("Find", mock.Anything, filter.All(), true).Return(nil, fmt.Errorf("timeout")).Once()
	n, err := c.Download(ctx)
	require.Error(t, err)
	assert.True(t, repos.IsUnavailable(err))
	assert.Equal(t, 0, n)

	snap, err := snaps.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Songs, 2)
}

func TestDownloadReportsSnapshotWriteFailure(t *testing.T) {
	store := new(mockStore)
	store.On("Find", mock.Anything, filter.All(), true).Return(scenarioSongs(), nil)
	c := New(store, failingSnapshots{}, logrus.NewEntry(logrus.New()))

	_, err := c.Download(context.Background())
	require.Error(t, err)
	assert.False(t, repos.IsUnavailable(err))
}

func TestConcurrentDownloadsAreCollapsed(t *testing.T) {
	store := new(mockStore)
	c, _ := testCatalog(t, store)
	store.On("Find", mock.Anything, filter.All(), true).
		After(100*time.Millisecond).
		Return(scenarioSongs(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Download(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 2, n)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, len(store.Calls), 5)
	assert.GreaterOrEqual(t, len(store.Calls), 1)
}
