// Package catalog answers song queries from the remote catalog and falls back to the offline snapshot when the
// remote store cannot be reached
package catalog

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// Status tells where the songs of a query result came from
type Status string

const (
	// StatusLive marks results served by the remote store
	StatusLive Status = "live"
	// StatusOffline marks results served from the local snapshot
	StatusOffline Status = "offline"
	// StatusUnavailable marks empty results produced because neither source could answer
	StatusUnavailable Status = "unavailable"
)

// Store is the remote catalog queried first
type Store interface {
	// Find returns all songs matching the filter. Bodies are only needed if includeBody is set
	Find(ctx context.Context, f filter.Filter, includeBody bool) ([]models.Song, error)
}

// Result is the outcome of a catalog query
type Result struct {
	// Matching songs ordered by title
	Songs []models.Song `json:"songs"`
	// Source of the songs
	Status Status `json:"status"`
	// Freshness of the snapshot for offline results
	TakenAt time.Time `json:"takenAt,omitempty"`
	// The remote failure that caused a degraded result
	Err error `json:"-"`
}

// Degraded checks if the result was not served by the remote store
func (r Result) Degraded() bool {
	return r.Status != StatusLive
}

// Empty checks if no songs have been returned
func (r Result) Empty() bool {
	return len(r.Songs) == 0
}

// Catalog is the query façade combining the remote store with the offline snapshot
type Catalog struct {
	store     Store
	snapshots repos.SnapshotRepo
	logger    *logrus.Entry
	offline   atomic.Bool
	downloads singleflight.Group
	now       func() time.Time
}

// New creates a new catalog façade
func New(store Store, snapshots repos.SnapshotRepo, logger *logrus.Entry) *Catalog {
	return &Catalog{
		store:     store,
		snapshots: snapshots,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// sortSongs orders songs by title with the ID as tie-breaker
func sortSongs(songs []models.Song) {
	sort.SliceStable(songs, func(i, j int) bool {
		if songs[i].Title != songs[j].Title {
			return songs[i].Title < songs[j].Title
		}
		return songs[i].ID < songs[j].ID
	})
}

// project orders the songs and strips the bodies unless they have been requested
func project(songs []models.Song, fullBody bool) []models.Song {
	if songs == nil {
		songs = []models.Song{}
	}
	sortSongs(songs)
	if !fullBody {
		for i := range songs {
			songs[i].Body = ""
		}
	}
	return songs
}

// Query searches the catalog for songs matching the given query text and category
func (c *Catalog) Query(ctx context.Context, query, category string, fullBody bool) Result {
	return c.QueryFilter(ctx, filter.New(query, category), fullBody)
}

// QueryFilter searches the catalog using a prepared filter. The remote store is asked first; if it fails, the
// snapshot answers instead. Results from both sources are never combined
func (c *Catalog) QueryFilter(ctx context.Context, f filter.Filter, fullBody bool) Result {
	logger := ctxhelper.LoggerOr(ctx, c.logger).WithFields(logrus.Fields{
		log.FldSearch:   f.Query,
		log.FldCategory: f.Category,
	})
	songs, err := c.store.Find(ctx, f, fullBody)
	if err == nil {
		c.offline.Store(false)
		queriesTotal.WithLabelValues(string(StatusLive)).Inc()
		return Result{Songs: project(songs, fullBody), Status: StatusLive}
	}
	logger.WithError(err).Warn("Remote catalog failed - falling back to the offline snapshot")
	c.offline.Store(true)

	snap, loadErr := c.snapshots.Load()
	if loadErr != nil {
		if loadErr != repos.ErrEntityNotExisting {
			logger.WithError(loadErr).Error("Failed to read the offline snapshot")
		}
		queriesTotal.WithLabelValues(string(StatusUnavailable)).Inc()
		return Result{Songs: []models.Song{}, Status: StatusUnavailable, Err: err}
	}
	matches := []models.Song{}
	for i := range snap.Songs {
		if f.Match(&snap.Songs[i]) {
			matches = append(matches, snap.Songs[i])
		}
	}
	logger.WithFields(logrus.Fields{
		log.FldSource: StatusOffline,
		log.FldCount:  len(matches),
	}).Debug("Answered from snapshot")
	queriesTotal.WithLabelValues(string(StatusOffline)).Inc()
	return Result{
		Songs:   project(matches, fullBody),
		Status:  StatusOffline,
		TakenAt: snap.TakenAt,
		Err:     err,
	}
}

// Offline reports whether the most recent query had to fall back to the snapshot
func (c *Catalog) Offline() bool {
	return c.offline.Load()
}
