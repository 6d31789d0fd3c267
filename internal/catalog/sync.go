package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// Download fetches the full catalog including all bodies from the remote store and replaces the snapshot with it.
// The fallback path is never used here. If the download fails, the previous snapshot stays in place.
// Concurrent calls share one download
func (c *Catalog) Download(ctx context.Context) (int, error) {
	logger := ctxhelper.LoggerOr(ctx, c.logger)
	v, err, shared := c.downloads.Do("download", func() (interface{}, error) {
		songs, err := c.store.Find(ctx, filter.All(), true)
		if err != nil {
			downloadsTotal.WithLabelValues("unavailable").Inc()
			return 0, repos.Unavailable(err, "Download: Failed to fetch the catalog")
		}
		if songs == nil {
			songs = []models.Song{}
		}
		sortSongs(songs)
		if err := c.snapshots.Replace(&models.Snapshot{Songs: songs, TakenAt: c.now()}); err != nil {
			downloadsTotal.WithLabelValues("failed").Inc()
			return 0, errors.Wrap(err, "Download: Failed to store the snapshot")
		}
		downloadsTotal.WithLabelValues("ok").Inc()
		snapshotSongs.Set(float64(len(songs)))
		return len(songs), nil
	})
	if err != nil {
		logger.WithError(err).Error("Snapshot download failed")
		return 0, err
	}
	logger.WithField(log.FldCount, v).WithField("shared", shared).Info("Snapshot downloaded")
	return v.(int), nil
}

// HasSnapshot checks if an offline snapshot is available
func (c *Catalog) HasSnapshot() bool {
	return c.snapshots.Exists()
}
