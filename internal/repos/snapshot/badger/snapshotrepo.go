// Package badger provides a snapshot repository that persists the offline catalog copy inside a Badger database so
// it survives restarts
package badger

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// Key layout:
//
//	snapshot/meta                   -> snapshotMeta of the current generation
//	snapshot/gen/<gen>/<index>      -> one song per key, ordered by index
const (
	metaKey   = "snapshot/meta"
	genPrefix = "snapshot/gen/"
)

// Config holds the options for opening the snapshot store
type Config struct {
	// Path is the directory the database files are stored in. Ignored when InMemory is set
	Path string
	// InMemory runs the database without touching the disk. Used in tests
	InMemory bool
	// SyncWrites makes every write wait for an fsync
	SyncWrites bool
}

// snapshotMeta points to the song generation that makes up the current snapshot
type snapshotMeta struct {
	Generation string    `json:"generation"`
	TakenAt    time.Time `json:"takenAt"`
	Count      int       `json:"count"`
}

// SnapshotRepo implements repos.SnapshotRepo on top of Badger
type SnapshotRepo struct {
	logger *logrus.Entry
	db     *badger.DB
	// mtx keeps readers away from a generation while it is being dropped
	mtx sync.RWMutex
}

// Open opens or creates the snapshot database described by the config
func Open(cfg Config, logger *logrus.Entry) (*SnapshotRepo, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("Open: No snapshot path configured")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "Open: Failed to create snapshot directory '%s'", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	// logrus entries already satisfy badger.Logger - only let warnings through
	badgerLogger := logrus.New()
	badgerLogger.SetOutput(logger.Logger.Out)
	badgerLogger.SetFormatter(logger.Logger.Formatter)
	badgerLogger.SetLevel(logrus.WarnLevel)
	opts = opts.WithLogger(badgerLogger.WithFields(logger.Data).WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "Open: Failed to open snapshot database")
	}
	logger.WithField(log.FldPath, cfg.Path).Debug("Snapshot database opened")
	return &SnapshotRepo{logger: logger, db: db}, nil
}

// Close closes the underlying database
func (r *SnapshotRepo) Close() error {
	return r.db.Close()
}

func songKey(gen string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", genPrefix, gen, index))
}

func genKeyPrefix(gen string) []byte {
	return []byte(genPrefix + gen + "/")
}

// readMeta reads the pointer to the current generation
func readMeta(txn *badger.Txn) (*snapshotMeta, error) {
	item, err := txn.Get([]byte(metaKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrap(err, "readMeta: Failed to read snapshot metadata")
	}
	var meta snapshotMeta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, errors.Wrap(err, "readMeta: Failed to decode snapshot metadata")
	}
	return &meta, nil
}

// Replace stores the songs as a new generation and then switches the metadata to it inside a single transaction.
// Until the switch has been committed, Load keeps returning the previous snapshot
func (r *SnapshotRepo) Replace(snap *models.Snapshot) error {
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	logger := r.logger.WithFields(logrus.Fields{
		log.FldCount: len(snap.Songs),
		log.FldID:    gen,
	})
	logger.Debug("Writing snapshot generation")

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for i, s := range snap.Songs {
		data, err := json.Marshal(s)
		if err != nil {
			return errors.Wrapf(err, "Replace: Failed to encode song '%s'", s.ID)
		}
		if err := wb.Set(songKey(gen, i), data); err != nil {
			r.dropGeneration(gen)
			return errors.Wrap(err, "Replace: Failed to write song")
		}
	}
	if err := wb.Flush(); err != nil {
		r.dropGeneration(gen)
		return errors.Wrap(err, "Replace: Failed to flush songs")
	}

	var previous *snapshotMeta
	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := readMeta(txn)
		if err != nil && err != repos.ErrEntityNotExisting {
			return err
		}
		previous = old
		data, err := json.Marshal(snapshotMeta{Generation: gen, TakenAt: snap.TakenAt, Count: len(snap.Songs)})
		if err != nil {
			return err
		}
		return txn.Set([]byte(metaKey), data)
	})
	if err != nil {
		r.dropGeneration(gen)
		return errors.Wrap(err, "Replace: Failed to switch snapshot generation")
	}
	if previous != nil {
		r.dropGeneration(previous.Generation)
	}
	return nil
}

// dropGeneration removes the songs of a generation nobody points to anymore
func (r *SnapshotRepo) dropGeneration(gen string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if err := r.db.DropPrefix(genKeyPrefix(gen)); err != nil {
		r.logger.WithError(err).WithField(log.FldID, gen).Warn("Failed to drop old snapshot generation")
	}
}

// Load reads the current snapshot or returns repos.ErrEntityNotExisting if none has been written yet
func (r *SnapshotRepo) Load() (*models.Snapshot, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	var snap *models.Snapshot
	err := r.db.View(func(txn *badger.Txn) error {
		meta, err := readMeta(txn)
		if err != nil {
			return err
		}
		snap = &models.Snapshot{
			TakenAt: meta.TakenAt,
			Songs:   make([]models.Song, 0, meta.Count),
		}
		prefix := genKeyPrefix(meta.Generation)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s models.Song
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				return errors.Wrap(err, "Load: Failed to decode song")
			}
			snap.Songs = append(snap.Songs, s)
		}
		if len(snap.Songs) != meta.Count {
			return fmt.Errorf("Load: Snapshot is incomplete: expected %d songs, found %d", meta.Count, len(snap.Songs))
		}
		return nil
	})
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, err
		}
		return nil, errors.Wrap(err, "Load: Failed to read snapshot")
	}
	return snap, nil
}

// Exists checks if a snapshot has been written
func (r *SnapshotRepo) Exists() bool {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := readMeta(txn)
		return err
	})
	return err == nil
}
