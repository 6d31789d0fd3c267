package playlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
)

// Store persists session playlists
type Store interface {
	// FindByID returns the stored session including its entries
	FindByID(ctx context.Context, id string) (*models.Session, error)
	// UpdateEntries replaces the full playlist of a session and returns the stored session
	UpdateEntries(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error)
}

// Outcome describes how a background persist ended
type Outcome struct {
	// The session that has been changed
	SessionID string
	// The local state after the persist: the stored session, the re-fetched one or the optimistic copy
	Session *models.Session
	// Set when the persist failed and the local state has been replaced by the stored session
	Reconciled bool
	// The persist error. If the re-fetch failed as well, both errors are contained
	Err error
}

// Option configures a Manager
type Option func(*Manager)

// WithNotify registers a function that receives the outcome of every persist
func WithNotify(fn func(Outcome)) Option {
	return func(m *Manager) {
		m.notify = fn
	}
}

// WithTimeout limits the duration of every background persist including the reconciliation
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// Manager applies playlist changes optimistically and persists them in the background. Overlapping persists of the
// same session are not ordered against each other - the last one to finish wins
type Manager struct {
	store   Store
	logger  *logrus.Entry
	notify  func(Outcome)
	timeout time.Duration

	mtx      sync.Mutex
	sessions map[string]*models.Session
	inFlight sync.WaitGroup
}

// New creates a new playlist manager
func New(store Store, logger *logrus.Entry, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		logger:   logger,
		sessions: map[string]*models.Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddEntry appends a song to the session's playlist
func (m *Manager) AddEntry(ctx context.Context, session *models.Session, song *models.Song, note string) (*models.Session, error) {
	return m.apply(ctx, session, Append(session.Entries, song, note)), nil
}

// RemoveEntry removes the entry at the given 0-based index
func (m *Manager) RemoveEntry(ctx context.Context, session *models.Session, index int) (*models.Session, error) {
	entries, err := RemoveAt(session.Entries, index)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, session, entries), nil
}

// Reorder brings the playlist into the order given by the entry IDs
func (m *Manager) Reorder(ctx context.Context, session *models.Session, order []string) (*models.Session, error) {
	entries, err := Permute(session.Entries, order)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, session, entries), nil
}

// Current returns a copy of the local state of a session
func (m *Manager) Current(id string) (*models.Session, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	s, ok := m.sessions[id]
	return s.Clone(), ok
}

// Wait blocks until all running persists have finished
func (m *Manager) Wait() {
	m.inFlight.Wait()
}

func (m *Manager) setLocal(s *models.Session) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.sessions[s.ID] = s.Clone()
}

// apply stores the optimistic state locally and starts persisting it
func (m *Manager) apply(ctx context.Context, base *models.Session, entries []models.PlaylistEntry) *models.Session {
	optimistic := base.Clone()
	optimistic.Entries = entries
	m.setLocal(optimistic)

	logger := ctxhelper.LoggerOr(ctx, m.logger).WithField(log.FldSession, optimistic.ID)
	m.inFlight.Add(1)
	// The persist has to finish even if the caller gives up on its request
	go m.persist(context.WithoutCancel(ctx), logger, optimistic.Clone())
	return optimistic
}

// persist writes the entries and reconciles the local state if that fails
func (m *Manager) persist(ctx context.Context, logger *logrus.Entry, optimistic *models.Session) {
	defer m.inFlight.Done()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	outcome := Outcome{SessionID: optimistic.ID}

	stored, err := m.store.UpdateEntries(ctx, optimistic.ID, optimistic.Entries)
	if err == nil {
		m.setLocal(stored)
		persistsTotal.WithLabelValues("ok").Inc()
		logger.WithField(log.FldCount, len(stored.Entries)).Debug("Playlist persisted")
		outcome.Session = stored.Clone()
		m.deliver(outcome)
		return
	}
	logger.WithError(err).Warn("Failed to persist playlist - reconciling with the stored session")

	fresh, fetchErr := m.store.FindByID(ctx, optimistic.ID)
	if fetchErr != nil {
		persistsTotal.WithLabelValues("failed").Inc()
		logger.WithError(fetchErr).Error("Failed to reload session after failed persist")
		outcome.Session = optimistic
		outcome.Err = fmt.Errorf("persist: %w; reload: %w", err, fetchErr)
		m.deliver(outcome)
		return
	}
	m.setLocal(fresh)
	persistsTotal.WithLabelValues("reconciled").Inc()
	outcome.Session = fresh.Clone()
	outcome.Reconciled = true
	outcome.Err = err
	m.deliver(outcome)
}

func (m *Manager) deliver(o Outcome) {
	if m.notify != nil {
		m.notify(o)
	}
}
