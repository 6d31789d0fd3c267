// Package sqlite contains a repository for scheduled sessions that stores its data inside a SQLite database
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

const (
	sessionFields = `id, gatheringId, date, status, notes, createdAt, updatedAt`
	entryFields   = `id, songId, title, localTitle, position, note`
)

// SessionRepo is a session repository that stores its data inside a SQLite database
type SessionRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new SessionRepo instance with the given DB and logger instances
func New(db *sqlx.DB, logger *logrus.Entry) *SessionRepo {
	return &SessionRepo{db, logger}
}

// queryer is implemented by both, the database and a transaction
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// loadSession reads a session and its ordered entries
func loadSession(ctx context.Context, q queryer, id string) (*models.Session, error) {
	var s models.Session
	query := fmt.Sprintf("SELECT %s FROM Sessions WHERE id = ?", sessionFields)
	if err := q.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, repos.Unavailable(err, "loadSession: Failed to load session")
	}
	s.Entries = []models.PlaylistEntry{}
	query = fmt.Sprintf("SELECT %s FROM SessionEntries WHERE sessionId = ? ORDER BY position, id", entryFields)
	if err := q.SelectContext(ctx, &s.Entries, query, id); err != nil {
		return nil, repos.Unavailable(err, "loadSession: Failed to load session entries")
	}
	return &s, nil
}

// -- Methods ----------------------------------------------------------------------------------------------------------

// Create creates a new session with an empty playlist
func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	r.logger.WithFields(logrus.Fields{
		log.FldGathering: s.GatheringID,
		"date":           s.Date,
	}).Debug("Adding new session")
	now := time.Now().UTC()
	query := fmt.Sprintf("INSERT INTO Sessions(%s) VALUES(?, ?, ?, ?, ?, ?, ?)", sessionFields)
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.GatheringID, s.Date, s.Status, s.Notes, now, now); err != nil {
		return repos.Unavailable(err, "Create: Failed to insert session")
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Entries == nil {
		s.Entries = []models.PlaylistEntry{}
	}
	return nil
}

// Update updates a session's base data (not the entries)
func (r *SessionRepo) Update(ctx context.Context, s *models.Session) error {
	r.logger.WithField(log.FldSession, s.ID).Debug("Updating session")
	now := time.Now().UTC()
	query := "UPDATE Sessions SET date = ?, status = ?, notes = ?, updatedAt = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, s.Date, s.Status, s.Notes, now, s.ID)
	if err != nil {
		return repos.Unavailable(err, "Update: Failed to update session")
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil && num == 0 {
		return repos.ErrEntityNotExisting
	}
	s.UpdatedAt = now
	return err
}

// Delete removes an existing session and its entries
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldSession, id).Debug("Deleting session")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return repos.Unavailable(err, "Delete: Failed to start transaction")
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM Sessions WHERE id = ?", id)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil && num == 0 {
		return repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	// Remove all the entries belonging to the deleted session
	if _, err = tx.ExecContext(ctx, "DELETE FROM SessionEntries WHERE sessionId = ?", id); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to remove session entries: %v", err))
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Delete: Failed to commit transaction: %v", err)
	}
	return nil
}

// FindByID returns the session with the given ID including its ordered entries
func (r *SessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	r.logger.WithField(log.FldSession, id).Debug("Loading session")
	return loadSession(ctx, r.db, id)
}

// ListByGathering returns the sessions of a gathering ordered by date. The entries are not loaded
func (r *SessionRepo) ListByGathering(ctx context.Context, gatheringID string) ([]models.Session, error) {
	r.logger.WithField(log.FldGathering, gatheringID).Debug("Listing sessions")
	query := fmt.Sprintf("SELECT %s FROM Sessions WHERE gatheringId = ? ORDER BY date, createdAt, id", sessionFields)
	ret := []models.Session{}
	if err := r.db.SelectContext(ctx, &ret, query, gatheringID); err != nil {
		return nil, repos.Unavailable(err, "ListByGathering: Failed to query sessions")
	}
	return ret, nil
}

// UpdateEntries replaces the whole playlist of a session. Positions are written in array order starting at 1, so the
// stored order is always dense. The stored session is returned
func (r *SessionRepo) UpdateEntries(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error) {
	r.logger.WithFields(logrus.Fields{
		log.FldSession: id,
		log.FldCount:   len(entries),
	}).Debug("Writing session entries")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, repos.Unavailable(err, "UpdateEntries: Failed to start transaction")
	}
	res, err := tx.ExecContext(ctx, "UPDATE Sessions SET updatedAt = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return nil, repos.DoRollback(tx, repos.Unavailable(err, "UpdateEntries: Failed to touch session"))
	}
	if num, err := res.RowsAffected(); err == nil && num == 0 {
		return nil, repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM SessionEntries WHERE sessionId = ?", id); err != nil {
		return nil, repos.DoRollback(tx, repos.Unavailable(err, "UpdateEntries: Failed to remove old entries"))
	}
	query := fmt.Sprintf("INSERT INTO SessionEntries(sessionId, %s) VALUES(?, ?, ?, ?, ?, ?, ?)", entryFields)
	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx, query, id, e.ID, e.SongID, e.Title, e.LocalTitle, i+1, e.Note); err != nil {
			return nil, repos.DoRollback(tx, fmt.Errorf("UpdateEntries: Failed to write entry #%d: %v", i+1, err))
		}
	}
	sess, err := loadSession(ctx, tx, id)
	if err != nil {
		return nil, repos.DoRollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, repos.Unavailable(err, "UpdateEntries: Failed to commit transaction")
	}
	return sess, nil
}
