// Package sqlite provides a gathering repository that stores its data inside a SQLite database
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

const (
	gatheringFields = `id, name, location, type, description, createdAt, updatedAt`
)

// GatheringRepo is a repository that stores gatherings inside a SQLite database
type GatheringRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new gathering repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *GatheringRepo {
	return &GatheringRepo{
		db:     db,
		logger: logger,
	}
}

// Create creates a new gathering
func (r *GatheringRepo) Create(ctx context.Context, g *models.Gathering) error {
	r.logger.WithField("name", g.Name).Debug("Adding new gathering")
	now := time.Now().UTC()
	query := fmt.Sprintf("INSERT INTO Gatherings(%s) VALUES(?, ?, ?, ?, ?, ?, ?)", gatheringFields)
	if _, err := r.db.ExecContext(ctx, query, g.ID, g.Name, g.Location, g.Type, g.Description, now, now); err != nil {
		return repos.Unavailable(err, "Create: Failed to insert gathering")
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	return nil
}

// Update updates the given gathering
func (r *GatheringRepo) Update(ctx context.Context, g *models.Gathering) error {
	r.logger.WithField(log.FldGathering, g.ID).Debug("Updating gathering")
	now := time.Now().UTC()
	query := `UPDATE Gatherings SET name = ?, location = ?, type = ?, description = ?, updatedAt = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, g.Name, g.Location, g.Type, g.Description, now, g.ID)
	if err != nil {
		return repos.Unavailable(err, "Update: Failed to update gathering")
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil && num == 0 {
		return repos.ErrEntityNotExisting
	}
	g.UpdatedAt = now
	return err
}

// Delete removes the given gathering together with its sessions and their playlists
func (r *GatheringRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldGathering, id).Debug("Deleting gathering")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return repos.Unavailable(err, "Delete: Failed to start transaction")
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM Gatherings WHERE id = ?", id)
	if err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to delete gathering: %v", err))
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil && num == 0 {
		return repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	// Remove all sessions belonging to the deleted gathering
	query := "DELETE FROM SessionEntries WHERE sessionId IN (SELECT id FROM Sessions WHERE gatheringId = ?)"
	if _, err = tx.ExecContext(ctx, query, id); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to remove session entries: %v", err))
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM Sessions WHERE gatheringId = ?", id); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to remove sessions: %v", err))
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Delete: Failed to commit transaction: %v", err)
	}
	return nil
}

// GetByID returns the gathering with the given ID
func (r *GatheringRepo) GetByID(ctx context.Context, id string) (*models.Gathering, error) {
	r.logger.WithField(log.FldGathering, id).Debug("Loading gathering")
	query := fmt.Sprintf("SELECT %s FROM Gatherings WHERE id = ?", gatheringFields)
	var g models.Gathering
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, repos.Unavailable(err, "GetByID: Failed to load gathering")
	}
	return &g, nil
}

// List returns all gatherings - recurring ones first, then by name
func (r *GatheringRepo) List(ctx context.Context) ([]models.Gathering, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM Gatherings ORDER BY CASE type WHEN 'USER_EVENT' THEN 1 ELSE 0 END, name, id",
		gatheringFields,
	)
	ret := []models.Gathering{}
	if err := r.db.SelectContext(ctx, &ret, query); err != nil {
		return nil, repos.Unavailable(err, "List: Failed to query gatherings")
	}
	return ret, nil
}

// Count returns the number of gatherings stored
func (r *GatheringRepo) Count(ctx context.Context) (uint, error) {
	var num uint
	if err := r.db.GetContext(ctx, &num, "SELECT COUNT(*) FROM Gatherings"); err != nil {
		return 0, repos.Unavailable(err, "Count: Failed to count gatherings")
	}
	return num, nil
}
