// Package repos contains the repository interfaces needed in BhajanBook
// It exists to prevent circular dependencies between the services and the repo implementations
package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is read, updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("entity does not exist")
	// ErrStoreUnavailable is fired when the backing store cannot be reached or fails to answer
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	// ErrDuplicateEntity is fired when an entity would violate a uniqueness constraint
	ErrDuplicateEntity = fmt.Errorf("entity already exists")
)

// Unavailable wraps the given error so that IsUnavailable reports true for it
func Unavailable(err error, message string) error {
	if err == nil {
		return nil
	}
	return &unavailableError{errors.Wrap(err, message)}
}

// IsUnavailable checks if the error signals an unreachable store
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%v: %v", ErrStoreUnavailable, e.err)
}

// Cause makes the wrapped error reachable for errors.Cause
func (e *unavailableError) Cause() error { return e.err }

// Unwrap makes the wrapped error reachable for errors.Is and errors.As
func (e *unavailableError) Unwrap() error { return e.err }

// Is marks every unavailableError as ErrStoreUnavailable
func (e *unavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

// SongRepo defines a repository that handles storing and querying the song catalog
type SongRepo interface {
	// Create creates a new song
	Create(ctx context.Context, s *models.Song) error
	// Update updates an existing song including its keywords
	Update(ctx context.Context, s *models.Song) error
	// Delete removes an existing song from the storage
	Delete(ctx context.Context, id string) error
	// GetByID returns the song having the given ID
	GetByID(ctx context.Context, id string) (*models.Song, error)
	// GetByLyricsFile returns the song that has been created from the given lyrics file
	GetByLyricsFile(ctx context.Context, file string) (*models.Song, error)
	// Find returns all songs matching the filter ordered by title. Bodies are only loaded if requested
	Find(ctx context.Context, f filter.Filter, includeBody bool) ([]models.Song, error)
}

// GatheringRepo defines a repository that handles storing and querying gatherings
type GatheringRepo interface {
	// Create creates a new gathering
	Create(ctx context.Context, g *models.Gathering) error
	// Update updates the given gathering
	Update(ctx context.Context, g *models.Gathering) error
	// Delete removes the given gathering together with all of its sessions
	Delete(ctx context.Context, id string) error
	// GetByID returns the gathering with the given ID
	GetByID(ctx context.Context, id string) (*models.Gathering, error)
	// List returns all gatherings ordered by name
	List(ctx context.Context) ([]models.Gathering, error)
	// Count returns the number of gatherings stored
	Count(ctx context.Context) (uint, error)
}

// SessionRepo defines a repository that is able to store and query scheduled sessions and their playlists
type SessionRepo interface {
	// Create creates a new session
	Create(ctx context.Context, s *models.Session) error
	// Update updates a session's base data (not the entries)
	Update(ctx context.Context, s *models.Session) error
	// Delete removes a session and its entries
	Delete(ctx context.Context, id string) error
	// FindByID returns the session with the given ID including its ordered entries
	FindByID(ctx context.Context, id string) (*models.Session, error)
	// ListByGathering returns the sessions of a gathering ordered by date
	ListByGathering(ctx context.Context, gatheringID string) ([]models.Session, error)
	// UpdateEntries replaces the full playlist of the session and returns the stored session
	UpdateEntries(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error)
}

// SnapshotRepo stores the offline copy of the catalog
type SnapshotRepo interface {
	// Replace swaps the stored snapshot for the given one. On failure, the previous snapshot is kept
	Replace(snap *models.Snapshot) error
	// Load returns the stored snapshot or ErrEntityNotExisting if there is none
	Load() (*models.Snapshot, error)
	// Exists checks if a snapshot is available
	Exists() bool
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}
