// Package sqlite provides a song repository that uses SQLite for storing the catalog
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

const (
	// The field names in the song table
	fieldNames = `id, title, localTitle, category, body, lyricsFile, hasEnglish, hasHindi, hasGerman, hasAudio,
					audioUrl, createdAt, updatedAt`
	// Aliased field list used for searches - the body column is filled in separately
	searchFields = `s.id, s.title, s.localTitle, s.category, %s AS body, s.lyricsFile, s.hasEnglish, s.hasHindi,
					s.hasGerman, s.hasAudio, s.audioUrl, s.createdAt, s.updatedAt`
)

// keywordRow is a single keyword attached to a song
type keywordRow struct {
	SongID  string `db:"songId"`
	Keyword string `db:"keyword"`
}

// SongRepo implements repos.SongRepo and provides access to the catalog stored inside a SQLite database
type SongRepo struct {
	logger *logrus.Entry
	db     *sqlx.DB
}

// New creates a new SongRepo
func New(db *sqlx.DB, logger *logrus.Entry) *SongRepo {
	return &SongRepo{logger, db}
}

// isUniqueViolation checks if the database refused a write because of a unique index
func isUniqueViolation(err error) bool {
	if e, ok := err.(sqlite3.Error); ok {
		return e.ExtendedCode == sqlite3.ErrConstraintUnique || e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// normalizeKeywords trims the keywords and drops empty ones and duplicates while keeping their order
func normalizeKeywords(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// writeKeywords replaces the keywords of a song inside the given transaction
func writeKeywords(ctx context.Context, tx *sqlx.Tx, songID string, keywords []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM SongKeywords WHERE songId = ?`, songID); err != nil {
		return fmt.Errorf("writeKeywords: Failed to remove old keywords: %v", err)
	}
	for _, kw := range keywords {
		if _, err := tx.ExecContext(ctx, `INSERT INTO SongKeywords(songId, keyword) VALUES(?, ?)`, songID, kw); err != nil {
			return fmt.Errorf("writeKeywords: Failed to store keyword '%s': %v", kw, err)
		}
	}
	return nil
}

// -- Methods ----------------------------------------------------------------------------------------------------------

// Create creates a new song entry
func (r *SongRepo) Create(ctx context.Context, s *models.Song) error {
	r.logger.WithFields(logrus.Fields{
		log.FldSong: s.ID,
		log.FldFile: s.LyricsFile,
	}).Debug("Creating song")
	now := time.Now().UTC()
	s.Keywords = normalizeKeywords(s.Keywords)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return repos.Unavailable(err, "Create: Failed to start transaction")
	}
	query := fmt.Sprintf(`INSERT INTO Songs(%s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, fieldNames)
	_, err = tx.ExecContext(
		ctx, query,
		s.ID, s.Title, s.LocalTitle, s.Category, s.Body, s.LyricsFile, s.HasEnglish, s.HasHindi, s.HasGerman,
		s.HasAudio, s.AudioURL, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repos.DoRollback(tx, repos.ErrDuplicateEntity)
		}
		return repos.DoRollback(tx, fmt.Errorf("Create: Failed to insert song: %v", err))
	}
	if err = writeKeywords(ctx, tx, s.ID, s.Keywords); err != nil {
		return repos.DoRollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Create: Failed to commit transaction: %v", err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// Update updates an existing song entry and replaces its keywords
func (r *SongRepo) Update(ctx context.Context, s *models.Song) error {
	r.logger.WithField(log.FldSong, s.ID).Debug("Updating song")
	now := time.Now().UTC()
	s.Keywords = normalizeKeywords(s.Keywords)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return repos.Unavailable(err, "Update: Failed to start transaction")
	}
	query := `UPDATE Songs SET
		title = ?, localTitle = ?, category = ?, body = ?, lyricsFile = ?, hasEnglish = ?, hasHindi = ?, hasGerman = ?,
		hasAudio = ?, audioUrl = ?, updatedAt = ?
	WHERE id = ?`
	res, err := tx.ExecContext(
		ctx, query,
		s.Title, s.LocalTitle, s.Category, s.Body, s.LyricsFile, s.HasEnglish, s.HasHindi, s.HasGerman, s.HasAudio,
		s.AudioURL, now, s.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repos.DoRollback(tx, repos.ErrDuplicateEntity)
		}
		return repos.DoRollback(tx, fmt.Errorf("Update: Failed to update song: %v", err))
	}
	if num, err := res.RowsAffected(); err != nil || num == 0 {
		if err != nil {
			return repos.DoRollback(tx, fmt.Errorf("Update: Failed to get number of updated rows: %v", err))
		}
		return repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	if err = writeKeywords(ctx, tx, s.ID, s.Keywords); err != nil {
		return repos.DoRollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Update: Failed to commit transaction: %v", err)
	}
	s.UpdatedAt = now
	return nil
}

// Delete removes an existing song and its keywords. Session entries referencing the song are kept since they carry
// their own copy of the titles
func (r *SongRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldSong, id).Debug("Deleting song")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return repos.Unavailable(err, "Delete: Failed to start transaction")
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM Songs WHERE id = ?", id)
	if err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to delete song: %v", err))
	}
	if num, err := res.RowsAffected(); err != nil || num == 0 {
		if err != nil {
			return repos.DoRollback(tx, err)
		}
		return repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM SongKeywords WHERE songId = ?", id); err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to remove keywords: %v", err))
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Delete: Failed to commit transaction: %v", err)
	}
	return nil
}

// getOne loads a single song matching the given column value
func (r *SongRepo) getOne(ctx context.Context, column string, value string) (*models.Song, error) {
	query := fmt.Sprintf("SELECT %s FROM Songs WHERE %s = ?", fieldNames, column)
	var song models.Song
	if err := r.db.GetContext(ctx, &song, query, value); err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, repos.Unavailable(err, "getOne: Failed to load song")
	}
	var keywords []string
	err := r.db.SelectContext(ctx, &keywords, "SELECT keyword FROM SongKeywords WHERE songId = ? ORDER BY keyword", song.ID)
	if err != nil {
		return nil, repos.Unavailable(err, "getOne: Failed to load keywords")
	}
	song.Keywords = keywords
	return &song, nil
}

// GetByID returns the song having the given ID
func (r *SongRepo) GetByID(ctx context.Context, id string) (*models.Song, error) {
	r.logger.WithField(log.FldSong, id).Debug("Loading song")
	return r.getOne(ctx, "id", id)
}

// GetByLyricsFile returns the song that has been created from the given lyrics file
func (r *SongRepo) GetByLyricsFile(ctx context.Context, file string) (*models.Song, error) {
	r.logger.WithField(log.FldFile, file).Debug("Loading song by lyrics file")
	return r.getOne(ctx, "lyricsFile", file)
}

// Find returns all songs matching the filter ordered by title. Unless includeBody is set, the bodies are left empty
func (r *SongRepo) Find(ctx context.Context, f filter.Filter, includeBody bool) ([]models.Song, error) {
	r.logger.WithFields(logrus.Fields{
		log.FldSearch:   f.Query,
		log.FldCategory: f.Category,
	}).Debug("Searching for songs")
	bodyColumn := "''"
	if includeBody {
		bodyColumn = "s.body"
	}
	where, args := f.SQL("s")
	query := fmt.Sprintf(
		"SELECT %s FROM Songs s WHERE %s ORDER BY s.title ASC, s.id ASC",
		fmt.Sprintf(searchFields, bodyColumn), where,
	)
	ret := []models.Song{}
	if err := r.db.SelectContext(ctx, &ret, query, args...); err != nil {
		return nil, repos.Unavailable(err, "Find: Failed to query songs")
	}
	if len(ret) == 0 {
		return ret, nil
	}
	// Load the keywords of all matching songs using the same condition
	query = fmt.Sprintf(
		"SELECT kw.songId, kw.keyword FROM SongKeywords kw JOIN Songs s ON s.id = kw.songId WHERE %s ORDER BY kw.keyword",
		where,
	)
	var keywords []keywordRow
	if err := r.db.SelectContext(ctx, &keywords, query, args...); err != nil {
		return nil, repos.Unavailable(err, "Find: Failed to query keywords")
	}
	byID := make(map[string][]string, len(ret))
	for _, kw := range keywords {
		byID[kw.SongID] = append(byID[kw.SongID], kw.Keyword)
	}
	for i := range ret {
		ret[i].Keywords = byID[ret[i].ID]
	}
	return ret, nil
}
