package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/playlist"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// SessionService provides functions for planning the sessions of a gathering and maintaining their playlists
type SessionService interface {
	// ListForGathering returns the sessions of a gathering ordered by date
	ListForGathering(ctx context.Context, gatheringID string) ([]models.Session, error)
	// Create plans a new session of the given gathering
	Create(ctx context.Context, gatheringID string, date time.Time, notes string) (*models.Session, error)
	// Get returns a session including its playlist
	Get(ctx context.Context, id string) (*models.Session, error)
	// Update changes the status or the notes of a session
	Update(ctx context.Context, id string, update SessionUpdate) (*models.Session, error)
	// Delete removes a session and its playlist
	Delete(ctx context.Context, id string) error
	// UpdateEntries replaces the whole playlist of a session
	UpdateEntries(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error)
	// AddEntry appends a song to the end of the playlist
	AddEntry(ctx context.Context, id string, songID string, note string) (*models.Session, error)
	// RemoveEntry removes the entry at the given 0-based index
	RemoveEntry(ctx context.Context, id string, index int) (*models.Session, error)
	// Reorder brings the playlist into the order given by the entry IDs
	Reorder(ctx context.Context, id string, order []string) (*models.Session, error)
	// SuggestDate returns the date a session for a festival on the given day should take place
	SuggestDate(ctx context.Context, festivalDate time.Time) time.Time
}

// -- SessionService implementation ------------------------------------------------------------------------------------

type sessionService struct {
	sessions   repos.SessionRepo
	gatherings repos.GatheringRepo
	songs      repos.SongRepo
	config     ConfigService
	logger     *logrus.Entry
}

// NewSessionService creates a new session service instance
func NewSessionService(
	sessions repos.SessionRepo,
	gatherings repos.GatheringRepo,
	songs repos.SongRepo,
	cs ConfigService,
	logger *logrus.Entry,
) SessionService {
	return &sessionService{
		sessions:   sessions,
		gatherings: gatherings,
		songs:      songs,
		config:     cs,
		logger:     logger,
	}
}

func sessionNotFound(err error, id string) *HTTPError {
	return notFoundOr(err, ErrCodeSessionNotFound, fmt.Sprintf("Session '%s'", id))
}

// playlistError converts the errors of the playlist operations
func playlistError(err error) error {
	switch err {
	case playlist.ErrIndexOutOfRange:
		return MakeError(http.StatusBadRequest, ErrCodeIndexOutOfRange, "Entry index is out of range")
	case playlist.ErrInvalidPermutation:
		return MakeError(
			http.StatusBadRequest,
			ErrCodeInvalidPermutation,
			"The new order must contain every entry of the playlist exactly once",
		)
	}
	return err
}

// ListForGathering returns the sessions of a gathering ordered by date
func (s *sessionService) ListForGathering(ctx context.Context, gatheringID string) ([]models.Session, error) {
	if _, err := s.gatherings.GetByID(ctx, gatheringID); err != nil {
		return nil, notFoundOr(err, ErrCodeGatheringNotFound, fmt.Sprintf("Gathering '%s'", gatheringID))
	}
	list, err := s.sessions.ListByGathering(ctx, gatheringID)
	if err != nil {
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Listing sessions failed")
		return nil, storageError(err, "Error while listing sessions")
	}
	return list, nil
}

// Create plans a new session of the given gathering
func (s *sessionService) Create(ctx context.Context, gatheringID string, date time.Time, notes string) (*models.Session, error) {
	if _, err := s.gatherings.GetByID(ctx, gatheringID); err != nil {
		return nil, notFoundOr(err, ErrCodeGatheringNotFound, fmt.Sprintf("Gathering '%s'", gatheringID))
	}
	if date.IsZero() {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Session date missing",
			map[string]string{"field": "date"},
		)
	}
	sess := &models.Session{
		ID:          uuid.New().String(),
		GatheringID: gatheringID,
		Date:        festival.CalendarDate(date),
		Status:      models.SessionUpcoming,
		Notes:       strings.TrimSpace(notes),
		Entries:     []models.PlaylistEntry{},
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Session creation failed")
		return nil, storageError(err, "Failed to write session to storage")
	}
	ctxhelper.LoggerOr(ctx, s.logger).WithFields(logrus.Fields{
		log.FldSession:   sess.ID,
		log.FldGathering: gatheringID,
	}).Info("Session planned")
	return sess, nil
}

// Get returns a session including its playlist
func (s *sessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, sessionNotFound(err, id)
	}
	return sess, nil
}

// Update changes the status or the notes of a session
func (s *sessionService) Update(ctx context.Context, id string, update SessionUpdate) (*models.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Status != nil {
		next := *update.Status
		if !models.ValidSessionStatus(next) {
			return nil, MakeErrorWithData(
				http.StatusBadRequest,
				ErrCodeIllegalValue,
				fmt.Sprintf("Unknown session status '%s'", next),
				map[string]string{"field": "status"},
			)
		}
		if !sess.Status.CanBecome(next) {
			return nil, MakeErrorWithData(
				http.StatusBadRequest,
				ErrCodeIllegalValue,
				fmt.Sprintf("A session in status %s cannot become %s", sess.Status, next),
				map[string]string{"field": "status"},
			)
		}
		sess.Status = next
	}
	if update.Notes != nil {
		sess.Notes = strings.TrimSpace(*update.Notes)
	}
	if err := s.sessions.Update(ctx, sess); err != nil {
		if err != repos.ErrEntityNotExisting {
			ctxhelper.LoggerOr(ctx, s.logger).WithError(err).WithField(log.FldSession, id).Error("Session update failed")
		}
		return nil, sessionNotFound(err, id)
	}
	return sess, nil
}

// Delete removes a session and its playlist
func (s *sessionService) Delete(ctx context.Context, id string) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		if err != repos.ErrEntityNotExisting {
			ctxhelper.LoggerOr(ctx, s.logger).WithError(err).WithField(log.FldSession, id).Error("Session deletion failed")
		}
		return sessionNotFound(err, id)
	}
	return nil
}

// UpdateEntries replaces the whole playlist of a session. Every referenced song must exist - missing titles are
// copied from the songs
func (s *sessionService) UpdateEntries(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error) {
	songs := map[string]*models.Song{}
	checked := make([]models.PlaylistEntry, len(entries))
	for i, e := range entries {
		e.SongID = strings.TrimSpace(e.SongID)
		if e.SongID == "" {
			return nil, MakeErrorWithData(
				http.StatusBadRequest,
				ErrCodeRequiredFieldMissing,
				fmt.Sprintf("Entry #%d does not reference a song", i+1),
				map[string]interface{}{"field": "songId", "index": i},
			)
		}
		song, ok := songs[e.SongID]
		if !ok {
			var err error
			if song, err = s.songs.GetByID(ctx, e.SongID); err != nil {
				return nil, notFoundOr(err, ErrCodeSongNotFound, fmt.Sprintf("Song '%s'", e.SongID))
			}
			songs[e.SongID] = song
		}
		if e.Title == "" {
			e.Title = song.Title
		}
		if e.LocalTitle == "" {
			e.LocalTitle = song.LocalTitle
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		checked[i] = e
	}
	return s.store(ctx, id, playlist.Renumber(checked))
}

// store persists a changed playlist synchronously
func (s *sessionService) store(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error) {
	sess, err := s.sessions.UpdateEntries(ctx, id, entries)
	if err != nil {
		if err != repos.ErrEntityNotExisting {
			ctxhelper.LoggerOr(ctx, s.logger).WithError(err).WithField(log.FldSession, id).Error("Writing session entries failed")
		}
		return nil, sessionNotFound(err, id)
	}
	return sess, nil
}

// AddEntry appends a song to the end of the playlist
func (s *sessionService) AddEntry(ctx context.Context, id string, songID string, note string) (*models.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	song, err := s.songs.GetByID(ctx, songID)
	if err != nil {
		return nil, notFoundOr(err, ErrCodeSongNotFound, fmt.Sprintf("Song '%s'", songID))
	}
	return s.store(ctx, id, playlist.Append(sess.Entries, song, strings.TrimSpace(note)))
}

// RemoveEntry removes the entry at the given 0-based index
func (s *sessionService) RemoveEntry(ctx context.Context, id string, index int) (*models.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := playlist.RemoveAt(sess.Entries, index)
	if err != nil {
		return nil, playlistError(err)
	}
	return s.store(ctx, id, entries)
}

// Reorder brings the playlist into the order given by the entry IDs
func (s *sessionService) Reorder(ctx context.Context, id string, order []string) (*models.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := playlist.Permute(sess.Entries, order)
	if err != nil {
		return nil, playlistError(err)
	}
	return s.store(ctx, id, entries)
}

// SuggestDate returns the date a session for a festival on the given day should take place
func (s *sessionService) SuggestDate(ctx context.Context, festivalDate time.Time) time.Time {
	return festival.NearestWeekday(festivalDate, s.config.GetConfig(ctx).EligibleWeekday)
}
