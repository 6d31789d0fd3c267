package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
	"github.com/derWhity/bhajanbook/internal/sanitize"
)

// Number of attempts for finding a free generated lyrics file name
const lyricsFileAttempts = 3

// SongService provides functionality for searching and maintaining the song catalog
type SongService interface {
	// List searches the catalog. If the catalog cannot be reached, the offline snapshot answers instead
	List(ctx context.Context, query SongQuery) (catalog.Result, error)
	// Get returns the song with the given ID
	Get(ctx context.Context, id string) (*models.Song, error)
	// Create adds a new song to the catalog
	Create(ctx context.Context, song *models.Song) (*models.Song, error)
	// Update changes a community song
	Update(ctx context.Context, id string, patch models.SongPatch) (*models.Song, error)
	// Delete removes a community song from the catalog
	Delete(ctx context.Context, id string) error
	// Categories returns the known categories
	Categories(ctx context.Context) []string
	// AddCategory adds a category to the list of known ones
	AddCategory(ctx context.Context, category string) error
	// DownloadSnapshot refreshes the offline snapshot from the catalog and returns the number of songs in it
	DownloadSnapshot(ctx context.Context) (int, error)
}

// -- SongService implementation ---------------------------------------------------------------------------------------

type songService struct {
	logger  *logrus.Entry
	repo    repos.SongRepo
	catalog *catalog.Catalog
	config  ConfigService
	now     func() time.Time
}

// NewSongService creates a new songService instance to use for creating endpoints
func NewSongService(repo repos.SongRepo, cat *catalog.Catalog, cs ConfigService, logger *logrus.Entry) SongService {
	return &songService{
		logger:  logger,
		repo:    repo,
		catalog: cat,
		config:  cs,
		now:     time.Now,
	}
}

// List searches the catalog
func (s *songService) List(ctx context.Context, query SongQuery) (catalog.Result, error) {
	return s.catalog.Query(ctx, query.Query, query.Category, query.FullBody), nil
}

// Get returns the song with the given ID
func (s *songService) Get(ctx context.Context, id string) (*models.Song, error) {
	song, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err != repos.ErrEntityNotExisting {
			ctxhelper.LoggerOr(ctx, s.logger).WithError(err).WithField(log.FldSong, id).Error("Song query failed")
		}
		return nil, notFoundOr(err, ErrCodeSongNotFound, fmt.Sprintf("Song '%s'", id))
	}
	return song, nil
}

// normalize trims the text fields and cleans the body of a song
func normalize(song *models.Song) {
	song.Title = strings.TrimSpace(song.Title)
	song.LocalTitle = strings.TrimSpace(song.LocalTitle)
	song.Category = strings.TrimSpace(song.Category)
	song.AudioURL = strings.TrimSpace(song.AudioURL)
	song.Body = sanitize.Clean(song.Body)
}

// check validates the song including its category
func (s *songService) check(song *models.Song) error {
	if err := validationError(song); err != nil {
		return err
	}
	if !s.config.IsKnownCategory(song.Category) {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("Unknown category '%s'", song.Category),
			map[string]string{"field": "category"},
		)
	}
	return nil
}

// Create adds a new song to the catalog
func (s *songService) Create(ctx context.Context, song *models.Song) (*models.Song, error) {
	logger := ctxhelper.LoggerOr(ctx, s.logger)
	normalize(song)
	if song.Category == "" {
		song.Category = models.CategoryCommunity
	}
	if err := s.check(song); err != nil {
		return nil, err
	}
	song.ID = uuid.New().String()
	generated := song.LyricsFile == ""
	for attempt := 0; ; attempt++ {
		if generated {
			ms := s.now().UnixMilli() + int64(attempt)
			song.LyricsFile = fmt.Sprintf("user_%d.html", ms)
		}
		err := s.repo.Create(ctx, song)
		if err == nil {
			break
		}
		if err == repos.ErrDuplicateEntity {
			if generated && attempt+1 < lyricsFileAttempts {
				continue
			}
			return nil, MakeErrorWithData(
				http.StatusConflict,
				ErrCodeDuplicate,
				fmt.Sprintf("A song from lyrics file '%s' already exists", song.LyricsFile),
				map[string]string{"field": "lyricsFile"},
			)
		}
		logger.WithError(err).Error("Song creation failed")
		return nil, storageError(err, "Failed to write song to storage")
	}
	logger.WithField(log.FldSong, song.ID).Info("Song created")
	return song, nil
}

// editable loads a song and makes sure that it may be changed
func (s *songService) editable(ctx context.Context, id string) (*models.Song, error) {
	song, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !song.IsCommunity() {
		return nil, MakeError(
			http.StatusForbidden,
			ErrCodePermissionDenied,
			fmt.Sprintf("Only songs of the '%s' category may be changed", models.CategoryCommunity),
		)
	}
	return song, nil
}

// Update changes a community song
func (s *songService) Update(ctx context.Context, id string, patch models.SongPatch) (*models.Song, error) {
	song, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(song)
	normalize(song)
	if err := s.check(song); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, song); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, notFoundOr(err, ErrCodeSongNotFound, fmt.Sprintf("Song '%s'", id))
		}
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Song update failed")
		return nil, storageError(err, "Failed to write song to storage")
	}
	return song, nil
}

// Delete removes a community song from the catalog
func (s *songService) Delete(ctx context.Context, id string) error {
	if _, err := s.editable(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == repos.ErrEntityNotExisting {
			return notFoundOr(err, ErrCodeSongNotFound, fmt.Sprintf("Song '%s'", id))
		}
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Song deletion failed")
		return storageError(err, "Failed to delete song from storage")
	}
	return nil
}

// Categories returns the known categories
func (s *songService) Categories(ctx context.Context) []string {
	return s.config.Categories(ctx)
}

// AddCategory adds a category to the list of known ones
func (s *songService) AddCategory(ctx context.Context, category string) error {
	return s.config.AddCategory(ctx, category)
}

// DownloadSnapshot refreshes the offline snapshot
func (s *songService) DownloadSnapshot(ctx context.Context) (int, error) {
	n, err := s.catalog.Download(ctx)
	if err != nil {
		return 0, storageError(err, "Failed to download the catalog snapshot")
	}
	return n, nil
}
