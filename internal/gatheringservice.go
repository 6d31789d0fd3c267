package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// GatheringService provides service functions for working with gatherings
type GatheringService interface {
	List(ctx context.Context) ([]models.Gathering, error)
	Get(ctx context.Context, id string) (*models.Gathering, error)
	Create(ctx context.Context, gathering *models.Gathering) (*models.Gathering, error)
	Rename(ctx context.Context, id string, name string) (*models.Gathering, error)
	Delete(ctx context.Context, id string) error
}

// -- GatheringService implementation ----------------------------------------------------------------------------------

type gatheringService struct {
	repo   repos.GatheringRepo
	logger *logrus.Entry
}

// NewGatheringService creates a new gathering service instance
func NewGatheringService(repo repos.GatheringRepo, logger *logrus.Entry) GatheringService {
	return &gatheringService{
		repo:   repo,
		logger: logger,
	}
}

// List returns all gatherings ordered by name
func (s *gatheringService) List(ctx context.Context) ([]models.Gathering, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Listing gatherings failed")
		return nil, storageError(err, "Error while listing gatherings")
	}
	return list, nil
}

// Get returns the gathering with the given ID
func (s *gatheringService) Get(ctx context.Context, id string) (*models.Gathering, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrCodeGatheringNotFound, fmt.Sprintf("Gathering '%s'", id))
	}
	return g, nil
}

// Create creates a new user event. Recurring gatherings are only created from the configuration
func (s *gatheringService) Create(ctx context.Context, gathering *models.Gathering) (*models.Gathering, error) {
	gathering.Name = strings.TrimSpace(gathering.Name)
	gathering.Location = strings.TrimSpace(gathering.Location)
	gathering.Type = models.GatheringUserEvent
	if gathering.Location == "" {
		gathering.Location = models.DefaultUserLocation
	}
	if err := validationError(gathering); err != nil {
		return nil, err
	}
	gathering.ID = uuid.New().String()
	if err := s.repo.Create(ctx, gathering); err != nil {
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Gathering creation failed")
		return nil, storageError(err, "Failed to write gathering to storage")
	}
	ctxhelper.LoggerOr(ctx, s.logger).WithField(log.FldGathering, gathering.ID).Info("Gathering created")
	return gathering, nil
}

// Rename changes the name of a user event
func (s *gatheringService) Rename(ctx context.Context, id string, name string) (*models.Gathering, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.UserCreated() {
		return nil, MakeError(
			http.StatusForbidden,
			ErrCodePermissionDenied,
			"Only user-created gatherings may be renamed",
		)
	}
	g.Name = strings.TrimSpace(name)
	if err := validationError(g); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, g); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, notFoundOr(err, ErrCodeGatheringNotFound, fmt.Sprintf("Gathering '%s'", id))
		}
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).Error("Gathering update failed")
		return nil, storageError(err, fmt.Sprintf("Error while updating gathering '%s'", id))
	}
	return g, nil
}

// Delete removes a gathering together with its sessions
func (s *gatheringService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err != repos.ErrEntityNotExisting {
			ctxhelper.LoggerOr(ctx, s.logger).WithError(err).WithField(log.FldGathering, id).Error("Gathering deletion failed")
		}
		return notFoundOr(err, ErrCodeGatheringNotFound, fmt.Sprintf("Gathering '%s'", id))
	}
	return nil
}

// SeedGatherings creates the given gatherings if the repository does not hold any yet
func SeedGatherings(ctx context.Context, repo repos.GatheringRepo, seeds []models.SeedGathering, logger *logrus.Entry) error {
	num, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if num > 0 {
		return nil
	}
	for _, seed := range seeds {
		g := models.Gathering{
			ID:          uuid.New().String(),
			Name:        seed.Name,
			Location:    seed.Location,
			Type:        seed.Type,
			Description: seed.Description,
		}
		if err := validate.Struct(&g); err != nil {
			return fmt.Errorf("SeedGatherings: Gathering '%s' is invalid: %v", seed.Name, err)
		}
		if err := repo.Create(ctx, &g); err != nil {
			return fmt.Errorf("SeedGatherings: Failed to create gathering '%s': %v", seed.Name, err)
		}
		logger.WithFields(logrus.Fields{
			log.FldGathering: g.ID,
			"name":           g.Name,
		}).Info("Seeded gathering")
	}
	return nil
}
