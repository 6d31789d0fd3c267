package internal

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/importer"
	"github.com/derWhity/bhajanbook/internal/log"
)

// ImportService provides functionality for importing lyric collections from a directory into the song catalog
type ImportService interface {
	Start(ctx context.Context, dir string) (*importer.Job, error)
	List(ctx context.Context) ([]importer.Job, error)
	Get(ctx context.Context, dir string) (*importer.Job, error)
	Cancel(ctx context.Context, dir string) error
}

// -- ImportService implementation -------------------------------------------------------------------------------------

type importService struct {
	logger   *logrus.Entry
	importer *importer.Importer
}

// NewImportService creates a new import service instance using the provided importer and logger
func NewImportService(im *importer.Importer, logger *logrus.Entry) ImportService {
	return &importService{
		logger:   logger,
		importer: im,
	}
}

// Start queues a new import inside the importer
func (s *importService) Start(ctx context.Context, dir string) (*importer.Job, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Import directory missing",
			map[string]string{"field": "dir"},
		)
	}
	job, err := s.importer.Start(dir)
	switch err {
	case nil:
		ctxhelper.LoggerOr(ctx, s.logger).WithField(log.FldPath, job.RootDir).Info("Import queued")
		return job, nil
	case importer.ErrAlreadyQueued:
		return nil, MakeError(http.StatusConflict, ErrCodeImportRunning, "An import for this directory is already running")
	case importer.ErrOutsideRoot:
		return nil, MakeError(
			http.StatusNotFound,
			ErrCodeDirNotFound,
			fmt.Sprintf("Directory '%s' is not located inside the import root", dir),
		)
	}
	return nil, err
}

// List returns all imports known to the importer ordered by directory
func (s *importService) List(ctx context.Context) ([]importer.Job, error) {
	list := s.importer.StatusAll()
	sort.Slice(list, func(i, j int) bool {
		return list[i].RootDir < list[j].RootDir
	})
	return list, nil
}

// Get returns the import that has been started for the given directory
func (s *importService) Get(ctx context.Context, dir string) (*importer.Job, error) {
	job := s.importer.Status(dir)
	if job == nil {
		return nil, MakeError(http.StatusNotFound, ErrCodeImportNotFound, fmt.Sprintf("No import known for '%s'", dir))
	}
	return job, nil
}

// Cancel stops a queued or running import
func (s *importService) Cancel(ctx context.Context, dir string) error {
	if _, err := s.Get(ctx, dir); err != nil {
		return err
	}
	s.importer.Stop(dir)
	return nil
}
