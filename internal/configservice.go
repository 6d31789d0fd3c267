package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
)

var (
	// ErrIllegalCategory is the error returned when a category name does not have the form of a category slug
	ErrIllegalCategory = MakeError(http.StatusBadRequest, ErrCodeIllegalValue, "Illegal category name provided")

	categorySlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// ConfigService gives access to the application's configuration
type ConfigService interface {
	// Categories returns the known song categories ordered by name
	Categories(ctx context.Context) []string
	// IsKnownCategory checks if songs may be filed under the given category
	IsKnownCategory(category string) bool
	// AddCategory adds a new category to the list of known ones and writes the configuration
	AddCategory(ctx context.Context, category string) error
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given JSON file and returns it
	LoadFromFile(ctx context.Context, filename string) error
	// Write writes the current application configuration to the default file name
	Write(ctx context.Context) error
	// WriteToFile writes the current application configuration to a JSON file
	WriteToFile(ctx context.Context, filename string) error
	// GetConfig retuns the current application configuration
	GetConfig(ctx context.Context) models.AppConfig
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

// Simple index structure to speed up category lookups
type categoryIdx struct {
	sync.RWMutex
	data map[string]bool
}

type configService struct {
	configFilename string
	config         *models.AppConfig
	categories     *categoryIdx
}

// NewConfigService creates a new configuration service instance with the given default file name
func NewConfigService(configFilename string) ConfigService {
	s := &configService{
		configFilename: configFilename,
		categories: &categoryIdx{
			data: make(map[string]bool),
		},
	}
	s.buildCategoryIdx()
	return s
}

func (s *configService) categoryIdxToSlice() []string {
	ret := []string{}
	for item := range s.categories.data {
		ret = append(ret, item)
	}
	sort.Strings(ret)
	return ret
}

func (s *configService) buildCategoryIdx() {
	conf := s.GetConfig(context.Background())
	s.categories.Lock()
	defer s.categories.Unlock()
	s.categories.data = make(map[string]bool)
	for _, cat := range conf.Categories {
		s.categories.data[cat] = true
	}
	// The community category always exists - it is where new songs go
	s.categories.data[models.CategoryCommunity] = true
}

// Categories returns the known song categories ordered by name
func (s *configService) Categories(ctx context.Context) []string {
	s.categories.RLock()
	defer s.categories.RUnlock()
	return s.categoryIdxToSlice()
}

// IsKnownCategory checks if songs may be filed under the given category
func (s *configService) IsKnownCategory(category string) bool {
	s.categories.RLock()
	defer s.categories.RUnlock()
	return s.categories.data[category]
}

// AddCategory adds a new category to the list of known ones and writes the configuration
func (s *configService) AddCategory(ctx context.Context, category string) error {
	logger := ctxhelper.Logger(ctx)
	category = strings.ToLower(strings.TrimSpace(category))
	if category == models.CategoryAll || !categorySlug.MatchString(category) {
		return ErrIllegalCategory
	}
	if s.IsKnownCategory(category) {
		// Already there - just ignore
		return nil
	}
	logger.WithField(log.FldCategory, category).Info("Adding song category")
	s.categories.Lock()
	s.categories.data[category] = true
	if s.config == nil {
		if conf, err := models.GetDefaultConfig(); err == nil {
			s.config = conf
		}
	}
	if s.config != nil {
		s.config.Categories = s.categoryIdxToSlice()
	}
	s.categories.Unlock()
	return s.Write(ctx)
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile loads the configuration from the given JSON file and returns it
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Loading configuration file")
	conf, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: cannot load configuration file")
	}
	defer f.Close()
	if err = json.NewDecoder(f).Decode(&conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to decode configuration file")
	}
	s.config = conf
	logger.Info("Rebuilding index of song categories...")
	s.buildCategoryIdx()
	return nil
}

// Write writes the current application configuration to the default file name
func (s *configService) Write(ctx context.Context) error {
	return s.WriteToFile(ctx, s.configFilename)
}

// WriteToFile writes the current application configuration to a JSON file
func (s *configService) WriteToFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Writing configuration file")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "WriteToFile: Cannot open configuration file '%s' to write to", filename)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	conf := s.GetConfig(ctx)
	if err := enc.Encode(&conf); err != nil {
		return errors.Wrap(err, "WriteToFile: Failed to serialize configuration data")
	}
	return nil
}

// GetConfig retuns the current application configuration
func (s *configService) GetConfig(ctx context.Context) models.AppConfig {
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			ret = *tmp
		}
	}
	return ret
}
