package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/kardianos/osext"
	"github.com/sirupsen/logrus"

	bhajanbook "github.com/derWhity/bhajanbook/internal"
	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/database"
	"github.com/derWhity/bhajanbook/internal/importer"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/migrate"
	"github.com/derWhity/bhajanbook/internal/ocr"
	"github.com/derWhity/bhajanbook/internal/repos"
	gatheringrepo "github.com/derWhity/bhajanbook/internal/repos/gathering/sqlite"
	sessionrepo "github.com/derWhity/bhajanbook/internal/repos/session/sqlite"
	snapbadger "github.com/derWhity/bhajanbook/internal/repos/snapshot/badger"
	snapinmem "github.com/derWhity/bhajanbook/internal/repos/snapshot/inmem"
	songrepo "github.com/derWhity/bhajanbook/internal/repos/song/sqlite"
)

const (
	appName    = "BhajanBook"
	appVersion = "0.1.0"
	dbFile     = "bhajanbook.db"
)

// Checks and tries to create the given directory recursively (or panics if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else {
		if !fileInfo.IsDir() {
			logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
		}
	}
}

// openSnapshots opens the store for the offline catalog snapshot. Without a configured directory, the snapshot only
// lives as long as the process
func openSnapshots(dir string, logger *logrus.Entry) (repos.SnapshotRepo, func() error) {
	if dir == "" {
		logger.Info("No snapshot directory configured - keeping the offline snapshot in memory")
		repo := snapinmem.New()
		return repo, repo.Close
	}
	checkAndCreateDir(dir, logger)
	repo, err := snapbadger.Open(snapbadger.Config{Path: dir}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open the snapshot store")
	}
	return repo, repo.Close
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)
	flag.Parse()

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = ctxhelper.WithLogger(ctx, logger)

	// Load the main configuration file
	cs := bhajanbook.NewConfigService(*configFile)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Error("Cannot load config. Using defaults")
	}
	conf := cs.GetConfig(ctx)

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Set up the database connection and perform pending migrations
	db, err := database.Open(filepath.Join(conf.DataDir, dbFile))
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	defer db.Close()
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		logger.WithError(err).Fatal("Database migration has failed. Please check database for consistency and try again.")
	}

	songRepo := songrepo.New(db, logger)
	gatheringRepo := gatheringrepo.New(db, logger)
	sessionRepo := sessionrepo.New(db, logger)

	if err = bhajanbook.SeedGatherings(ctx, gatheringRepo, conf.SeedGatherings, logger); err != nil {
		logger.WithError(err).Error("Failed to create the initial gatherings")
	}

	snapshots, closeSnapshots := openSnapshots(conf.SnapshotDir, logger)
	defer closeSnapshots()
	cat := catalog.New(songRepo, snapshots, logger)

	imp := importer.New(songRepo, conf.ImportRoot, logger)
	extractor := ocr.NewTesseract(conf.OCR, logger)

	songServ := bhajanbook.NewSongService(songRepo, cat, cs, logger)
	gathServ := bhajanbook.NewGatheringService(gatheringRepo, logger)
	sessServ := bhajanbook.NewSessionService(sessionRepo, gatheringRepo, songRepo, cs, logger)
	impServ := bhajanbook.NewImportService(imp, logger)
	ocrServ := bhajanbook.NewOCRService(extractor, logger)

	httpLogger := logger.WithField(log.FldTransport, "HTTP")

	h := bhajanbook.MakeHTTPHandler(
		songServ,
		gathServ,
		sessServ,
		impServ,
		ocrServ,
		httpLogger,
	)

	// Start listening
	errs := make(chan error)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		logger.Info("Stopping pending imports...")
		imp.StopAll()
		logger.Info("Imports have been stopped")
		errs <- err
	}()

	go func() {
		httpLogger.WithField("addr", conf.ListenAddress).Info("Starting listening port")
		errs <- http.ListenAndServe(conf.ListenAddress, h)
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := conf.ListenAddress[strings.LastIndex(conf.ListenAddress, ":")+1:]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if resp, err := http.Get(url); err == nil {
				resp.Body.Close()
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutdown complete")
}
