package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/client"
	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	snapbadger "github.com/derWhity/bhajanbook/internal/repos/snapshot/badger"
)

const (
	defaultServer  = "localhost:3000"
	defaultTimeout = 10 * time.Second
)

// app holds the state shared by all commands
type app struct {
	server      string
	snapshotDir string
	timeout     time.Duration
	verbose     bool

	logger *logrus.Entry
	client *client.Client
}

// defaultSnapshotDir returns the directory the offline snapshot is kept in if no other one is given
func defaultSnapshotDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".bhajanctl-snapshot"
	}
	return filepath.Join(dir, "bhajanctl", "snapshot")
}

// setup creates the logger and the API client before any command runs
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	l := logrus.New()
	l.SetOutput(cmd.ErrOrStderr())
	l.SetLevel(logrus.WarnLevel)
	if a.verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	a.logger = logrus.NewEntry(l)
	c, err := client.New(a.server, a.timeout, a.logger)
	if err != nil {
		return err
	}
	a.client = c
	cmd.SetContext(ctxhelper.WithLogger(cmd.Context(), a.logger))
	return nil
}

// withCatalog opens the offline snapshot and runs fn with a catalog façade in front of the server
func (a *app) withCatalog(fn func(cat *catalog.Catalog) error) error {
	snapshots, err := snapbadger.Open(snapbadger.Config{Path: a.snapshotDir, SyncWrites: true}, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close the snapshot store")
		}
	}()
	return fn(catalog.New(a.client, snapshots, a.logger))
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "bhajanctl",
		Short:             "Command line client for a BhajanBook server",
		Long:              `bhajanctl searches the song catalog of a BhajanBook server and plans the sessions of its gatherings.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.server, "server", "s", defaultServer, "Address of the BhajanBook server")
	flags.StringVar(&a.snapshotDir, "snapshot-dir", defaultSnapshotDir(), "Directory of the offline catalog snapshot")
	flags.DurationVar(&a.timeout, "timeout", defaultTimeout, "Timeout for every request sent to the server")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newSearchCmd(a),
		newDownloadCmd(a),
		newSongCmd(a),
		newCategoryCmd(a),
		newGatheringCmd(a),
		newSessionCmd(a),
		newSuggestCmd(a),
		newImportCmd(a),
	)
	return root
}

// printf writes to the command's output
func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
