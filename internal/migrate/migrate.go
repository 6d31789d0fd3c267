// Package migrate handles SQL database migration for the internal BhajanBook database
package migrate

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var migrations []dbMigration

type dbMigration struct {
	Version uint
	Queries []string
}

// Execute runs the current DB migration on the given database. All queries of a migration run in one transaction
func (mig *dbMigration) Execute(db *sqlx.DB, logger *logrus.Entry) error {
	// Check if the migration has already run
	var success = false
	err := db.QueryRow(`SELECT success FROM Migrations WHERE version = $1`, mig.Version).Scan(&success)
	if err != nil && err != sql.ErrNoRows {
		logger.WithError(err).Error("Failed to fetch version information")
		return err
	}
	if success {
		return nil
	}
	logger.Infof("Executing DB migration #%d", mig.Version)
	tx, err := db.Beginx()
	if err != nil {
		return errors.Wrap(err, "Execute: Failed to start transaction")
	}
	for i, query := range mig.Queries {
		logger.Debugf("Query %d of %d...", i+1, len(mig.Queries))
		if _, err := tx.Exec(query); err != nil {
			logger.WithError(err).Errorf("Query #%d failed", i+1)
			tx.Rollback()
			db.Exec(`REPLACE INTO Migrations(version, success) VALUES($1, 0)`, mig.Version)
			return errors.Wrapf(err, "Execute: Query #%d of migration #%d failed", i+1, mig.Version)
		}
	}
	// Queries executed successfully - save our status
	if _, err := tx.Exec(`REPLACE INTO Migrations(version, success) VALUES($1, 1)`, mig.Version); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "Execute: Failed to store migration status")
	}
	return errors.Wrap(tx.Commit(), "Execute: Failed to commit migration")
}

// ExecuteMigrationsOnDb executes the database migrations on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, logger *logrus.Entry) error {
	// Create the migrations table if it does not exist, yet
	query := `CREATE TABLE IF NOT EXISTS Migrations (
                version   INTEGER NOT NULL,
                success   INTEGER NOT NULL DEFAULT 0,
                PRIMARY KEY(version)
            )`
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// The migrations are part of the package
func init() {
	migrations = []dbMigration{
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE "Songs" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    title VARCHAR(255) NOT NULL,
                    localTitle VARCHAR(255) NOT NULL,
                    category VARCHAR(64) NOT NULL,
                    body TEXT NOT NULL,
                    lyricsFile VARCHAR(255) NOT NULL,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "SongKeywords" (
                    songId VARCHAR(36) NOT NULL,
                    keyword VARCHAR(128) NOT NULL,
                    PRIMARY KEY(songId, keyword)
                );`,
				`CREATE TABLE "Gatherings" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    name VARCHAR(128) NOT NULL,
                    location VARCHAR(128) NOT NULL DEFAULT '',
                    type VARCHAR(16) NOT NULL,
                    description TEXT NOT NULL DEFAULT '',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Sessions" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    gatheringId VARCHAR(36) NOT NULL,
                    date DATE NOT NULL,
                    status VARCHAR(16) NOT NULL DEFAULT 'UPCOMING',
                    notes TEXT NOT NULL DEFAULT '',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "SessionEntries" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    sessionId VARCHAR(36) NOT NULL,
                    songId VARCHAR(36) NOT NULL,
                    title VARCHAR(255) NOT NULL DEFAULT '',
                    localTitle VARCHAR(255) NOT NULL DEFAULT '',
                    position INTEGER NOT NULL,
                    note VARCHAR(1024) NOT NULL DEFAULT ''
                );`,
				`CREATE UNIQUE INDEX idx_song_lyricsfile ON Songs (lyricsFile);`,
				`CREATE INDEX idx_song_title ON Songs (title ASC, id ASC);`,
				`CREATE INDEX idx_song_category ON Songs (category);`,
				`CREATE INDEX idx_session_gathering ON Sessions (gatheringId ASC, date ASC);`,
				`CREATE INDEX idx_sessionentry_session ON SessionEntries (sessionId ASC, position ASC);`,
			},
		},
		{
			Version: 2,
			Queries: []string{
				`ALTER TABLE Songs ADD COLUMN hasEnglish INTEGER NOT NULL DEFAULT 0;`,
				`ALTER TABLE Songs ADD COLUMN hasHindi INTEGER NOT NULL DEFAULT 0;`,
				`ALTER TABLE Songs ADD COLUMN hasGerman INTEGER NOT NULL DEFAULT 0;`,
				`ALTER TABLE Songs ADD COLUMN hasAudio INTEGER NOT NULL DEFAULT 0;`,
				`ALTER TABLE Songs ADD COLUMN audioUrl VARCHAR(512) NOT NULL DEFAULT '';`,
			},
		},
	}
}
