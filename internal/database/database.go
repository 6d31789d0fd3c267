// Package database opens the SQLite database BhajanBook keeps its catalog and sessions in
package database

import (
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/derWhity/bhajanbook/internal/filter"
)

// DriverName is the name of the SQLite driver variant that knows the casefold function
const DriverName = "sqlite3_bhajanbook"

var registerOnce sync.Once

// registerDriver registers the SQLite driver with the case folding function used by catalog searches
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc(filter.SQLFoldFunc, filter.Fold, true)
			},
		})
	})
}

// Open opens the SQLite database at the given DSN and checks that it can be reached
func Open(dsn string) (*sqlx.DB, error) {
	registerDriver()
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "Open: Failed to open database")
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Open: Database cannot be reached")
	}
	return db, nil
}

// OpenMemory opens a private in-memory database. All users of the returned handle share the same database
func OpenMemory() (*sqlx.DB, error) {
	db, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	// Every new connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)
	return db, nil
}
