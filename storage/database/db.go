package database

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/storage/database/migrations"
)

// Open connects to the SQL database configured by conf.Database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case core.EnginePostgres, core.EngineSQLite:
	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
	if conf.Database.DSN == "" {
		return nil, errors.New("database DSN is not set")
	}

	db, err := sqlx.Open(conf.Database.Engine, conf.Database.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Database.Engine == core.EngineSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func prepareGoose(db *sqlx.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	return nil
}

// Migrate applies every pending migration.
func Migrate(db *sqlx.DB) error {
	return RunMigrations(db, "up")
}

// RunMigrations runs a goose command (up, down, status, version, redo, reset, ...) against the database.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	if err := goose.Run(command, db.DB, ".", args...); err != nil {
		return errors.Wrapf(err, "running migrations: %s", command)
	}
	return nil
}
