package database

import (
	"database/sql"
	"embed"
	"sync"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// MigrationManager applies the embedded goose migrations and checks the
// resulting schema.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for db.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations brings the schema up to the latest version.
func (m *MigrationManager) ApplyMigrations() error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := configureGoose(); err != nil {
		return err
	}
	if err := goose.Up(m.db, migrationsDir); err != nil {
		return errors.Wrap(err, "applying migrations")
	}
	return nil
}

// Version returns the current schema version.
func (m *MigrationManager) Version() (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := configureGoose(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, errors.Wrap(err, "reading schema version")
	}
	return v, nil
}

// ValidateSchema ensures the database matches what the stores expect.
func (m *MigrationManager) ValidateSchema() error {
	v := NewSchemaValidator(m.db)
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

func configureGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logrus.WithField("component", "migrations")})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return nil
}

// gooseLogger routes goose output through logrus.
type gooseLogger struct {
	entry *logrus.Entry
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.entry.Infof(format, v...) }
