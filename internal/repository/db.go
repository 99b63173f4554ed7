package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

// NewDB opens the database named by dsn and runs migrations. DSNs starting
// with postgres:// or postgresql:// use Postgres; anything else is a SQLite path.
func NewDB(dsn string, lg *log.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "dailyplan.db"
	}

	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	if lg == nil {
		lg = log.StandardLogger()
	}
	dbLogger := logger.New(
		lg,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Task{}, &model.Note{}, &model.Journal{}); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}
	return nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn), nil
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}
	return sqlite.Open(dsn), nil
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// Advisory lock namespaces. Task and note lists of one user are locked
// independently.
const (
	lockTasks int32 = 1
	lockNotes int32 = 2
)

// lockOwnerQuery returns the statement that serializes writers of one user's
// rows inside a transaction, or ok=false when the dialect needs none. SQLite
// allows a single writer per database already.
func lockOwnerQuery(dialect string, namespace int32, userID uint) (query string, args []interface{}, ok bool) {
	if dialect != "postgres" {
		return "", nil, false
	}
	return "SELECT pg_advisory_xact_lock(?, ?)", []interface{}{namespace, int32(userID)}, true
}

// lockOwner takes the transaction-scoped lock for userID's rows in namespace.
// It is released on commit or rollback.
func lockOwner(tx *gorm.DB, namespace int32, userID uint) error {
	query, args, ok := lockOwnerQuery(tx.Dialector.Name(), namespace, userID)
	if !ok {
		return nil
	}
	if err := tx.Exec(query, args...).Error; err != nil {
		return fmt.Errorf("lock rows of user %d: %w", userID, err)
	}
	return nil
}

// notFound translates gorm's missing-row error into apperr.ErrNotFound with a
// client-facing message.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s not found", apperr.ErrNotFound, what)
	}
	return fmt.Errorf("find %s: %w", what, err)
}
