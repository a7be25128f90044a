package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"echo-planner/internal/model"
)

// NewDB opens the task store and runs migrations. A postgres:// DSN picks
// the Postgres driver, anything else is treated as a SQLite file path.
// Schema creation is idempotent, so restarts are safe.
func NewDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "echo-bot.db"
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		if err := ensureDirForSQLite(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
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
