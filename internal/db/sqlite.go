package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mentorium/backend/internal/platform/envutil"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

// SQLiteService holds the local catalog cache. The schema is migrated on
// startup; the cache is disposable and rebuilt from upstream on refresh.
type SQLiteService struct {
	log *logger.Logger
	DB  *gorm.DB
}

func NewSQLiteService(log *logger.Logger) (*SQLiteService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	path := envutil.Str("SQLITE_DB_PATH", "data/catalog.db")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}

	if err := gdb.AutoMigrate(&types.CatalogEntry{}); err != nil {
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	log.Info("SQLite catalog cache ready", "path", path)
	return &SQLiteService{log: log.With("service", "SQLiteService"), DB: gdb}, nil
}

func (s *SQLiteService) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
