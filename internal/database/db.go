package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kimbiofarm-backend/internal/config"
	"kimbiofarm-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory SQLite store.
const MemoryPath = ":memory:"

// Open connects to Postgres when DATABASE_URL is set, otherwise to the local SQLite
// file, and migrates the schema. The returned handle is passed to every service.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
	if cfg.DBLog {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.UsesPostgres() {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info().Msg("connected to postgres")
	} else {
		db, err = openSQLite(cfg.SQLitePath, gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenMemory returns a migrated in-memory store.
func OpenMemory() (*gorm.DB, error) {
	return Open(&config.Config{SQLitePath: MemoryPath})
}

func openSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		// immediate transactions take the write lock up front, so a concurrent
		// writer waits out busy_timeout instead of failing with SQLITE_BUSY
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if path == MemoryPath {
		// every new connection to :memory: would see an empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
	}
	_, _ = sqlDB.Exec("PRAGMA foreign_keys = ON;")

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Plant{},
		&models.Receipt{},
		&models.Dispatch{},
		&models.User{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return backfillSearchKeys(db)
}

// backfillSearchKeys fills search_key for plants stored before the column existed.
func backfillSearchKeys(db *gorm.DB) error {
	var plants []models.Plant
	if err := db.Where("search_key = '' OR search_key IS NULL").Find(&plants).Error; err != nil {
		return fmt.Errorf("load plants for search keys: %w", err)
	}
	for _, p := range plants {
		if err := db.Model(&models.Plant{}).
			Where("id = ?", p.ID).
			UpdateColumn("search_key", models.PlantSearchKey(p.Code, p.Name)).Error; err != nil {
			return fmt.Errorf("backfill search key %s: %w", p.Code, err)
		}
	}
	if len(plants) > 0 {
		log.Info().Int("plants", len(plants)).Msg("search keys backfilled")
	}
	return nil
}

// Close releases the pool behind db, logging rather than returning failures.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("close database")
	}
}
