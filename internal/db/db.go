package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"trackline-backend/config"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnablePartialIndexes {
		log.Info("applying partial indexes")
		if err := applyPartialIndexes(db); err != nil {
			log.Warn("failed to apply partial indexes; continuing without them", "error", err)
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates the engine tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Point{},
		&model.Track{},
		&model.TrackSegment{},
		&model.UserSetting{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyPartialIndexes adds postgres-only indexes serving the untracked point
// scans and the duplicate lookup.
func applyPartialIndexes(db *gorm.DB) error {
	ddls := []string{
		"CREATE INDEX IF NOT EXISTS idx_points_untracked ON points (user_id, timestamp) WHERE track_id IS NULL;",
		"CREATE INDEX IF NOT EXISTS idx_tracks_user_created ON tracks (user_id, created_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
