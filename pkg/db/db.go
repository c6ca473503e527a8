package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
)

// SetupDatabase opens the configured database and brings its schema up to date.
// PostgreSQL schemas are owned by the embedded SQL migrations; SQLite files
// are migrated from the models.
func SetupDatabase(logger *logrus.Logger, config *DBConfig) (*gorm.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver": config.Driver,
		"target": config.Redacted(),
	}).Debug("Starting database setup")

	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres:
		if err := RunMigrations(logger, config); err != nil {
			return nil, err
		}
		dialector = postgres.Open(config.PostgresDSN())
	case DriverSQLite:
		if dir := filepath.Dir(config.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(config.SQLiteDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  NewGormLogrusLogger(logger),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if config.Driver == DriverSQLite {
		// single writer; avoids SQLITE_BUSY under concurrent steps
		sqlDB.SetMaxOpenConns(1)
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
		}
	}

	logger.WithField("driver", config.Driver).Info("Database setup completed successfully")
	return db, nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
