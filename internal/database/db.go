package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	return AutoMigrateDB(DB)
}

// AutoMigrateDB runs migrations against the given database handle.
// Accepts a db parameter to support in-memory test databases.
func AutoMigrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Alert{},
		&ActivityLog{},
		&WebhookConfig{},
		&NotificationConfig{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// InitializeDefaults creates default records if they don't exist:
// one disabled WebhookConfig per known source and the singleton
// NotificationConfig.
func InitializeDefaults() error {
	return InitializeDefaultsDB(DB)
}

// InitializeDefaultsDB seeds defaults on the given database handle
func InitializeDefaultsDB(db *gorm.DB) error {
	for _, source := range ValidAlertSources() {
		var existing WebhookConfig
		err := db.Where("source = ?", source).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		cfg := WebhookConfig{
			Source:   source,
			Name:     string(source),
			Endpoint: "/webhook/" + string(source),
			Enabled:  false,
		}
		if err := db.Create(&cfg).Error; err != nil {
			return fmt.Errorf("failed to seed webhook config for %s: %w", source, err)
		}
		log.Printf("Created default webhook config for source: %s (disabled)", source)
	}

	var count int64
	db.Model(&NotificationConfig{}).Count(&count)
	if count == 0 {
		cfg := &NotificationConfig{
			OnCritical: true,
			OnAutofix:  true,
			OnAll:      false,
		}
		if err := db.Create(cfg).Error; err != nil {
			return fmt.Errorf("failed to create default notification config: %w", err)
		}
		log.Println("Created default notification config (no delivery target)")
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
