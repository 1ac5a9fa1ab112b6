package testutil

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/BoostBoard/app/models"
)

// NewTestDB creates an in-memory SQLite database migrated with every model of
// the application. The connection is closed when the test finishes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}

	// a single connection serializes transactions the way row locks would
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// SeedCommunity inserts a community and fails the test on error.
func SeedCommunity(t *testing.T, db *gorm.DB, community *models.Community) *models.Community {
	t.Helper()

	if community.Name == "" {
		community.Name = fmt.Sprintf("community-%d", community.ID)
	}
	if community.Tier == "" {
		community.Tier = "normal"
	}
	if err := db.Create(community).Error; err != nil {
		t.Fatalf("failed to seed community: %v", err)
	}
	return community
}
