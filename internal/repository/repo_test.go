package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"safepath/internal/database"
	"safepath/internal/pkg/logging"

	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:repo_test_%s?mode=memory&cache=shared", name)
	db, err := database.Connect(context.Background(), dsn, logging.Nop())
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return db
}
