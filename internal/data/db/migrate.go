package db

import (
	"fmt"

	types "github.com/yungbote/alohomora/internal/domain"
	"gorm.io/gorm"
)

// AutoMigrateAuthority creates the registry, token and instance tables. Replicas
// use the same schema.
func AutoMigrateAuthority(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AuthorityModels()...); err != nil {
		return fmt.Errorf("automigrate authority schema: %w", err)
	}
	return nil
}

func AutoMigrateClient(db *gorm.DB) error {
	if err := db.AutoMigrate(types.ClientModels()...); err != nil {
		return fmt.Errorf("automigrate client schema: %w", err)
	}
	return nil
}
