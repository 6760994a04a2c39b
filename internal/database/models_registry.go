package database

import "veristat/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Post{},
		&models.Comment{},
		&models.Scan{},
		&models.Like{},
		&models.UserStats{},
	}
}
