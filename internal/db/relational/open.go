package relational

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase opens the mirror database for the configured driver. sqlite
// keeps single-node deployments dependency-free, postgres backs shared ones.
func OpenDatabase(driver string, dsn string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	switch driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), gormConfig)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", driver)
	}
}
