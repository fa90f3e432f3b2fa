// Package gorm holds database plumbing shared by SQL-backed storages.
package gorm

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config is the database section of the embedding application's
// configuration.
type Config struct {
	DSN string `yaml:"dsn" doc:"Postgres connection string."`
}

// NewPostgres opens a postgres connection logging through logrus.
func NewPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: LogrusLogger})
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
