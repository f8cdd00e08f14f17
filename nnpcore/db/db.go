// Package db is nnpshare's persistence layer: a gorm database over
// glebarez/sqlite holding admin API keys and the session audit log. It is
// purely observational — the frontend/backend protocol itself never
// touches a database.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the underlying gorm handle, mirroring HSDatabase's role as the
// single entry point other packages call through.
type DB struct {
	gorm *gorm.DB
}

// Open opens (creating if needed) a sqlite database at path and runs
// AutoMigrate for nnpshare's models.
func Open(path string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("nnpcore/db: open %q: %w", path, err)
	}

	if err := gdb.AutoMigrate(&AdminKey{}, &AuditRecord{}); err != nil {
		return nil, fmt.Errorf("nnpcore/db: migrate: %w", err)
	}

	return &DB{gorm: gdb}, nil
}

// Close releases the underlying database connection.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
