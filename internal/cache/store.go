package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PackageRecord is one persisted row of a resolved package dependency:
// the canonical package URI, its declared checksum, and the local
// extraction path once fetched. Mirrors the teacher's flat,
// gorm-tagged row style (models.Stage/Apply/Session) rather than a
// normalized multi-table schema, since the cache's access pattern is
// always a point lookup by URI.
type PackageRecord struct {
	URI          string `gorm:"primaryKey;type:varchar(512)"`
	Version      string `gorm:"type:varchar(100)"`
	Checksum     string `gorm:"type:varchar(64)"`
	LocalPath    string `gorm:"type:text"`
	ResolvedFrom string `gorm:"type:varchar(32)"` // "remote" or "local"
}

func (PackageRecord) TableName() string { return "package_records" }

// Store is a persistent, sqlite-backed ledger of resolved package
// dependencies, surviving across evaluator runs. `pkl project resolve`
// writes records into it; the package: factory records each verified
// download in it and reads a checksum from it when no project-declared
// checksum is available. Grounded directly on db/sqlite.go's
// gorm.Open(sqlite.Open(dsn)) + AutoMigrate connection pattern; the
// teacher's libsql-over-HTTP branch is dropped (nothing in this domain
// speaks libsql), leaving the plain local-file dialector.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (creating if necessary) a sqlite-backed package store
// at dsn, running AutoMigrate for PackageRecord.
func OpenStore(dsn string, debug bool) (*Store, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create package store directory: %w", err)
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to package store: %w", err)
	}
	if err := db.AutoMigrate(&PackageRecord{}); err != nil {
		return nil, fmt.Errorf("package store migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Put inserts or replaces the record for rec.URI.
func (s *Store) Put(rec PackageRecord) error {
	return s.db.Save(&rec).Error
}

// Get looks up a previously resolved package record by URI.
func (s *Store) Get(uri string) (PackageRecord, bool, error) {
	var rec PackageRecord
	err := s.db.First(&rec, "uri = ?", uri).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return PackageRecord{}, false, nil
		}
		return PackageRecord{}, false, err
	}
	return rec, true, nil
}

// ChecksumOf adapts Store to resolve/scheme.PackageFactory's
// ChecksumOf hook.
func (s *Store) ChecksumOf(packageURI string) (string, bool) {
	rec, ok, err := s.Get(packageURI)
	if err != nil || !ok {
		return "", false
	}
	return rec.Checksum, true
}

// Close releases the underlying sql.DB connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
