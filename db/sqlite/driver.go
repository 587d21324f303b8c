package sqlite

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a GORM *DB backed by SQLite (mattn/go-sqlite3).
//
// Every transaction is started with BEGIN IMMEDIATE so concurrent writers
// serialise on the database lock instead of failing on upgrade.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

// OpenMemory opens a private in-memory database identified by name.
// A single connection is kept so every query sees the same database.
func OpenMemory(name string) (*gorm.DB, error) {
	db, err := Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
}
