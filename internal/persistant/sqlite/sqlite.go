package sqlite

import (
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Initialize opens (or creates) the sqlite database file and auto
// migrates given models. Unlike the postgres opener there is no connect
// retry: opening a local file either works or never will.
func Initialize(path string, models []any) (*gorm.DB, error) {
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDb, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDb.Close()
}
