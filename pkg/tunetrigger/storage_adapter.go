package tunetrigger

import (
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/storage"
)

// storageAdapter exposes storage.DBClient as a Storage.
type storageAdapter struct {
	*storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{DBClient: db}, nil
}
