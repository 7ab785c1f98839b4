package storage

import "fmt"

// NewStore builds the backend selected by kind. An empty kind means the
// in-memory store; "sqlite" requires building with the sqlite tag and uses
// sqlitePath as the database file.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported closes backends that hold external resources. The memory
// store has nothing to release and passes through silently.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
