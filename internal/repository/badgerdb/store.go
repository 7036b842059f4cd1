package badgerdb

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/dom/league-chat/internal/repository"
)

// maxTxnRetries bounds optimistic transaction retries on badger.ErrConflict.
const maxTxnRetries = 8

func Open(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).
		WithLoggingLevel(badger.WARNING))
}

// OpenInMemory is used by tests and local development.
func OpenInMemory() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
}

func NewRepositories(db *badger.DB) *repository.Repositories {
	return &repository.Repositories{
		Identity: NewIdentityRepository(db),
		Message:  NewMessageRepository(db),
	}
}
