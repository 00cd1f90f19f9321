package repository

import (
	"gorm.io/gorm"
)

// GormStore is the GORM implementation of Store. The zero value is not
// usable; construct with NewStore.
type GormStore struct {
	db *gorm.DB
}

// NewStore creates a Store over the given database handle
func NewStore(db *gorm.DB) Store {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository {
	return &GormUserRepository{db: s.db}
}

func (s *GormStore) Workspaces() WorkspaceRepository {
	return &GormWorkspaceRepository{db: s.db}
}

func (s *GormStore) Projects() ProjectRepository {
	return &GormProjectRepository{db: s.db}
}

func (s *GormStore) Tasks() TaskRepository {
	return &GormTaskRepository{db: s.db}
}

func (s *GormStore) Activity() ActivityRepository {
	return &GormActivityRepository{db: s.db}
}

// WithTransaction runs fn against a Store bound to a single transaction,
// committing on nil and rolling back on error. Nested calls join the
// surrounding transaction (GORM savepoints).
func (s *GormStore) WithTransaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
