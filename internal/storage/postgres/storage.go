package postgres

import (
	"database/sql"
)

// Storage groups the Postgres-backed repositories.
type Storage struct {
	*UserRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		UserRepository: NewUserRepository(db),
	}
}
