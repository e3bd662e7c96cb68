package repo

import (
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
)

type Repository struct {
	Interview IInterview
	DB        *sql.DB
}

// New builds the SQL backed repository on top of an ent driver.
func New(drv *entsql.Driver) *Repository {
	return &Repository{
		DB:        drv.DB(),
		Interview: NewInterviewRepository(drv.DB(), drv.Dialect()),
	}
}

// NewMemory builds a repository that keeps everything in process memory.
func NewMemory() *Repository {
	return &Repository{
		Interview: NewMemoryInterviewRepository(),
	}
}
