package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the ORM-backed repositories. A Store obtained inside
// Transaction shares one database transaction across all repositories.
type Store struct {
	db           *gorm.DB
	Users        *UserRepository
	Roles        *RoleRepository
	Staff        *StaffRepository
	Audit        *AuditRepository
	Schoolhouses *SchoolhouseRepository
	Instructors  *InstructorRepository
	Media        *MediaRepository
	Classes      *ClassRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        NewUserRepository(db),
		Roles:        NewRoleRepository(db),
		Staff:        NewStaffRepository(db),
		Audit:        NewAuditRepository(db),
		Schoolhouses: NewSchoolhouseRepository(db),
		Instructors:  NewInstructorRepository(db),
		Media:        NewMediaRepository(db),
		Classes:      NewClassRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
