// Package storage defines the Storage interface, the contract that any
// database backend must satisfy to work with this application.
//
// Handlers depend only on this interface. The MongoDB backend is the
// default; the SQLite backend satisfies the same contract for local runs
// and tests, and handler tests pass an in-memory fake.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/student-crud-api/internal/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no student matches the given id.
	ErrNotFound = errors.New("student not found")

	// ErrConstraint is returned when the store itself rejects a write
	// because a field constraint is violated.
	ErrConstraint = errors.New("student violates store constraints")
)

// Default pagination values.
const (
	DefaultLimit = 10
	DefaultSkip  = 0
)

// ListOptions windows the newest-first student listing.
type ListOptions struct {
	Limit int
	Skip  int
}

// Storage is the database contract.
//
// Every list is ordered newest-first by creation time, ties broken by id
// descending. Writes set CreatedAt / UpdatedAt themselves.
type Storage interface {
	// CreateStudent inserts a new student and returns it with the
	// store-assigned id and timestamps.
	CreateStudent(ctx context.Context, fields types.StudentFields) (types.Student, error)

	// GetStudents returns at most opts.Limit students after skipping
	// opts.Skip. Returns an empty slice (not nil) when nothing matches.
	GetStudents(ctx context.Context, opts ListOptions) ([]types.Student, error)

	// CountStudents returns the size of the whole collection.
	CountStudents(ctx context.Context) (int64, error)

	// GetStudentByID fetches one student, or ErrNotFound.
	GetStudentByID(ctx context.Context, id primitive.ObjectID) (types.Student, error)

	// UpdateStudentByID applies the non-nil fields of patch, refreshes
	// UpdatedAt and returns the post-update record, or ErrNotFound.
	UpdateStudentByID(ctx context.Context, id primitive.ObjectID, patch types.StudentPatch) (types.Student, error)

	// DeleteStudentByID removes a student permanently and returns the
	// removed record, or ErrNotFound.
	DeleteStudentByID(ctx context.Context, id primitive.ObjectID) (types.Student, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection(s).
	Close(ctx context.Context) error
}
