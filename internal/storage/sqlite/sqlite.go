// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite stores everything in a single file on disk: no network and no
// separate server process. It backs local runs without a MongoDB instance
// and the storage tests (":memory:").
//
// Ids are still ObjectIDs, stored as their 24-char hex form, so clients see
// the same identifier scheme whichever backend is configured.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aanand-mishra/student-crud-api/internal/config"
	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/types"
	"go.mongodb.org/mongo-driver/bson/primitive"

	// Importing the driver also registers "sqlite3" with database/sql.
	"github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// Columns are always listed explicitly so Scan order is stable.
const studentColumns = "id, name, age, department, created_at, updated_at"

// New opens the SQLite database at cfg.Storage.StoragePath, creates the
// students table if it does not already exist, and returns a ready-to-use
// *SQLite.
func New(cfg *config.Config) (*SQLite, error) {
	db, err := sql.Open("sqlite3", cfg.Storage.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// Every connection to ":memory:" gets its own private database, so
	// pin the pool to one connection there.
	if strings.Contains(cfg.Storage.StoragePath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// CHECK constraints mirror the field rules, so the store rejects
	// invalid rows even if a caller skipped validation.
	//
	// Timestamps are unix milliseconds (the same precision MongoDB keeps).
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id         TEXT    PRIMARY KEY,
			name       TEXT    NOT NULL CHECK (length(name) BETWEEN 1 AND 100),
			age        INTEGER NOT NULL CHECK (age BETWEEN 1 AND 120),
			department TEXT    NOT NULL CHECK (length(department) BETWEEN 1 AND 50),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_students_created_at
			ON students (created_at DESC, id DESC);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// CreateStudent inserts a new row. The id is a fresh ObjectID and both
// timestamps are the insert time.
func (s *SQLite) CreateStudent(ctx context.Context, fields types.StudentFields) (types.Student, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	student := types.Student{
		ID:         primitive.NewObjectID(),
		Name:       fields.Name,
		Age:        fields.Age,
		Department: fields.Department,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		student.ID.Hex(),
		student.Name,
		student.Age,
		student.Department,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: exec: %w", mapError(err))
	}

	return student, nil
}

// GetStudentByID fetches exactly one student row matched by id.
func (s *SQLite) GetStudentByID(ctx context.Context, id primitive.ObjectID) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, id.Hex()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// GetStudents returns one page of students, newest first.
func (s *SQLite) GetStudents(ctx context.Context, opts storage.ListOptions) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT "+studentColumns+" FROM students"+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
	)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, opts.Limit, opts.Skip)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	students := make([]types.Student, 0)

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// CountStudents returns the number of rows in the students table.
func (s *SQLite) CountStudents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.Db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&n); err != nil {
		return 0, fmt.Errorf("CountStudents: %w", err)
	}
	return n, nil
}

// UpdateStudentByID sets only the provided columns plus updated_at.
// RETURNING hands back the row as stored, in the same statement.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id primitive.ObjectID, patch types.StudentPatch) (types.Student, error) {
	var (
		sets []string
		args []any
	)

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Age != nil {
		sets = append(sets, "age = ?")
		args = append(args, *patch.Age)
	}
	if patch.Department != nil {
		sets = append(sets, "department = ?")
		args = append(args, *patch.Department)
	}

	// updated_at never goes below created_at, even if the clock stepped back.
	sets = append(sets, "updated_at = MAX(created_at, ?)")
	args = append(args, time.Now().UTC().UnixMilli(), id.Hex())

	query := "UPDATE students SET " + strings.Join(sets, ", ") +
		" WHERE id = ? RETURNING " + studentColumns

	student, err := scanStudent(s.Db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", mapError(err))
	}

	return student, nil
}

// DeleteStudentByID removes a student row and returns what was removed.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id primitive.ObjectID) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"DELETE FROM students WHERE id = ? RETURNING "+studentColumns,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("DeleteStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, id.Hex()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, fmt.Errorf("DeleteStudentByID: %w", err)
	}

	return student, nil
}

// Ping verifies the database file is still reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLite) Close(_ context.Context) error {
	return s.Db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (types.Student, error) {
	var (
		student            types.Student
		hexID              string
		createdAt, updated int64
	)

	if err := row.Scan(
		&hexID,
		&student.Name,
		&student.Age,
		&student.Department,
		&createdAt,
		&updated,
	); err != nil {
		return types.Student{}, err
	}

	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return types.Student{}, fmt.Errorf("corrupt id %q: %w", hexID, err)
	}

	student.ID = id
	student.CreatedAt = time.UnixMilli(createdAt).UTC()
	student.UpdatedAt = time.UnixMilli(updated).UTC()

	return student, nil
}

// mapError turns a CHECK / NOT NULL violation into storage.ErrConstraint.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", storage.ErrConstraint, sqliteErr.Error())
	}
	return err
}
