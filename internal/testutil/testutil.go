// Package testutil holds helpers shared by the HTTP tests: an in-memory
// storage.Storage with a deterministic clock and call counting.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FakeStorage is an in-memory storage.Storage. Every call advances its
// clock by one millisecond, so creation order is always observable.
type FakeStorage struct {
	mu       sync.Mutex
	students map[primitive.ObjectID]types.Student
	clock    time.Time
	calls    int

	// Err, when set, is returned by every operation.
	Err error
}

var _ storage.Storage = (*FakeStorage)(nil)

// NewFakeStorage returns an empty FakeStorage.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		students: make(map[primitive.ObjectID]types.Student),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Calls reports how many storage operations have run.
func (f *FakeStorage) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Len reports how many students are stored.
func (f *FakeStorage) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.students)
}

// enter must be called with mu held.
func (f *FakeStorage) enter() (time.Time, error) {
	f.calls++
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock, f.Err
}

func (f *FakeStorage) CreateStudent(_ context.Context, fields types.StudentFields) (types.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now, err := f.enter()
	if err != nil {
		return types.Student{}, err
	}

	s := types.Student{
		ID:         primitive.NewObjectID(),
		Name:       fields.Name,
		Age:        fields.Age,
		Department: fields.Department,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.students[s.ID] = s

	return s, nil
}

func (f *FakeStorage) GetStudents(_ context.Context, opts storage.ListOptions) ([]types.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.enter(); err != nil {
		return nil, err
	}

	all := make([]types.Student, 0, len(f.students))
	for _, s := range f.students {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.Hex() > all[j].ID.Hex()
	})

	if opts.Skip >= len(all) {
		return []types.Student{}, nil
	}
	all = all[opts.Skip:]
	if opts.Limit < len(all) {
		all = all[:opts.Limit]
	}

	return all, nil
}

func (f *FakeStorage) CountStudents(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.enter(); err != nil {
		return 0, err
	}
	return int64(len(f.students)), nil
}

func (f *FakeStorage) GetStudentByID(_ context.Context, id primitive.ObjectID) (types.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.enter(); err != nil {
		return types.Student{}, err
	}

	s, ok := f.students[id]
	if !ok {
		return types.Student{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *FakeStorage) UpdateStudentByID(_ context.Context, id primitive.ObjectID, patch types.StudentPatch) (types.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now, err := f.enter()
	if err != nil {
		return types.Student{}, err
	}

	s, ok := f.students[id]
	if !ok {
		return types.Student{}, storage.ErrNotFound
	}

	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Age != nil {
		s.Age = *patch.Age
	}
	if patch.Department != nil {
		s.Department = *patch.Department
	}
	s.UpdatedAt = now
	f.students[id] = s

	return s, nil
}

func (f *FakeStorage) DeleteStudentByID(_ context.Context, id primitive.ObjectID) (types.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.enter(); err != nil {
		return types.Student{}, err
	}

	s, ok := f.students[id]
	if !ok {
		return types.Student{}, storage.ErrNotFound
	}
	delete(f.students, id)

	return s, nil
}

func (f *FakeStorage) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Err
}

func (f *FakeStorage) Close(_ context.Context) error {
	return nil
}
