package student_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aanand-mishra/student-crud-api/internal/http/router"
	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/testutil"
	"github.com/aanand-mishra/student-crud-api/internal/types"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Count      *int            `json:"count"`
	TotalCount *int64          `json:"totalCount"`
	Data       json.RawMessage `json:"data"`
	Errors     []string        `json:"errors"`
}

func newServer() (http.Handler, *testutil.FakeStorage) {
	store := testutil.NewFakeStorage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return router.New(store, logger), store
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return do(t, h, method, path, "application/json", body)
}

func decodeStudent(t *testing.T, raw json.RawMessage) types.Student {
	t.Helper()
	var s types.Student
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("failed to decode student: %v", err)
	}
	return s
}

func createStudent(t *testing.T, h http.Handler, name string, age int, department string) types.Student {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"age":%d,"department":%q}`, name, age, department)
	rec, env := doJSON(t, h, http.MethodPost, "/api/students/createStudent", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected status 201, got %d (%s)", rec.Code, env.Message)
	}
	return decodeStudent(t, env.Data)
}

func TestCreate_ThenGetRoundTrips(t *testing.T) {
	h, _ := newServer()

	created := createStudent(t, h, "Ada Lovelace", 36, "Mathematics")
	if created.ID.IsZero() || created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamps, got %+v", created)
	}

	rec, env := doJSON(t, h, http.MethodGet, "/api/students/getStudent/"+created.ID.Hex(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !env.Success || env.Message != "Student retrieved successfully" {
		t.Errorf("unexpected envelope: %+v", env)
	}

	got := decodeStudent(t, env.Data)
	if got.ID != created.ID || got.Name != "Ada Lovelace" || got.Age != 36 || got.Department != "Mathematics" {
		t.Errorf("expected %+v, got %+v", created, got)
	}
}

func TestCreate_TrimsFields(t *testing.T) {
	h, _ := newServer()

	created := createStudent(t, h, "  Ada  ", 20, " CS ")
	if created.Name != "Ada" || created.Department != "CS" {
		t.Errorf("expected trimmed fields, got %q / %q", created.Name, created.Department)
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantErrors  []string
	}{
		{"missing name", `{"age":20,"department":"CS"}`, "Please provide name, age, and department", nil},
		{"missing age", `{"name":"Ada","department":"CS"}`, "Please provide name, age, and department", nil},
		{"missing department", `{"name":"Ada","age":20}`, "Please provide name, age, and department", nil},
		{"empty body", ``, "Please provide name, age, and department", nil},
		{"zero age", `{"name":"Ada","age":0,"department":"CS"}`, "Age must be a valid positive number", nil},
		{"negative age", `{"name":"Ada","age":-3,"department":"CS"}`, "Age must be a valid positive number", nil},
		{"non-numeric age", `{"name":"Ada","age":"old","department":"CS"}`, "Age must be a valid positive number", nil},
		{"age too large", `{"name":"Ada","age":121,"department":"CS"}`, "Validation error", []string{"Age cannot exceed 120"}},
		{
			"name too long",
			`{"name":"` + strings.Repeat("n", 101) + `","age":20,"department":"CS"}`,
			"Validation error",
			[]string{"Name cannot exceed 100 characters"},
		},
		{"malformed json", `{"name":`, "Invalid request body", []string{"Request body is not valid JSON"}},
		{
			"trailing data",
			`{"name":"Ada","age":20,"department":"CS"} garbage{`,
			"Invalid request body",
			[]string{"Request body is not valid JSON"},
		},
		{
			"second json value",
			`{"name":"Ada","age":20,"department":"CS"}{}`,
			"Invalid request body",
			[]string{"Request body is not valid JSON"},
		},
		{"name of wrong type", `{"name":123,"age":20,"department":"CS"}`, "Invalid request body", []string{"name must be a string"}},
		{"department of wrong type", `{"name":"Ada","age":20,"department":["CS"]}`, "Invalid request body", []string{"department must be a string"}},
		{"not an object", `[1,2]`, "Invalid request body", []string{"Request body must be a JSON object"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newServer()

			rec, env := doJSON(t, h, http.MethodPost, "/api/students/createStudent", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
			if env.Success || env.Message != tt.wantMessage {
				t.Errorf("unexpected envelope: %+v", env)
			}
			if tt.wantErrors != nil && strings.Join(env.Errors, "|") != strings.Join(tt.wantErrors, "|") {
				t.Errorf("expected errors %v, got %v", tt.wantErrors, env.Errors)
			}
			if strings.Contains(rec.Body.String(), "Go struct") || strings.Contains(rec.Body.String(), "json:") {
				t.Errorf("expected decoder internals kept out of the response, got %s", rec.Body.String())
			}
			if store.Len() != 0 {
				t.Errorf("expected nothing persisted, got %d students", store.Len())
			}
		})
	}
}

func TestCreate_BodyTooLarge(t *testing.T) {
	h, store := newServer()
	body := `{"name":"` + strings.Repeat("x", 2<<20) + `","age":20,"department":"CS"}`

	rec, env := doJSON(t, h, http.MethodPost, "/api/students/createStudent", body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rec.Code)
	}
	if env.Success || env.Message != "Request body too large" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if store.Len() != 0 {
		t.Errorf("expected nothing persisted, got %d students", store.Len())
	}
}

func TestStoreConstraint_IsValidationError(t *testing.T) {
	h, store := newServer()
	created := createStudent(t, h, "Ada", 20, "CS")
	store.Err = fmt.Errorf("insert: %w", storage.ErrConstraint)

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/students/createStudent", `{"name":"Ada","age":20,"department":"CS"}`},
		{http.MethodPut, "/api/students/updateStudent/" + created.ID.Hex(), `{"age":30}`},
	}

	for _, r := range requests {
		rec, env := doJSON(t, h, r.method, r.path, r.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", r.method, rec.Code)
		}
		if env.Success || env.Message != "Validation error" {
			t.Errorf("%s: unexpected envelope: %+v", r.method, env)
		}
	}
}

func TestCreate_FormEncoded(t *testing.T) {
	h, _ := newServer()

	rec, env := do(t, h, http.MethodPost, "/api/students/createStudent",
		"application/x-www-form-urlencoded", "name=Grace&age=45&department=Navy")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rec.Code, env.Message)
	}

	s := decodeStudent(t, env.Data)
	if s.Name != "Grace" || s.Age != 45 || s.Department != "Navy" {
		t.Errorf("unexpected student: %+v", s)
	}
}

func TestCreate_StoreFailureIsOpaque500(t *testing.T) {
	h, store := newServer()
	store.Err = errors.New("socket closed: secret-host:27017")

	rec, env := doJSON(t, h, http.MethodPost, "/api/students/createStudent", `{"name":"Ada","age":20,"department":"CS"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if env.Message != "Internal server error" || strings.Contains(rec.Body.String(), "secret-host") {
		t.Errorf("expected opaque error, got %s", rec.Body.String())
	}
}

func TestList_PaginatesNewestFirst(t *testing.T) {
	h, _ := newServer()

	var created []types.Student
	for i := 0; i < 5; i++ {
		created = append(created, createStudent(t, h, fmt.Sprintf("Student %d", i), 20+i, "CS"))
	}

	rec, env := doJSON(t, h, http.MethodGet, "/api/students/getStudent?limit=2&skip=0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if env.Count == nil || *env.Count != 2 {
		t.Errorf("expected count 2, got %v", env.Count)
	}
	if env.TotalCount == nil || *env.TotalCount != 5 {
		t.Errorf("expected totalCount 5, got %v", env.TotalCount)
	}

	var page []types.Student
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if len(page) != 2 || page[0].ID != created[4].ID || page[1].ID != created[3].ID {
		t.Errorf("expected the two newest students, got %+v", page)
	}
}

func TestList_Defaults(t *testing.T) {
	h, _ := newServer()

	for i := 0; i < 12; i++ {
		createStudent(t, h, fmt.Sprintf("Student %d", i), 20, "CS")
	}

	tests := []struct {
		query     string
		wantCount int
	}{
		{"", 10},
		{"?limit=abc", 10},
		{"?limit=0", 10},
		{"?skip=-5", 10},
		{"?skip=10", 2},
		{"?limit=3&skip=11", 1},
		{"?skip=50", 0},
	}

	for _, tt := range tests {
		rec, env := doJSON(t, h, http.MethodGet, "/api/students/getStudent"+tt.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: expected status 200, got %d", tt.query, rec.Code)
		}
		if env.Count == nil || *env.Count != tt.wantCount {
			t.Errorf("%q: expected count %d, got %v", tt.query, tt.wantCount, env.Count)
		}
	}
}

func TestInvalidID_DoesNotQueryStore(t *testing.T) {
	h, store := newServer()

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/students/getStudent/123", ""},
		{http.MethodPut, "/api/students/updateStudent/not-an-object-id-at-all", `{"name":"Ada"}`},
		{http.MethodDelete, "/api/students/deleteStudent/zzzzzzzzzzzzzzzzzzzzzzzz", ""},
	}

	for _, r := range requests {
		rec, env := doJSON(t, h, r.method, r.path, r.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected status 400, got %d", r.method, r.path, rec.Code)
		}
		if env.Message != "Invalid student ID format" {
			t.Errorf("%s %s: unexpected message %q", r.method, r.path, env.Message)
		}
	}

	if store.Calls() != 0 {
		t.Errorf("expected no storage calls, got %d", store.Calls())
	}
}

func TestUnknownID_NotFound(t *testing.T) {
	h, _ := newServer()
	id := "65f1c0a2b3c4d5e6f7a8b9c0"

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/students/getStudent/" + id, ""},
		{http.MethodPut, "/api/students/updateStudent/" + id, `{"age":30}`},
		{http.MethodDelete, "/api/students/deleteStudent/" + id, ""},
	}

	for _, r := range requests {
		rec, env := doJSON(t, h, r.method, r.path, r.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", r.method, rec.Code)
		}
		if env.Message != "Student not found" {
			t.Errorf("%s: unexpected message %q", r.method, env.Message)
		}
	}
}

func TestUpdate_NoFields(t *testing.T) {
	h, _ := newServer()
	created := createStudent(t, h, "Ada", 20, "CS")

	for _, body := range []string{`{}`, `{"name":"","department":""}`, ``} {
		rec, env := doJSON(t, h, http.MethodPut, "/api/students/updateStudent/"+created.ID.Hex(), body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status 400, got %d", body, rec.Code)
		}
		if env.Message != "Please provide at least one field to update" {
			t.Errorf("%q: unexpected message %q", body, env.Message)
		}
	}
}

func TestUpdate_OnlyAge(t *testing.T) {
	h, _ := newServer()
	created := createStudent(t, h, "Ada", 20, "CS")

	rec, env := doJSON(t, h, http.MethodPut, "/api/students/updateStudent/"+created.ID.Hex(), `{"age":21}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, env.Message)
	}
	if env.Message != "Student updated successfully" {
		t.Errorf("unexpected message %q", env.Message)
	}

	updated := decodeStudent(t, env.Data)
	if updated.Age != 21 {
		t.Errorf("expected age 21, got %d", updated.Age)
	}
	if updated.Name != created.Name || updated.Department != created.Department {
		t.Errorf("expected name/department untouched, got %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("expected updatedAt to advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
}

func TestUpdate_Validation(t *testing.T) {
	h, _ := newServer()
	created := createStudent(t, h, "Ada", 20, "CS")
	path := "/api/students/updateStudent/" + created.ID.Hex()

	rec, env := doJSON(t, h, http.MethodPut, path, `{"age":"abc"}`)
	if rec.Code != http.StatusBadRequest || env.Message != "Age must be a valid positive number" {
		t.Errorf("bad age: got %d %q", rec.Code, env.Message)
	}

	rec, env = doJSON(t, h, http.MethodPut, path, `{"department":"`+strings.Repeat("d", 51)+`"}`)
	if rec.Code != http.StatusBadRequest || env.Message != "Validation error" {
		t.Errorf("long department: got %d %q", rec.Code, env.Message)
	}
	if len(env.Errors) != 1 || env.Errors[0] != "Department cannot exceed 50 characters" {
		t.Errorf("unexpected errors: %v", env.Errors)
	}
}

func TestDelete_ThenGetNotFound(t *testing.T) {
	h, _ := newServer()
	created := createStudent(t, h, "Ada", 20, "CS")

	rec, env := doJSON(t, h, http.MethodDelete, "/api/students/deleteStudent/"+created.ID.Hex(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if deleted := decodeStudent(t, env.Data); deleted.ID != created.ID {
		t.Errorf("expected deleted record %s, got %s", created.ID.Hex(), deleted.ID.Hex())
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/api/students/getStudent/"+created.ID.Hex(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", rec.Code)
	}
}
