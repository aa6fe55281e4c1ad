// Package student contains all HTTP handlers related to the Student resource.
//
// Handlers follow the closure / factory pattern: each exported function
// receives its dependencies (storage) once at route registration and
// returns the http.HandlerFunc that runs on every request.
//
//	r.Post("/createStudent", student.New(storage))
//
// Every handler follows the same three steps: parse and validate the input
// (internal/validation), call storage, shape the result into the envelope
// (internal/utils/response).
package student

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/aanand-mishra/student-crud-api/internal/http/middleware"
	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/types"
	"github.com/aanand-mishra/student-crud-api/internal/utils/response"
	"github.com/aanand-mishra/student-crud-api/internal/validation"
	"github.com/go-chi/chi/v5"
)

// Client-facing messages.
const (
	msgCreated   = "Student created successfully"
	msgListed    = "Students retrieved successfully"
	msgRetrieved = "Student retrieved successfully"
	msgUpdated   = "Student updated successfully"
	msgDeleted   = "Student deleted successfully"

	msgMissingFields  = "Please provide name, age, and department"
	msgNoUpdateFields = "Please provide at least one field to update"
	msgInvalidAge     = "Age must be a valid positive number"
	msgInvalidID      = "Invalid student ID format"
	msgNotFound       = "Student not found"
	msgBodyTooLarge   = "Request body too large"
	msgMalformedBody  = "Request body is not valid JSON"
	msgNotAnObject    = "Request body must be a JSON object"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// maxBodyBytes caps create/update bodies at 1 MiB.
const maxBodyBytes = 1 << 20

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students/createStudent
// Creates a new student from the request body.
//
// Request body (JSON or form-encoded):
//
//	{ "name": "Ada", "age": 21, "department": "CS" }
//
// Success response (201 Created):
//
//	{ "success": true, "message": "Student created successfully", "data": {...} }
//
// Error responses:
//
//	400 Bad Request  — missing fields, invalid age, malformed body, or
//	                   failed field constraints (with "errors" list)
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student", requestID(r))

		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}

		fields, err := validation.ParseCreate(req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		student, err := storage.CreateStudent(r.Context(), fields)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.Info("student created", requestID(r), slog.String("id", student.ID.Hex()))
		response.WriteJSON(w, http.StatusCreated, response.Success(msgCreated, student))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students/getStudent?limit=10&skip=0
// Returns one page of students, newest first.
//
// Query parameters (optional):
//
//	limit — page size, default 10
//	skip  — number of students to skip, default 0
//
// Values that are not valid non-negative integers fall back to the default.
//
// Success response (200 OK):
//
//	{ "success": true, "message": "...", "count": 2, "totalCount": 5, "data": [...] }
//
// ─────────────────────────────────────────────────────────────────────────────
func GetList(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := parseListOptions(r.URL.Query())
		slog.Info("getting students", requestID(r),
			slog.Int("limit", opts.Limit),
			slog.Int("skip", opts.Skip))

		students, err := storage.GetStudents(r.Context(), opts)
		if err != nil {
			writeError(w, r, err)
			return
		}

		total, err := storage.CountStudents(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK,
			response.List(msgListed, students, len(students), total))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /api/students/getStudent/{id}
//
// Error responses:
//
//	400 Bad Request  — id is not a 24-char hex ObjectID (store not queried)
//	404 Not Found    — no student with that id
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("getting a student", requestID(r), slog.String("id", id))

		oid, err := validation.ParseID(id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		student, err := storage.GetStudentByID(r.Context(), oid)
		if err != nil {
			writeError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.Success(msgRetrieved, student))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /api/students/updateStudent/{id}
// Applies only the provided fields; the rest stay as they are.
//
// Request body — any of:
//
//	{ "name": "Ada L.", "age": 22, "department": "Math" }
//
// Error responses:
//
//	400 Bad Request  — invalid id, no fields, invalid age, or failed
//	                   field constraints
//	404 Not Found    — no student with that id
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("updating a student", requestID(r), slog.String("id", id))

		oid, err := validation.ParseID(id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}

		patch, err := validation.ParsePatch(req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		updated, err := storage.UpdateStudentByID(r.Context(), oid, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.Info("student updated", requestID(r), slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, response.Success(msgUpdated, updated))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /api/students/deleteStudent/{id}
// Permanently removes a student and echoes the removed record.
// ─────────────────────────────────────────────────────────────────────────────
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("deleting a student", requestID(r), slog.String("id", id))

		oid, err := validation.ParseID(id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		deleted, err := storage.DeleteStudentByID(r.Context(), oid)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.Info("student deleted", requestID(r), slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, response.Success(msgDeleted, deleted))
	}
}

// decodeRequest reads a JSON or form-encoded body. An empty body decodes
// to an empty request so the field checks report what is missing.
// On failure it has already written the 400 response.
func decodeRequest(w http.ResponseWriter, r *http.Request) (types.StudentRequest, bool) {
	var req types.StudentRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			writeDecodeError(w, r, err)
			return req, false
		}
		return formRequest(r.PostForm), true
	}

	dec := json.NewDecoder(r.Body)

	err := dec.Decode(&req)
	if errors.Is(err, io.EOF) {
		return req, true
	}
	if err != nil {
		writeDecodeError(w, r, err)
		return req, false
	}

	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		writeDecodeError(w, r, err)
		return req, false
	}

	return req, true
}

// formRequest maps form values onto a request. Form values are always
// strings, so age arrives as a numeric string.
func formRequest(form url.Values) types.StudentRequest {
	var req types.StudentRequest

	if form.Has("name") {
		name := form.Get("name")
		req.Name = &name
	}
	if form.Has("age") {
		// Marshalling a string cannot fail.
		req.Age, _ = json.Marshal(form.Get("age"))
	}
	if form.Has("department") {
		department := form.Get("department")
		req.Department = &department
	}

	return req
}

// writeDecodeError reports an unreadable body. The decoder's own error
// text stays in the log.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Warn("invalid request body", requestID(r), slog.String("error", err.Error()))

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.WriteJSON(w, http.StatusRequestEntityTooLarge, response.Error(msgBodyTooLarge))
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.Error(response.MsgInvalidRequest, typeMessage(typeErr)))
		return
	}

	response.WriteJSON(w, http.StatusBadRequest,
		response.Error(response.MsgInvalidRequest, msgMalformedBody))
}

// typeMessage names the offending field and the type it should have had.
func typeMessage(err *json.UnmarshalTypeError) string {
	if err.Field == "" {
		return msgNotAnObject
	}

	t := err.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var want string
	switch t.Kind() {
	case reflect.String:
		want = "a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		want = "a number"
	default:
		want = "of type " + t.Kind().String()
	}

	return err.Field + " must be " + want
}

// writeError maps validation and storage errors to their status codes.
// Anything unrecognised is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validation.FieldErrors

	switch {
	case errors.Is(err, validation.ErrMissingFields):
		response.WriteJSON(w, http.StatusBadRequest, response.Error(msgMissingFields))
	case errors.Is(err, validation.ErrNoUpdateFields):
		response.WriteJSON(w, http.StatusBadRequest, response.Error(msgNoUpdateFields))
	case errors.Is(err, validation.ErrInvalidAge):
		response.WriteJSON(w, http.StatusBadRequest, response.Error(msgInvalidAge))
	case errors.Is(err, validation.ErrInvalidID):
		response.WriteJSON(w, http.StatusBadRequest, response.Error(msgInvalidID))
	case errors.As(err, &fieldErrs):
		response.WriteJSON(w, http.StatusBadRequest, response.Error(response.MsgValidation, fieldErrs...))
	case errors.Is(err, storage.ErrConstraint):
		response.WriteJSON(w, http.StatusBadRequest, response.Error(response.MsgValidation))
	case errors.Is(err, storage.ErrNotFound):
		response.WriteJSON(w, http.StatusNotFound, response.Error(msgNotFound))
	default:
		slog.Error("student request failed", requestID(r),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		response.InternalError(w)
	}
}

func requestID(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetRequestID(r.Context()))
}

func parseListOptions(q url.Values) storage.ListOptions {
	opts := storage.ListOptions{Limit: storage.DefaultLimit, Skip: storage.DefaultSkip}

	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("skip")); err == nil && n > 0 {
		opts.Skip = n
	}

	return opts
}
