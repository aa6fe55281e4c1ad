// Package validation turns raw student requests into checked domain values.
//
// It runs before, and independently of, the storage layer: handlers call
// ParseCreate / ParsePatch / ParseID and only hand the result to storage
// when they succeed. Field constraints are declared as validate:"..." tags
// on types.StudentFields and checked with go-playground/validator.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/aanand-mishra/student-crud-api/internal/types"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrMissingFields means a create request lacked name, age or department.
	ErrMissingFields = errors.New("name, age and department are required")

	// ErrNoUpdateFields means an update request carried none of the fields.
	ErrNoUpdateFields = errors.New("at least one field is required")

	// ErrInvalidAge means age was not a positive integer (or numeric string).
	ErrInvalidAge = errors.New("age must be a valid positive number")

	// ErrInvalidID means the identifier is not a 24-char hex ObjectID.
	ErrInvalidID = errors.New("invalid student id format")
)

// FieldErrors lists one human-readable message per violated field
// constraint. It is the aggregated "Validation error" reported as 400.
type FieldErrors []string

func (e FieldErrors) Error() string {
	return "validation failed: " + strings.Join(e, "; ")
}

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name ("name", "age") instead of the Go
	// field name, so messages and filters line up with the API.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// messages maps "<field>.<tag>" to the client-facing message.
var messages = map[string]string{
	"name.required":       "Please provide a student name",
	"name.max":            "Name cannot exceed 100 characters",
	"age.required":        "Please provide student age",
	"age.min":             "Age must be at least 1",
	"age.max":             "Age cannot exceed 120",
	"department.required": "Please provide a department",
	"department.max":      "Department cannot exceed 50 characters",
}

// ─────────────────────────────────────────────────────────────────────────────
// ParseCreate checks a create request and returns the trimmed fields.
//
// Order of checks:
//  1. name, age and department must all be provided  → ErrMissingFields
//  2. age must be a positive integer                   → ErrInvalidAge
//  3. field constraints (length, range)                → FieldErrors
//
// ─────────────────────────────────────────────────────────────────────────────
func ParseCreate(req types.StudentRequest) (types.StudentFields, error) {
	age, ageSet, ageErr := parseAge(req.Age)

	if !provided(req.Name) || !provided(req.Department) || !ageSet {
		return types.StudentFields{}, ErrMissingFields
	}
	if ageErr != nil {
		return types.StudentFields{}, ageErr
	}

	fields := types.StudentFields{
		Name:       strings.TrimSpace(*req.Name),
		Age:        age,
		Department: strings.TrimSpace(*req.Department),
	}

	if err := ValidateFields(fields); err != nil {
		return types.StudentFields{}, err
	}

	return fields, nil
}

// ParsePatch checks an update request and returns a patch holding only the
// provided fields. Constraints run on those fields alone.
func ParsePatch(req types.StudentRequest) (types.StudentPatch, error) {
	age, ageSet, ageErr := parseAge(req.Age)

	var patch types.StudentPatch
	if provided(req.Name) {
		name := strings.TrimSpace(*req.Name)
		patch.Name = &name
	}
	if ageSet {
		patch.Age = &age
	}
	if provided(req.Department) {
		department := strings.TrimSpace(*req.Department)
		patch.Department = &department
	}

	if patch.Empty() {
		return types.StudentPatch{}, ErrNoUpdateFields
	}
	if ageErr != nil {
		return types.StudentPatch{}, ageErr
	}

	if err := ValidatePatch(patch); err != nil {
		return types.StudentPatch{}, err
	}

	return patch, nil
}

// ParseID converts a path identifier into an ObjectID using the driver's
// own validity check (exactly 24 hex characters).
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// ValidateFields checks every constraint of a complete student.
func ValidateFields(fields types.StudentFields) error {
	return fieldErrors(validate.Struct(fields), func(string) bool { return true })
}

// ValidatePatch checks the constraints of the fields a patch sets.
//
// The patch is laid over a zero StudentFields and validated as a whole;
// failures on fields the patch does not touch are dropped.
func ValidatePatch(patch types.StudentPatch) error {
	var fields types.StudentFields
	touched := make(map[string]bool, 3)

	if patch.Name != nil {
		fields.Name = *patch.Name
		touched["name"] = true
	}
	if patch.Age != nil {
		fields.Age = *patch.Age
		touched["age"] = true
	}
	if patch.Department != nil {
		fields.Department = *patch.Department
		touched["department"] = true
	}

	return fieldErrors(validate.Struct(fields), func(field string) bool {
		return touched[field]
	})
}

func fieldErrors(err error, keep func(field string) bool) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate student: %w", err)
	}

	var out FieldErrors
	for _, e := range verrs {
		if !keep(e.Field()) {
			continue
		}
		msg, ok := messages[e.Field()+"."+e.Tag()]
		if !ok {
			msg = fmt.Sprintf("field %s is invalid", e.Field())
		}
		out = append(out, msg)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func provided(s *string) bool {
	return s != nil && *s != ""
}

// parseAge decodes a raw JSON age. Absent, null and "" count as not set.
// A set value must be a positive integer given as a number or a numeric
// string; anything else is ErrInvalidAge.
func parseAge(raw json.RawMessage) (age int, set bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, true, ErrInvalidAge
	}

	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
	default:
		return 0, true, ErrInvalidAge
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !(errors.Is(err, strconv.ErrRange) && math.IsInf(f, 1)) {
		return 0, true, ErrInvalidAge
	}
	if math.IsNaN(f) || f <= 0 || f != math.Trunc(f) {
		return 0, true, ErrInvalidAge
	}

	// Out-of-range values, overflow included, still reach the max=120
	// constraint.
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}

	return int(f), true, nil
}
