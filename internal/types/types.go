// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, validation, storage and utils can all import types without
// depending on each other.
package types

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is a persisted student record.
//
// Struct tags serve two purposes:
//
//  1. json:"..." controls how the field appears in API responses.
//  2. bson:"..." controls the field name inside the MongoDB document.
//     "_id" is MongoDB's primary key; omitempty lets the driver assign one
//     if we ever insert a zero ID.
//
// The ID is a 12-byte ObjectID. It marshals to JSON as a 24-char hex string.
type Student struct {
	ID         primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Name       string             `json:"name"       bson:"name"`
	Age        int                `json:"age"        bson:"age"`
	Department string             `json:"department" bson:"department"`
	CreatedAt  time.Time          `json:"createdAt"  bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"  bson:"updatedAt"`
}

// StudentFields is the full set of user-supplied fields of a student,
// already trimmed and type-converted. It is what CreateStudent persists.
//
// validate:"..." tags are checked by go-playground/validator. max on a
// string counts characters, not bytes.
type StudentFields struct {
	Name       string `json:"name"       validate:"required,max=100"`
	Age        int    `json:"age"        validate:"required,min=1,max=120"`
	Department string `json:"department" validate:"required,max=50"`
}

// StudentPatch carries the fields of a partial update. A nil pointer means
// "leave this field alone".
type StudentPatch struct {
	Name       *string
	Age        *int
	Department *string
}

// Empty reports whether the patch changes nothing.
func (p StudentPatch) Empty() bool {
	return p.Name == nil && p.Age == nil && p.Department == nil
}

// StudentRequest is the raw body of a create or update request.
//
// Age stays raw because clients send it either as a number (21) or as a
// numeric string ("21", typical of form posts); validation decides.
type StudentRequest struct {
	Name       *string         `json:"name"`
	Age        json.RawMessage `json:"age"`
	Department *string         `json:"department"`
}
