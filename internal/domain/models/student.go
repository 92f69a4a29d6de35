// internal/domain/models/student.go
package models

import (
	"time"

	"github.com/dalemusser/pickuphub/internal/domain/status"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student belongs to exactly one class (hence one institution). The
// institution id is denormalized onto the document so scope checks and the
// binding lookups never need a class join.
//
// Status is mutated only through the lifecycle service's compare-and-set or
// the daily reset; writing it directly bypasses the state machine.
type Student struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	ClassID       primitive.ObjectID `bson:"class_id" json:"class_id"`
	InstitutionID primitive.ObjectID `bson:"institution_id" json:"institution_id"`
	FullName      string             `bson:"full_name" json:"full_name"`
	FullNameCI    string             `bson:"full_name_ci" json:"-"`
	Status        status.Status      `bson:"status" json:"status"`
	IsActive      bool               `bson:"is_active" json:"is_active"` // soft-delete flag

	// BindingsRev is bumped by every transaction that checks the
	// active-guardian cap, so concurrent checks for the same student
	// write-conflict instead of committing side by side.
	BindingsRev int64 `bson:"bindings_rev" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
