// internal/domain/models/guardianlink.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GuardianLink is the many-to-many association between a guardian (a user
// with role parent) and a student. A unique compound index on
// (student_id, guardian_id) makes link creation idempotent at the store.
//
// The binding cap — at most two *active* guardians per student — is not a
// property of this document; it is enforced by the binding authority, which
// counts the account status of the linked guardians inside a transaction.
type GuardianLink struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	StudentID     primitive.ObjectID `bson:"student_id" json:"student_id"`
	GuardianID    primitive.ObjectID `bson:"guardian_id" json:"guardian_id"`
	InstitutionID primitive.ObjectID `bson:"institution_id" json:"institution_id"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
