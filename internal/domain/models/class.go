// internal/domain/models/class.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Class belongs to one institution and optionally has one assigned teacher.
type Class struct {
	ID            primitive.ObjectID  `bson:"_id" json:"id"`
	InstitutionID primitive.ObjectID  `bson:"institution_id" json:"institution_id"`
	Name          string              `bson:"name" json:"name"`
	NameCI        string              `bson:"name_ci" json:"-"`
	TeacherID     *primitive.ObjectID `bson:"teacher_id,omitempty" json:"teacher_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
