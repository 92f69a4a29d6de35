// internal/domain/models/institution.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Institution is an after-school center. The join code is what staff hand
// to guardians: combined with a child's name it proves a guardian was told
// about a specific student by the institution.
type Institution struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	NameCI   string             `bson:"name_ci" json:"-"`
	Code     string             `bson:"code" json:"code"` // unique, uppercased
	TimeZone string             `bson:"time_zone" json:"time_zone"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
