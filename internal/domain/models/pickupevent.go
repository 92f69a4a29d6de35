// internal/domain/models/pickupevent.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pickup event statuses.
const (
	PickupActive    = "active"
	PickupCompleted = "completed"
	PickupCancelled = "cancelled"
)

// PickupEvent is one guardian-initiated trip to collect a student. Its hex
// id doubles as the broadcast room for the live connection registry.
type PickupEvent struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	StudentID     primitive.ObjectID `bson:"student_id" json:"student_id"`
	GuardianID    primitive.ObjectID `bson:"guardian_id" json:"guardian_id"`
	InstitutionID primitive.ObjectID `bson:"institution_id" json:"institution_id"`
	Status        string             `bson:"status" json:"status"` // active | completed | cancelled

	StartedAt   time.Time  `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Room returns the broadcast room identity for this pickup.
func (p *PickupEvent) Room() string {
	return p.ID.Hex()
}
