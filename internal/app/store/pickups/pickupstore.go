// internal/app/store/pickups/pickupstore.go
package pickupstore

import (
	"context"
	"time"

	"github.com/dalemusser/pickuphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("pickup_events")}
}

// Create opens a pickup event for a guardian heading to collect a student.
func (s *Store) Create(ctx context.Context, ev models.PickupEvent) (models.PickupEvent, error) {
	ev.ID = primitive.NewObjectID()
	ev.Status = models.PickupActive
	ev.StartedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		return models.PickupEvent{}, err
	}
	return ev, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PickupEvent, error) {
	var ev models.PickupEvent
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ActiveForStudent returns the student's open pickup event, if any.
func (s *Store) ActiveForStudent(ctx context.Context, studentID primitive.ObjectID) (*models.PickupEvent, error) {
	var ev models.PickupEvent
	err := s.c.FindOne(ctx, bson.M{"student_id": studentID, "status": models.PickupActive}).Decode(&ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CompleteOpenForStudent closes any active pickup events for the student.
// Completing a pickup with no open event is a no-op, not an error: a staff
// member can walk a student out without anyone ever tapping "on my way".
func (s *Store) CompleteOpenForStudent(ctx context.Context, studentID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateMany(ctx,
		bson.M{"student_id": studentID, "status": models.PickupActive},
		bson.M{"$set": bson.M{"status": models.PickupCompleted, "completed_at": now}},
	)
	return err
}

// CancelOpenForStudent voids any active pickup events for the student,
// used when a student is soft-deleted so stale events don't linger as
// active.
func (s *Store) CancelOpenForStudent(ctx context.Context, studentID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateMany(ctx,
		bson.M{"student_id": studentID, "status": models.PickupActive},
		bson.M{"$set": bson.M{"status": models.PickupCancelled, "completed_at": now}},
	)
	return err
}

// CancelAllOpen voids every active pickup event. The daily reset calls this
// alongside the status sweep.
func (s *Store) CancelAllOpen(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": models.PickupActive},
		bson.M{"$set": bson.M{"status": models.PickupCancelled, "completed_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListForInstitution returns recent pickup events for staff review, newest
// first.
func (s *Store) ListForInstitution(ctx context.Context, institutionID primitive.ObjectID, limit int64) ([]models.PickupEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"institution_id": institutionID}, opts)
	if err != nil {
		return nil, err
	}
	var events []models.PickupEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
