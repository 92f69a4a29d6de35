// internal/app/store/links/linkstore.go
package linkstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/pickuphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("guardian_links")}
}

// ErrDuplicateLink means the (student, guardian) pair is already bound.
// Callers generally treat it as success; binding is idempotent.
var ErrDuplicateLink = errors.New("guardian is already linked to this student")

// Add inserts a guardian link. The unique (student_id, guardian_id) index
// makes concurrent double-binds collapse to ErrDuplicateLink.
func (s *Store) Add(ctx context.Context, link models.GuardianLink) (models.GuardianLink, error) {
	link.ID = primitive.NewObjectID()
	link.CreatedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, link); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GuardianLink{}, ErrDuplicateLink
		}
		return models.GuardianLink{}, err
	}
	return link, nil
}

// Remove deletes the link between a student and a guardian. Returns
// mongo.ErrNoDocuments when no such link exists.
func (s *Store) Remove(ctx context.Context, studentID, guardianID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"student_id": studentID, "guardian_id": guardianID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, studentID, guardianID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"student_id": studentID, "guardian_id": guardianID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GuardianIDsForStudent returns every guardian bound to the student.
func (s *Store) GuardianIDsForStudent(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, err
	}
	var links []models.GuardianLink
	if err := cur.All(ctx, &links); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.GuardianID)
	}
	return ids, nil
}

// StudentIDsForGuardian returns every student the guardian is bound to.
func (s *Store) StudentIDsForGuardian(ctx context.Context, guardianID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"guardian_id": guardianID})
	if err != nil {
		return nil, err
	}
	var links []models.GuardianLink
	if err := cur.All(ctx, &links); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.StudentID)
	}
	return ids, nil
}
