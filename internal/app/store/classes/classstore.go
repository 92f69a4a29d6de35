// internal/app/store/classes/classstore.go
package classstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/system/normalize"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("classes")}
}

var errNameRequired = errors.New("class name is required")

// Create inserts a class under its institution. The teacher assignment is
// optional; a class may exist without one.
func (s *Store) Create(ctx context.Context, cls models.Class) (models.Class, error) {
	cls.ID = primitive.NewObjectID()
	cls.Name = normalize.Name(cls.Name)
	cls.NameCI = text.Fold(cls.Name)
	if cls.Name == "" {
		return models.Class{}, errNameRequired
	}

	now := time.Now().UTC()
	cls.CreatedAt = now
	cls.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, cls); err != nil {
		return models.Class{}, err
	}
	return cls, nil
}

// GetByID loads a class by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Class, error) {
	var cls models.Class
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

// ListByInstitution returns the institution's classes sorted by folded name.
func (s *Store) ListByInstitution(ctx context.Context, institutionID primitive.ObjectID) ([]models.Class, error) {
	cur, err := s.c.Find(ctx, bson.M{"institution_id": institutionID})
	if err != nil {
		return nil, err
	}
	var classes []models.Class
	if err := cur.All(ctx, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}
