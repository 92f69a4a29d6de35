// internal/app/store/institutions/institutionstore.go
package institutionstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/system/normalize"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("institutions")}
}

var (
	// ErrDuplicateCode is returned when the join code is already taken.
	ErrDuplicateCode = errors.New("an institution with this code already exists")
	errNameRequired  = errors.New("institution name is required")
	errCodeRequired  = errors.New("institution code is required")
)

// Create inserts a new institution after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, inst models.Institution) (models.Institution, error) {
	inst.ID = primitive.NewObjectID()
	inst.Name = normalize.Name(inst.Name)
	inst.NameCI = text.Fold(inst.Name)
	inst.Code = normalize.Code(inst.Code)
	if inst.Name == "" {
		return models.Institution{}, errNameRequired
	}
	if inst.Code == "" {
		return models.Institution{}, errCodeRequired
	}
	if inst.TimeZone == "" {
		inst.TimeZone = "UTC"
	}

	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, inst); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Institution{}, ErrDuplicateCode
		}
		return models.Institution{}, err
	}
	return inst, nil
}

// Count returns the number of institutions. Zero means the deployment has
// not been set up yet, which opens the first-boot setup endpoint.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// GetByID loads an institution by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Institution, error) {
	var inst models.Institution
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// GetByCode looks up an institution by its join code (case-insensitive).
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByCode(ctx context.Context, code string) (*models.Institution, error) {
	var inst models.Institution
	if err := s.c.FindOne(ctx, bson.M{"code": normalize.Code(code)}).Decode(&inst); err != nil {
		return nil, err
	}
	return &inst, nil
}
