// internal/app/store/users/userstore.go
package userstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Phone: The normalized phone number users type to log in; unique across the system

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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicatePhone is returned when attempting to create a user with a phone that already exists.
	ErrDuplicatePhone = errors.New("a user with this phone number already exists")
	errBadRole        = errors.New(`role must be "parent"|"teacher"|"receptionist"|"admin"`)
	errBadStatus      = errors.New(`status must be "invited"|"active"|"inactive"`)
	errPhoneRequired  = errors.New("phone number is required")
	errStaffNeedsOrg  = errors.New("staff must have institution_id")
)

// Create inserts a new user after normalizing & validating fields.
// Guardian–student links are never written here; use the links store.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Phone = normalize.Phone(u.Phone)
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	if u.Status == "" {
		u.Status = models.AccountActive
	}

	if u.Phone == "" {
		return models.User{}, errPhoneRequired
	}

	switch u.Role {
	case models.RoleParent, models.RoleTeacher, models.RoleReceptionist, models.RoleAdmin:
		// ok
	default:
		return models.User{}, errBadRole
	}

	switch u.Status {
	case models.AccountInvited, models.AccountActive, models.AccountInactive:
		// ok
	default:
		return models.User{}, errBadStatus
	}

	// Staff must be scoped to an institution; a guardian gains one at activation.
	if models.IsStaffRole(u.Role) && u.InstitutionID == nil {
		return models.User{}, errStaffNeedsOrg
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicatePhone
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone looks up a user by normalized phone number.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"phone": normalize.Phone(phone)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureInvitedGuardian returns the existing user for phone, or creates an
// invited parent account with no credential. Used when staff pre-register a
// student's guardians.
func (s *Store) EnsureInvitedGuardian(ctx context.Context, phone, fullName string) (*models.User, error) {
	phone = normalize.Phone(phone)
	if phone == "" {
		return nil, errPhoneRequired
	}

	existing, err := s.GetByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	fullName = normalize.Name(fullName)
	if fullName == "" {
		fullName = phone
	}
	created, err := s.Create(ctx, models.User{
		Phone:    phone,
		FullName: fullName,
		Role:     models.RoleParent,
		Status:   models.AccountInvited,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePhone) {
			// Lost a create race; the other writer's document wins.
			return s.GetByPhone(ctx, phone)
		}
		return nil, err
	}
	return &created, nil
}

// Activate moves an invited account to active, setting its credential and
// institution in the same write. The status filter makes activation a
// compare-and-set: a second concurrent activation matches nothing.
// Returns mongo.ErrNoDocuments if the account is not currently invited.
func (s *Store) Activate(ctx context.Context, userID primitive.ObjectID, hashedPassword string, institutionID primitive.ObjectID) (*models.User, error) {
	after := options.After
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "status": models.AccountInvited},
		bson.M{"$set": bson.M{
			"status":          models.AccountActive,
			"hashed_password": hashedPassword,
			"institution_id":  institutionID,
			"updated_at":      time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces the stored credential hash.
func (s *Store) UpdatePassword(ctx context.Context, userID primitive.ObjectID, hashedPassword string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"hashed_password": hashedPassword, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Deactivate soft-removes an account. Inactive principals cannot
// authenticate or act; their documents remain for audit.
func (s *Store) Deactivate(ctx context.Context, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": models.AccountInactive, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ByIDs loads the users for the given ids, in no particular order.
func (s *Store) ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CountActive returns how many of the given users are currently active.
// The binding authority uses this for the two-active-guardians cap.
func (s *Store) CountActive(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.c.CountDocuments(ctx, bson.M{
		"_id":    bson.M{"$in": ids},
		"status": models.AccountActive,
	})
}
