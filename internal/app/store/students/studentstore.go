// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/system/normalize"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/domain/status"
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
	return &Store{c: db.Collection("students")}
}

var (
	errNameRequired = errors.New("student full name is required")

	// ErrStatusChanged is returned by CompareAndSetStatus when the student's
	// status no longer matches the expected value; the caller re-reads and
	// re-evaluates legality.
	ErrStatusChanged = errors.New("student status changed under the update")
)

// Create inserts a student. New students always start the lifecycle at
// NOT_ARRIVED regardless of what the caller set.
func (s *Store) Create(ctx context.Context, st models.Student) (models.Student, error) {
	st.ID = primitive.NewObjectID()
	st.FullName = normalize.Name(st.FullName)
	st.FullNameCI = text.Fold(st.FullName)
	st.Status = status.NotArrived
	st.IsActive = true
	if st.FullName == "" {
		return models.Student{}, errNameRequired
	}

	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, st); err != nil {
		return models.Student{}, err
	}
	return st, nil
}

// GetByID loads a student by ObjectID. Soft-deleted students are not
// returned; they are invisible to every core operation.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Student, error) {
	var st models.Student
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "is_active": true}).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetByNameAndInstitution resolves a student by exact full-name match within
// an institution. Returns mongo.ErrNoDocuments if no match.
func (s *Store) GetByNameAndInstitution(ctx context.Context, fullName string, institutionID primitive.ObjectID) (*models.Student, error) {
	var st models.Student
	err := s.c.FindOne(ctx, bson.M{
		"institution_id": institutionID,
		"full_name":      normalize.Name(fullName),
		"is_active":      true,
	}).Decode(&st)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CompareAndSetStatus moves a student from to to, but only if the document
// still holds from. This is the single point where concurrent transition
// races are resolved: Mongo's per-document atomicity guarantees at most one
// winning writer, and the loser sees ErrStatusChanged.
func (s *Store) CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, from, to status.Status) (*models.Student, error) {
	after := options.After
	var st models.Student
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from, "is_active": true},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// TouchBindings bumps the student's binding revision. Transactions that
// count active guardians before writing call this first: snapshot reads
// alone never conflict, but two transactions incrementing the same student
// document do, so one aborts and re-runs against the committed count.
func (s *Store) TouchBindings(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$inc": bson.M{"bindings_rev": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ResetAllStatuses sets every student's status to NOT_ARRIVED regardless of
// current value, bypassing the transition table. Matching only documents
// that are not already NOT_ARRIVED makes repeat runs report zero without
// touching anything.
func (s *Store) ResetAllStatuses(ctx context.Context) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": bson.M{"$ne": status.NotArrived}},
		bson.M{"$set": bson.M{"status": status.NotArrived, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SoftDelete flags a student inactive. The document (and its guardian
// links) remain for history; every read in this store filters them out.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListFilter narrows the dashboard student list.
type ListFilter struct {
	InstitutionID primitive.ObjectID
	ClassID       *primitive.ObjectID
	Statuses      []status.Status
}

// pickupPriority orders the dashboard: students with a guardian en route
// first, then ready, then the rest of the day's flow.
var pickupPriority = []status.Status{
	status.ParentEnRoute,
	status.ReadyForPickup,
	status.HomeworkPending,
	status.Arrived,
	status.NotArrived,
	status.PickupCompleted,
}

// List returns the institution's active students, filtered and sorted for
// the staff dashboard.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Student, error) {
	filter := bson.M{"institution_id": f.InstitutionID, "is_active": true}
	if f.ClassID != nil {
		filter["class_id"] = *f.ClassID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var students []models.Student
	if err := cur.All(ctx, &students); err != nil {
		return nil, err
	}

	// Stable pickup-priority sort on top of the name sort from the query.
	rank := make(map[status.Status]int, len(pickupPriority))
	for i, st := range pickupPriority {
		rank[st] = i
	}
	sort.SliceStable(students, func(i, j int) bool {
		return rank[students[i].Status] < rank[students[j].Status]
	})
	return students, nil
}
