// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
EnsureAll is called at startup. Index creation is idempotent; we aggregate
errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureInstitutions(ctx, db); err != nil {
		problems = append(problems, "institutions: "+err.Error())
	}
	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureClasses(ctx, db); err != nil {
		problems = append(problems, "classes: "+err.Error())
	}
	if err := ensureStudents(ctx, db); err != nil {
		problems = append(problems, "students: "+err.Error())
	}
	if err := ensureGuardianLinks(ctx, db); err != nil {
		problems = append(problems, "guardian_links: "+err.Error())
	}
	if err := ensurePickupEvents(ctx, db); err != nil {
		problems = append(problems, "pickup_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureInstitutions(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("institutions").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("uniq_code").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("name_ci"),
		},
	})
	return err
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetName("uniq_phone").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "institution_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("institution_role"),
		},
	})
	return err
}

func ensureClasses(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("classes").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "institution_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("institution_name"),
		},
	})
	return err
}

func ensureStudents(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("students").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Binding resolves students by exact name within an institution.
			Keys:    bson.D{{Key: "institution_id", Value: 1}, {Key: "full_name", Value: 1}},
			Options: options.Index().SetName("institution_full_name"),
		},
		{
			// Dashboard lists filter on class and status.
			Keys:    bson.D{{Key: "class_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("class_status"),
		},
	})
	return err
}

func ensureGuardianLinks(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("guardian_links").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Bind idempotence: one link per (student, guardian).
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "guardian_id", Value: 1}},
			Options: options.Index().SetName("uniq_student_guardian").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "guardian_id", Value: 1}},
			Options: options.Index().SetName("guardian"),
		},
	})
	return err
}

func ensurePickupEvents(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("pickup_events").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("student_status"),
		},
		{
			Keys:    bson.D{{Key: "institution_id", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("institution_started"),
		},
	})
	return err
}
