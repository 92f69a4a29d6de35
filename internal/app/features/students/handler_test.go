// internal/app/features/students/handler_test.go
package students_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	"github.com/dalemusser/pickuphub/internal/app/core/notify"
	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	"github.com/dalemusser/pickuphub/internal/app/features/students"
	classstore "github.com/dalemusser/pickuphub/internal/app/store/classes"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/txn"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/domain/status"
	"github.com/dalemusser/pickuphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type handlerEnv struct {
	h        *students.Handler
	users    *userstore.Store
	students *studentstore.Store
	pickups  *pickupstore.Store
	fx       *testutil.Fixtures
}

func newTestHandler(t *testing.T) *handlerEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	studentStore := studentstore.New(db)
	classes := classstore.New(db)
	users := userstore.New(db)
	links := linkstore.New(db)
	pickups := pickupstore.New(db)
	reg := registry.New(logger)
	dispatch := notify.NewDispatcher(notify.NewLogNotifier(logger), links, users, logger)
	t.Cleanup(dispatch.Wait)
	svc := lifecycle.NewService(studentStore, pickups, links, dispatch, reg, logger)

	return &handlerEnv{
		h:        students.NewHandler(db.Client(), studentStore, classes, users, links, pickups, svc, logger),
		users:    users,
		students: studentStore,
		pickups:  pickups,
		fx:       testutil.NewFixtures(t, db),
	}
}

// requireTransactions skips the test when the server is a standalone
// without transaction support.
func requireTransactions(t *testing.T, db *mongo.Database) {
	t.Helper()
	err := txn.WithTransaction(context.Background(), db.Client(), func(ctx context.Context) error {
		res := db.Collection("students").FindOne(ctx, bson.M{"_id": primitive.NilObjectID})
		if ferr := res.Err(); ferr != nil && !errors.Is(ferr, mongo.ErrNoDocuments) {
			return ferr
		}
		return nil
	})
	if err != nil && strings.Contains(err.Error(), "Transaction") {
		t.Skipf("skipping: test mongodb does not support transactions: %v", err)
	}
}

func TestCreate_PreRegistersGuardians(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	requireTransactions(t, env.fx.DB())

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")

	body := `{"class_id":"` + cls.ID.Hex() + `","full_name":"Mia Park",` +
		`"guardians":[{"full_name":"Jordan Park","phone":"+15550000001"}]}`
	req := testutil.WithPrincipal(
		httptest.NewRequest("POST", "/students", strings.NewReader(body)),
		testutil.TeacherPrincipal(inst.ID),
	)
	rec := httptest.NewRecorder()

	env.h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var resp struct {
		Student   models.Student `json:"student"`
		Guardians []models.User  `json:"guardians"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Student.Status != status.NotArrived {
		t.Errorf("new student status = %s, want %s", resp.Student.Status, status.NotArrived)
	}
	if len(resp.Guardians) != 1 || resp.Guardians[0].Status != models.AccountInvited {
		t.Errorf("guardians = %+v, want one invited account", resp.Guardians)
	}
}

func TestCreate_RollsBackOnGuardianFailure(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	requireTransactions(t, env.fx.DB())

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")

	// The second guardian's phone normalizes to nothing, failing the
	// registration after the student and first guardian were written.
	body := `{"class_id":"` + cls.ID.Hex() + `","full_name":"Mia Park",` +
		`"guardians":[{"full_name":"Jordan Park","phone":"+15550000001"},` +
		`{"full_name":"Broken Entry","phone":"---"}]}`
	req := testutil.WithPrincipal(
		httptest.NewRequest("POST", "/students", strings.NewReader(body)),
		testutil.TeacherPrincipal(inst.ID),
	)
	rec := httptest.NewRecorder()

	env.h.Create(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusInternalServerError, rec.Body.String())
	}

	// Nothing from the aborted registration may survive.
	if _, err := env.students.GetByNameAndInstitution(ctx, "Mia Park", inst.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("student lookup after rollback: err = %v, want ErrNoDocuments", err)
	}
	if _, err := env.users.GetByPhone(ctx, "+15550000001"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("guardian lookup after rollback: err = %v, want ErrNoDocuments", err)
	}
}

func TestCreate_RejectsForeignClass(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	mine := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	other := env.fx.CreateInstitution(ctx, "Oak School", "OAK001")
	foreignClass := env.fx.CreateClass(ctx, other.ID, "Room 9")

	body := `{"class_id":"` + foreignClass.ID.Hex() + `","full_name":"Mia Park"}`
	req := testutil.WithPrincipal(
		httptest.NewRequest("POST", "/students", strings.NewReader(body)),
		testutil.TeacherPrincipal(mine.ID),
	)
	rec := httptest.NewRecorder()

	env.h.Create(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestList_OrdersByPickupPriority(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	env.fx.CreateStudentWithStatus(ctx, cls.ID, inst.ID, "Aaron Oh", status.NotArrived)
	env.fx.CreateStudentWithStatus(ctx, cls.ID, inst.ID, "Mia Park", status.ParentEnRoute)
	env.fx.CreateStudentWithStatus(ctx, cls.ID, inst.ID, "Noor Aziz", status.ReadyForPickup)

	req := testutil.NewAuthenticatedRequest("GET", "/students", testutil.TeacherPrincipal(inst.ID))
	rec := httptest.NewRecorder()

	env.h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Students []models.Student `json:"students"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	got := make([]status.Status, 0, len(resp.Students))
	for _, s := range resp.Students {
		got = append(got, s.Status)
	}
	want := []status.Status{status.ParentEnRoute, status.ReadyForPickup, status.NotArrived}
	if len(got) != len(want) {
		t.Fatalf("students = %v, want %d entries", got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestList_RejectsUnknownStatusFilter(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")

	req := testutil.NewAuthenticatedRequest("GET", "/students?status=LOITERING", testutil.TeacherPrincipal(inst.ID))
	rec := httptest.NewRecorder()

	env.h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpdateStatus_AppliesTransition(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")

	req := testutil.WithPrincipal(
		httptest.NewRequest("PATCH", "/students/"+st.ID.Hex()+"/status",
			strings.NewReader(`{"status":"ARRIVED"}`)),
		testutil.TeacherPrincipal(inst.ID),
	)
	req = testutil.WithChiURLParam(req, "studentID", st.ID.Hex())
	rec := httptest.NewRecorder()

	env.h.UpdateStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var updated models.Student
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if updated.Status != status.Arrived {
		t.Errorf("status = %s, want %s", updated.Status, status.Arrived)
	}
}

func TestUpdateStatus_RejectsIllegalMove(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")

	req := testutil.WithPrincipal(
		httptest.NewRequest("PATCH", "/students/"+st.ID.Hex()+"/status",
			strings.NewReader(`{"status":"READY_FOR_PICKUP"}`)),
		testutil.TeacherPrincipal(inst.ID),
	)
	req = testutil.WithChiURLParam(req, "studentID", st.ID.Hex())
	rec := httptest.NewRecorder()

	env.h.UpdateStatus(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestDelete_HidesStudentFromLists(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")

	req := testutil.NewAuthenticatedRequest("DELETE", "/students/"+st.ID.Hex(), testutil.TeacherPrincipal(inst.ID))
	req = testutil.WithChiURLParam(req, "studentID", st.ID.Hex())
	rec := httptest.NewRecorder()

	env.h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	listReq := testutil.NewAuthenticatedRequest("GET", "/students", testutil.TeacherPrincipal(inst.ID))
	listRec := httptest.NewRecorder()
	env.h.List(listRec, listReq)

	var resp struct {
		Students []models.Student `json:"students"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(resp.Students) != 0 {
		t.Errorf("students after delete = %+v, want none", resp.Students)
	}
}

func TestDelete_VoidsOpenPickup(t *testing.T) {
	env := newTestHandler(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudentWithStatus(ctx, cls.ID, inst.ID, "Mia Park", status.ParentEnRoute)
	guardian := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountActive)

	ev, err := env.pickups.Create(ctx, models.PickupEvent{
		StudentID:     st.ID,
		GuardianID:    guardian.ID,
		InstitutionID: inst.ID,
	})
	if err != nil {
		t.Fatalf("creating pickup event: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("DELETE", "/students/"+st.ID.Hex(), testutil.TeacherPrincipal(inst.ID))
	req = testutil.WithChiURLParam(req, "studentID", st.ID.Hex())
	rec := httptest.NewRecorder()

	env.h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	after, err := env.pickups.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Status != models.PickupCancelled {
		t.Fatalf("pickup status = %s after student delete, want %s", after.Status, models.PickupCancelled)
	}
}
