// internal/app/core/binding/binding_test.go
package binding_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/pickuphub/internal/app/core/binding"
	institutionstore "github.com/dalemusser/pickuphub/internal/app/store/institutions"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/passwd"
	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/testutil"
	"go.uber.org/zap"
)

type testEnv struct {
	svc      *binding.Service
	links    *linkstore.Store
	users    *userstore.Store
	students *studentstore.Store
	fx       *testutil.Fixtures
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	links := linkstore.New(db)
	users := userstore.New(db)
	students := studentstore.New(db)
	return &testEnv{
		svc:      binding.NewService(db.Client(), institutionstore.New(db), users, students, links, logger),
		links:    links,
		users:    users,
		students: students,
		fx:       testutil.NewFixtures(t, db),
	}
}

// skipIfNoTransactions skips the test when the server is a standalone
// without transaction support.
func skipIfNoTransactions(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "Transaction") {
		t.Skipf("skipping: test mongodb does not support transactions: %v", err)
	}
}

func TestBindWithPhoneProof(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")

	// Staff pre-registered this guardian's phone when creating the student.
	invited := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountInvited)
	env.fx.CreateLink(ctx, st, invited.ID)

	// A second, already-active guardian with the registered phone proof of
	// the invited one cannot exist (phone is unique), so the proof is the
	// requester's own phone here.
	requester := env.fx.CreateGuardian(ctx, "Sam Park", "+15550000011", models.AccountActive)
	pre := env.fx.CreateGuardian(ctx, "Pre Registered", "+15550000012", models.AccountInvited)
	env.fx.CreateLink(ctx, st, pre.ID)

	g, err := env.svc.Bind(ctx, requester.ID, "MAPLE1", "Mia Park", "+15550000012")
	skipIfNoTransactions(t, err)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(g.Students) != 1 || g.Students[0].ID != st.ID {
		t.Fatalf("aggregate students = %+v, want the bound student", g.Students)
	}
}

func TestBindIsIdempotent(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	guardian := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountActive)
	env.fx.CreateLink(ctx, st, guardian.ID)

	for i := 0; i < 2; i++ {
		g, err := env.svc.Bind(ctx, guardian.ID, "MAPLE1", "Mia Park", "+15550000010")
		skipIfNoTransactions(t, err)
		if err != nil {
			t.Fatalf("Bind attempt %d: %v", i+1, err)
		}
		if len(g.Students) != 1 {
			t.Fatalf("attempt %d: guardian bound to %d students, want 1", i+1, len(g.Students))
		}
	}

	ids, err := env.links.GuardianIDsForStudent(ctx, st.ID)
	if err != nil {
		t.Fatalf("GuardianIDsForStudent: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("student has %d links after double bind, want 1", len(ids))
	}
}

func TestBindClaimsBindingRevision(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	guardian := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountActive)
	env.fx.CreateLink(ctx, st, guardian.ID)

	_, err := env.svc.Bind(ctx, guardian.ID, "MAPLE1", "Mia Park", "+15550000010")
	skipIfNoTransactions(t, err)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	// The cap check must write the student document inside its
	// transaction; a pure read would let two concurrent binds both commit
	// under a stale count.
	after, err := env.students.GetByID(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.BindingsRev != st.BindingsRev+1 {
		t.Fatalf("bindings_rev = %d, want %d", after.BindingsRev, st.BindingsRev+1)
	}
}

func TestBindRejectsWrongPhone(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	pre := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountInvited)
	env.fx.CreateLink(ctx, st, pre.ID)

	requester := env.fx.CreateGuardian(ctx, "Sam Park", "+15550000011", models.AccountActive)
	_, err := env.svc.Bind(ctx, requester.ID, "MAPLE1", "Mia Park", "+15559999999")
	skipIfNoTransactions(t, err)
	if !fault.Is(err, fault.Unauthorized) {
		t.Fatalf("err = %v, want Unauthorized", err)
	}
}

func TestBindUnknownStudent(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	requester := env.fx.CreateGuardian(ctx, "Sam Park", "+15550000011", models.AccountActive)

	_, err := env.svc.Bind(ctx, requester.ID, "MAPLE1", "Nobody Here", "+15550000011")
	if !fault.Is(err, fault.NotFound) {
		t.Fatalf("unknown student err = %v, want NotFound", err)
	}
	_, err = env.svc.Bind(ctx, requester.ID, "WRONG1", "Nobody Here", "+15550000011")
	if !fault.Is(err, fault.NotFound) {
		t.Fatalf("unknown code err = %v, want NotFound", err)
	}
}

func TestBindCapReached(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")

	one := env.fx.CreateGuardian(ctx, "Guardian One", "+15550000021", models.AccountActive)
	two := env.fx.CreateGuardian(ctx, "Guardian Two", "+15550000022", models.AccountActive)
	pre := env.fx.CreateGuardian(ctx, "Pre Registered", "+15550000023", models.AccountInvited)
	env.fx.CreateLink(ctx, st, one.ID)
	env.fx.CreateLink(ctx, st, two.ID)
	env.fx.CreateLink(ctx, st, pre.ID)

	third := env.fx.CreateGuardian(ctx, "Guardian Three", "+15550000024", models.AccountActive)
	_, err := env.svc.Bind(ctx, third.ID, "MAPLE1", "Mia Park", "+15550000023")
	skipIfNoTransactions(t, err)
	if !fault.Is(err, fault.CapReached) {
		t.Fatalf("err = %v, want CapReached", err)
	}

	bound, berr := env.links.Exists(ctx, st.ID, third.ID)
	if berr != nil {
		t.Fatalf("Exists: %v", berr)
	}
	if bound {
		t.Fatalf("link was created despite CapReached")
	}
}

func TestUnbind(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	guardian := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountActive)
	env.fx.CreateLink(ctx, st, guardian.ID)

	if err := env.svc.Unbind(ctx, st.ID, guardian.ID); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if err := env.svc.Unbind(ctx, st.ID, guardian.ID); !fault.Is(err, fault.NotFound) {
		t.Fatalf("second Unbind err = %v, want NotFound", err)
	}
}

func TestActivate(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	invited := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountInvited)
	env.fx.CreateLink(ctx, st, invited.ID)

	g, err := env.svc.Activate(ctx, "+15550000010", "correct-horse", "MAPLE1", "Mia Park")
	skipIfNoTransactions(t, err)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if g.User.Status != models.AccountActive {
		t.Fatalf("status = %s after activation, want active", g.User.Status)
	}
	if g.User.InstitutionID == nil || *g.User.InstitutionID != inst.ID {
		t.Fatalf("institution not set on activation")
	}
	if !passwd.Verify(g.User.HashedPassword, "correct-horse") {
		t.Fatalf("credential not set on activation")
	}

	// Activation counts against the cap, so its transaction must claim the
	// binding revision the same way Bind does.
	after, serr := env.students.GetByID(ctx, st.ID)
	if serr != nil {
		t.Fatalf("GetByID: %v", serr)
	}
	if after.BindingsRev != st.BindingsRev+1 {
		t.Fatalf("bindings_rev = %d, want %d", after.BindingsRev, st.BindingsRev+1)
	}

	// Activating again is a conflict, not a silent success.
	_, err = env.svc.Activate(ctx, "+15550000010", "correct-horse", "MAPLE1", "Mia Park")
	if !fault.Is(err, fault.Conflict) {
		t.Fatalf("second Activate err = %v, want Conflict", err)
	}
}

func TestActivateRequiresExistingLink(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountInvited)

	_, err := env.svc.Activate(ctx, "+15550000010", "correct-horse", "MAPLE1", "Mia Park")
	if !fault.Is(err, fault.NotFound) {
		t.Fatalf("err = %v, want NotFound when no staff registration exists", err)
	}
}

func TestActivateEnforcesCap(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	st := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")

	one := env.fx.CreateGuardian(ctx, "Guardian One", "+15550000021", models.AccountActive)
	two := env.fx.CreateGuardian(ctx, "Guardian Two", "+15550000022", models.AccountActive)
	invited := env.fx.CreateGuardian(ctx, "Guardian Three", "+15550000023", models.AccountInvited)
	env.fx.CreateLink(ctx, st, one.ID)
	env.fx.CreateLink(ctx, st, two.ID)
	env.fx.CreateLink(ctx, st, invited.ID)

	_, err := env.svc.Activate(ctx, "+15550000023", "correct-horse", "MAPLE1", "Mia Park")
	skipIfNoTransactions(t, err)
	if !fault.Is(err, fault.CapReached) {
		t.Fatalf("err = %v, want CapReached", err)
	}

	u, uerr := env.users.GetByID(ctx, invited.ID)
	if uerr != nil {
		t.Fatalf("GetByID: %v", uerr)
	}
	if u.Status != models.AccountInvited {
		t.Fatalf("account status = %s after rejected activation, want invited", u.Status)
	}
}

func TestGuardianChildrenOmitsSoftDeleted(t *testing.T) {
	env := newTestService(t)
	ctx := testutil.TestContext(t)

	inst := env.fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")
	cls := env.fx.CreateClass(ctx, inst.ID, "Room 3")
	kept := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Mia Park")
	gone := env.fx.CreateStudent(ctx, cls.ID, inst.ID, "Ben Liu")
	guardian := env.fx.CreateGuardian(ctx, "Jo Park", "+15550000010", models.AccountActive)
	env.fx.CreateLink(ctx, kept, guardian.ID)
	env.fx.CreateLink(ctx, gone, guardian.ID)

	if err := studentstore.New(env.fx.DB()).SoftDelete(ctx, gone.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	g, err := env.svc.GuardianChildren(ctx, guardian.ID)
	if err != nil {
		t.Fatalf("GuardianChildren: %v", err)
	}
	if len(g.Students) != 1 || g.Students[0].ID != kept.ID {
		t.Fatalf("aggregate = %+v, want only the active student", g.Students)
	}
}
