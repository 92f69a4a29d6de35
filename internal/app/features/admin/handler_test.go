// internal/app/features/admin/handler_test.go
package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	"github.com/dalemusser/pickuphub/internal/app/core/notify"
	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	"github.com/dalemusser/pickuphub/internal/app/features/admin"
	classstore "github.com/dalemusser/pickuphub/internal/app/store/classes"
	institutionstore "github.com/dalemusser/pickuphub/internal/app/store/institutions"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*admin.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	students := studentstore.New(db)
	pickups := pickupstore.New(db)
	links := linkstore.New(db)
	users := userstore.New(db)
	reg := registry.New(logger)
	dispatch := notify.NewDispatcher(notify.NewLogNotifier(logger), links, users, logger)
	t.Cleanup(dispatch.Wait)
	svc := lifecycle.NewService(students, pickups, links, dispatch, reg, logger)

	h := admin.NewHandler(institutionstore.New(db), classstore.New(db), users, svc, logger)
	return h, testutil.NewFixtures(t, db)
}

func TestCreateInstitution_FirstBootIsOpen(t *testing.T) {
	h, _ := newTestHandler(t)

	// No principal: the very first setup call arrives before any account
	// exists, and must carry the admin who will own the institution.
	body := `{"name":"Maple Academy","code":"MAPLE1",` +
		`"admin":{"full_name":"Ada Admin","phone":"+15550000001","password":"correct-horse"}}`
	req := httptest.NewRequest("POST", "/admin/institutions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateInstitution(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var resp struct {
		Institution models.Institution `json:"institution"`
		Admin       *models.User       `json:"admin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Admin == nil || resp.Admin.Role != models.RoleAdmin || resp.Admin.Status != models.AccountActive {
		t.Fatalf("admin = %+v, want an active admin account", resp.Admin)
	}
	if resp.Admin.InstitutionID == nil || *resp.Admin.InstitutionID != resp.Institution.ID {
		t.Fatalf("admin institution = %v, want %s", resp.Admin.InstitutionID, resp.Institution.ID.Hex())
	}
}

func TestCreateInstitution_FirstBootRequiresAdmin(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/admin/institutions",
		strings.NewReader(`{"name":"Maple Academy","code":"MAPLE1"}`))
	rec := httptest.NewRecorder()

	h.CreateInstitution(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateInstitution_GateClosesAfterFirst(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")

	body := `{"name":"Oak School","code":"OAK001",` +
		`"admin":{"full_name":"Imp Oster","phone":"+15550000009","password":"correct-horse"}}`
	req := httptest.NewRequest("POST", "/admin/institutions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateInstitution(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusForbidden, rec.Body.String())
	}
}

func TestCreateInstitution_AdminMayAddMore(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	first := fx.CreateInstitution(ctx, "Maple Academy", "MAPLE1")

	req := testutil.WithPrincipal(
		httptest.NewRequest("POST", "/admin/institutions",
			strings.NewReader(`{"name":"Oak School","code":"OAK001"}`)),
		testutil.AdminPrincipal(first.ID),
	)
	rec := httptest.NewRecorder()

	h.CreateInstitution(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
}
