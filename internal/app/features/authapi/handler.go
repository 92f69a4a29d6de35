// internal/app/features/authapi/handler.go

// Package authapi serves token issuance: credential login for active
// accounts and the one-time guardian activation flow.
package authapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/core/binding"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/app/system/normalize"
	"github.com/dalemusser/pickuphub/internal/app/system/passwd"
	"github.com/dalemusser/pickuphub/internal/app/system/respond"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler holds dependencies for the auth endpoints.
type Handler struct {
	users   *userstore.Store
	binding *binding.Service
	tokens  *auth.TokenManager
	log     *zap.Logger
}

func NewHandler(users *userstore.Store, bindingSvc *binding.Service, tokens *auth.TokenManager, logger *zap.Logger) *Handler {
	return &Handler{users: users, binding: bindingSvc, tokens: tokens, log: logger}
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login handles POST /auth/login. Invalid phone, wrong password, and
// non-authenticatable accounts all return the same 401 so the endpoint
// cannot be used to probe which phones are registered.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "phone and password are required")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	denied := func() {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid phone or password"})
	}

	u, err := h.users.GetByPhone(ctx, normalize.Phone(req.Phone))
	if errors.Is(err, mongo.ErrNoDocuments) {
		denied()
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	if !u.CanAuthenticate() || !passwd.Verify(u.HashedPassword, req.Password) {
		denied()
		return
	}

	h.issue(w, *u)
}

type activateRequest struct {
	Phone           string `json:"phone" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	InstitutionCode string `json:"institution_code" validate:"required"`
	StudentFullName string `json:"student_full_name" validate:"required"`
}

// Activate handles POST /auth/activate: the invited-guardian flow. The
// caller proves they were pre-registered by presenting the institution code
// and their child's exact name alongside their phone.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "phone, password (8+ chars), institution_code, and student_full_name are required")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Long)
	defer cancel()

	g, err := h.binding.Activate(ctx, req.Phone, req.Password, req.InstitutionCode, req.StudentFullName)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}

	h.issue(w, g.User)
}

func (h *Handler) issue(w http.ResponseWriter, u models.User) {
	p := auth.Principal{
		ID:   u.ID.Hex(),
		Name: u.FullName,
		Role: u.Role,
	}
	if u.InstitutionID != nil {
		p.InstitutionID = u.InstitutionID.Hex()
	}

	token, expires, err := h.tokens.Issue(p)
	if err != nil {
		h.log.Error("token issuance failed", zap.Error(err))
		respond.JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	respond.JSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires, User: u})
}
