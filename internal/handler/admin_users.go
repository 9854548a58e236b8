package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/config"
	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// UserAdminHandler serves the Admin-only user management endpoints.
// Staff accounts (Registrar, HOD, Technician, Director) are created
// here rather than through self-service registration.
type UserAdminHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewUserAdminHandler(cfg config.Config, u *repository.UserRepo) *UserAdminHandler {
	return &UserAdminHandler{Cfg: cfg, Users: u}
}

type userAdminReq struct {
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Role           string  `json:"role"`
	Specialization *string `json:"specialization"`
	DepartmentID   *uint64 `json:"department_id"`
	DivisionID     *uint64 `json:"division_id"`
	IsActive       *bool   `json:"is_active"`
}

type userDetailPart struct {
	userPart
	DepartmentID *uint64 `json:"department_id,omitempty"`
	DivisionID   *uint64 `json:"division_id,omitempty"`
	IsActive     bool    `json:"is_active"`
}

func toUserDetail(u model.User) userDetailPart {
	return userDetailPart{
		userPart:     toUserPart(u),
		DepartmentID: u.DepartmentID,
		DivisionID:   u.DivisionID,
		IsActive:     u.IsActive,
	}
}

// List handles GET /v1/users.
func (h *UserAdminHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	out := make([]userDetailPart, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDetail(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": out})
}

// Create handles POST /v1/users.  Technician accounts must carry a
// specialization; other roles must not.
func (h *UserAdminHandler) Create(c echo.Context) error {
	var req userAdminReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Username, email and password are required.")
	}
	if !workflow.ValidRole(req.Role) {
		return fail(c, http.StatusBadRequest, "Unknown role.")
	}
	role := workflow.Role(req.Role)

	var spec *workflow.TestType
	if role == workflow.RoleTechnician {
		if req.Specialization == nil || !workflow.ValidTestType(*req.Specialization) {
			return fail(c, http.StatusBadRequest, "Technicians require a valid specialization.")
		}
		s := workflow.TestType(*req.Specialization)
		spec = &s
	} else if req.Specialization != nil {
		return fail(c, http.StatusBadRequest, "Only technicians carry a specialization.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, repository.NewUserParams{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Role:           role,
		Specialization: spec,
		DepartmentID:   req.DepartmentID,
		DivisionID:     req.DivisionID,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "Username or email already in use.")
		}
		return internalError(c, err)
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "User created.", "user": toUserDetail(u)})
}

// Get handles GET /v1/users/:id.
func (h *UserAdminHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid user id.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "User not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toUserDetail(u)})
}

// Update handles PUT /v1/users/:id.  The role is immutable after
// creation; password changes go through the reset flow or SetPassword.
func (h *UserAdminHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid user id.")
	}
	var req userAdminReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" {
		return fail(c, http.StatusBadRequest, "Username and email are required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "User not found.")
		}
		return internalError(c, err)
	}

	spec := u.Specialization
	if u.Role == workflow.RoleTechnician && req.Specialization != nil {
		if !workflow.ValidTestType(*req.Specialization) {
			return fail(c, http.StatusBadRequest, "Invalid specialization.")
		}
		s := workflow.TestType(*req.Specialization)
		spec = &s
	}
	active := u.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}

	if err := h.Users.UpdateProfile(ctx, id, req.Username, req.Email, spec, req.DepartmentID, req.DivisionID, active); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "Username or email already in use.")
		}
		return internalError(c, err)
	}
	if req.Password != "" {
		if err := h.Users.SetPassword(ctx, id, req.Password, h.Cfg.BcryptCost); err != nil {
			return internalError(c, err)
		}
	}

	u, err = h.Users.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User updated.", "user": toUserDetail(u)})
}

// Delete handles DELETE /v1/users/:id.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid user id.")
	}
	if self, err := getUserID(c); err == nil && self == id {
		return fail(c, http.StatusBadRequest, "You cannot delete your own account.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "User not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User deleted."})
}
