package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/config"
	"github.com/openlabtz/lims-backend/internal/model"
	"github.com/openlabtz/lims-backend/internal/queue"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/service"
	"github.com/openlabtz/lims-backend/internal/utils"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

// AuthHandler bundles dependencies for the authentication endpoints.
type AuthHandler struct {
	Cfg        config.Config
	Users      *repository.UserRepo
	Tokens     *repository.TokenRepo
	VerifyToks *repository.VerificationTokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, v *repository.VerificationTokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, VerifyToks: v}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Login    string `json:"login"` // username or email
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type resetReq struct {
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID             uint64  `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	Specialization *string `json:"specialization,omitempty"`
	IsVerified     bool    `json:"is_verified"`
}

func toUserPart(u model.User) userPart {
	p := userPart{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       string(u.Role),
		IsVerified: u.IsVerified,
	}
	if u.Specialization != nil {
		s := string(*u.Specialization)
		p.Specialization = &s
	}
	return p
}

func (h *AuthHandler) issuePair(c echo.Context, u model.User) (echo.Map, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return echo.Map{
		"user":    toUserPart(u),
		"access":  tokenPart{Token: access.Token, Expires: access.Exp},
		"refresh": tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register handles POST /v1/auth/register.  Self-service registration
// always creates a Customer account; staff accounts are created by an
// Admin through the user management endpoints.  A verification link is
// emailed through the notification queue.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Username, email and password are required.")
	}
	if len(req.Password) < 8 {
		return fail(c, http.StatusBadRequest, "Password must be at least 8 characters.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, repository.NewUserParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     workflow.RoleCustomer,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "Username or email already in use.")
		}
		return internalError(c, err)
	}

	token, err := h.VerifyToks.Issue(ctx, uid, model.TokenPurposeVerifyEmail,
		time.Duration(h.Cfg.VerifyTTLHours)*time.Hour)
	if err != nil {
		return internalError(c, err)
	}
	link := fmt.Sprintf("%s/verify-email/%s", strings.TrimRight(h.Cfg.FrontendURL, "/"), token)
	_ = service.PublishEmail(c.Request().Context(), queue.EmailEvent{
		To:      req.Email,
		Subject: "Verify your email address",
		Body:    "Welcome to the laboratory portal.\n\nPlease verify your email address by opening the link below:\n\n" + link + "\n\nIf you did not create this account, ignore this message.",
		Kind:    "verify_email",
		UserID:  uid,
	})

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}
	payload, err := h.issuePair(c, u)
	if err != nil {
		return internalError(c, err)
	}
	payload["success"] = true
	payload["message"] = "Account created. A verification link has been sent to your email."
	return c.JSON(http.StatusCreated, payload)
}

// Login handles POST /v1/auth/login.  The login field accepts either a
// username or an email address.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body.")
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Login and password are required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	var (
		u   model.User
		err error
	)
	if strings.Contains(req.Login, "@") {
		u, err = h.Users.GetByEmail(ctx, strings.ToLower(req.Login))
	} else {
		u, err = h.Users.GetByUsername(ctx, req.Login)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "Invalid credentials.")
		}
		return internalError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid credentials.")
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "This account has been deactivated.")
	}

	payload, err := h.issuePair(c, u)
	if err != nil {
		return internalError(c, err)
	}
	payload["success"] = true
	payload["message"] = "Login successful."
	return c.JSON(http.StatusOK, payload)
}

// Refresh handles POST /v1/auth/refresh.  The presented refresh token is
// rotated: the old one is revoked and a new pair is returned.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refresh_token is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	hash := utils.HashRefreshRaw(req.RefreshToken)
	uid, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid or expired refresh token.")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return internalError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "This account has been deactivated.")
	}

	payload, err := h.issuePair(c, u)
	if err != nil {
		return internalError(c, err)
	}
	payload["success"] = true
	payload["message"] = "Tokens refreshed."
	return c.JSON(http.StatusOK, payload)
}

// RefreshAccess handles POST /v1/auth/refresh-access: a new access token
// from a still-valid refresh token, without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refresh_token is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	uid, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(req.RefreshToken))
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid or expired refresh token.")
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return internalError(c, err)
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "This account has been deactivated.")
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Access token issued.",
		"access":  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout handles POST /v1/auth/logout by revoking the presented refresh
// token.  The access token simply expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refresh_token is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(req.RefreshToken)); err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out."})
}

// Me handles GET /v1/me, returning the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Unauthorized.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	p, err := h.Users.ProfileByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "User not found.")
		}
		return internalError(c, err)
	}
	part := toUserPart(p.User)
	return c.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"user":          part,
		"department":    p.DepartmentName,
		"division":      p.DivisionName,
		"department_id": p.DepartmentID,
		"division_id":   p.DivisionID,
	})
}

// VerifyEmail handles GET /v1/auth/verify-email/:token.  Tokens are
// single-use; a consumed or expired token yields 400.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return fail(c, http.StatusBadRequest, "Verification token is required.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	uid, err := h.VerifyToks.Consume(ctx, token, model.TokenPurposeVerifyEmail)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid or expired verification link.")
	}
	if err := h.Users.MarkVerified(ctx, uid); err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Email verified. You can now log in."})
}

// ForgotPassword handles POST /v1/auth/forgot-password.  The response is
// identical whether or not the email exists, so the endpoint cannot be
// used to enumerate accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return fail(c, http.StatusBadRequest, "Email is required.")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := dbCtx(c)
	defer cancel()

	resp := echo.Map{"success": true, "message": "If that email is registered, a reset link has been sent."}

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusOK, resp)
		}
		return internalError(c, err)
	}

	token, err := h.VerifyToks.Issue(ctx, u.ID, model.TokenPurposeResetPassword,
		time.Duration(h.Cfg.VerifyTTLHours)*time.Hour)
	if err != nil {
		return internalError(c, err)
	}
	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(h.Cfg.FrontendURL, "/"), token)
	_ = service.PublishEmail(c.Request().Context(), queue.EmailEvent{
		To:      u.Email,
		Subject: "Password reset request",
		Body:    "A password reset was requested for your account.\n\nOpen the link below to choose a new password:\n\n" + link + "\n\nIf you did not request this, ignore this message.",
		Kind:    "reset_password",
		UserID:  u.ID,
	})
	return c.JSON(http.StatusOK, resp)
}

// ResetPassword handles POST /v1/auth/reset-password/:token.  On success
// every refresh token of the user is revoked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return fail(c, http.StatusBadRequest, "Reset token is required.")
	}
	var req resetReq
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Password is required.")
	}
	if len(req.Password) < 8 {
		return fail(c, http.StatusBadRequest, "Password must be at least 8 characters.")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	uid, err := h.VerifyToks.Consume(ctx, token, model.TokenPurposeResetPassword)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid or expired reset link.")
	}
	if err := h.Users.SetPassword(ctx, uid, req.Password, h.Cfg.BcryptCost); err != nil {
		return internalError(c, err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password updated. Please log in again."})
}
