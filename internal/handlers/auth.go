package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/services"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// AccountServiceInterface defines the account operations the HTTP layer needs
type AccountServiceInterface interface {
	Register(ctx context.Context, kind, loginIdentifier, password, name string) (*models.Account, error)
	ChangePassword(ctx context.Context, owner services.LoggedInUserProvider, newPassword, confirmPassword, oldPassword string) error
}

// AuthHandler handles login, logout and account self-service requests
type AuthHandler struct {
	accounts AccountServiceInterface
	timing   *auth.TimingDelay
	logger   *slog.Logger
	kind     string
}

// NewAuthHandler creates a new AuthHandler. timing may be nil.
func NewAuthHandler(accounts AccountServiceInterface, timing *auth.TimingDelay, logger *slog.Logger, kind string) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		timing:   timing,
		logger:   logger,
		kind:     kind,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	LoginIdentifier string `json:"login_identifier" validate:"required,max=255"`
	Password        string `json:"password" validate:"required,max=128"`
}

// RegisterRequest represents the request body for account provisioning
type RegisterRequest struct {
	LoginIdentifier string `json:"login_identifier" validate:"required,max=255"`
	Password        string `json:"password" validate:"required"`
	Name            string `json:"name" validate:"max=255"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// AccountResponse is the public view of an account
type AccountResponse struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	LoginIdentifier string     `json:"login_identifier"`
	Name            string     `json:"name,omitempty"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	AsOf            time.Time  `json:"as_of"`
}

func snapshotResponse(s *models.AccountSnapshot) AccountResponse {
	return AccountResponse{
		ID:              s.ID,
		Kind:            s.Kind,
		LoginIdentifier: s.LoginIdentifier,
		Name:            s.Name,
		LastLogin:       s.LastLogin,
		AsOf:            s.TakenAt,
	}
}

func (h *AuthHandler) delayFailure(start time.Time) {
	if h.timing != nil {
		h.timing.WaitFrom(start, false)
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	manager := auth.GetSessionManager(r)
	if manager == nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	var req LoginRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	start := time.Now()
	err := manager.Login(r.Context(), strings.TrimSpace(req.LoginIdentifier), req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrLockedOut) {
			h.logger.Info("login rejected",
				slog.String("ip", pkghttp.ExtractClientIP(r, nil)),
				slog.String("reason", err.Error()))
		}

		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			h.delayFailure(start)
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		case errors.Is(err, models.ErrLockedOut):
			h.delayFailure(start)
			pkghttp.WriteLocked(w, "Too many failed login attempts")
		case errors.Is(err, models.ErrAlreadyLoggedIn):
			pkghttp.WriteConflict(w, "Already logged in")
		default:
			h.logger.Error("login failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	current, err := manager.GetLoggedInUser()
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, snapshotResponse(current))
}

// Logout handles POST /auth/logout. It succeeds even without an active session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if manager := auth.GetSessionManager(r); manager != nil {
		manager.Logout()
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me, returning the logged in account as currently stored
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	manager := auth.GetSessionManager(r)
	if manager == nil {
		pkghttp.WriteUnauthorized(w, "No active session")
		return
	}

	current, err := manager.RefreshLoggedInUser(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrNoLoggedInUser) {
			pkghttp.WriteUnauthorized(w, "No active session")
			return
		}
		h.logger.Error("failed to refresh logged in account", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, snapshotResponse(current))
}

// ChangePassword handles POST /auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	manager := auth.GetSessionManager(r)
	if manager == nil {
		pkghttp.WriteForbidden(w, "Not the account owner")
		return
	}

	var req ChangePasswordRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.accounts.ChangePassword(r.Context(), manager, req.NewPassword, req.ConfirmPassword, req.OldPassword)
	if err != nil {
		var weak *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrNotAccountOwner):
			pkghttp.WriteForbidden(w, "Not the account owner")
		case errors.Is(err, models.ErrWrongOldPassword):
			pkghttp.WriteError(w, http.StatusBadRequest, "wrong_old_password", "Old password is incorrect")
		case errors.Is(err, models.ErrPasswordMismatch):
			pkghttp.WriteError(w, http.StatusBadRequest, "password_mismatch", "Passwords do not match")
		case errors.As(err, &weak):
			pkghttp.WriteBadRequest(w, weak.Error())
		default:
			h.logger.Error("password change failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /accounts
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.accounts.Register(r.Context(), h.kind, req.LoginIdentifier, req.Password, req.Name)
	if err != nil {
		var weak *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrDuplicateLoginIdentifier):
			pkghttp.WriteConflict(w, "Login identifier already in use")
		case errors.As(err, &weak):
			pkghttp.WriteBadRequest(w, weak.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			h.logger.Error("registration failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, snapshotResponse(account.Snapshot()))
}
