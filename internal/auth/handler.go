// TransitBook | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/transitbook/backend/internal/core"
	"github.com/transitbook/backend/internal/middleware"
)

const (
	cookieAuthToken    = "auth_token"
	cookieRefreshToken = "refresh_token"
)

type Handler struct {
	service       *Service
	validator     *validator.Validate
	secureCookies bool
}

func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
		secureCookies: secureCookies,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, loginLimiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter).Post("/login", h.Login)
		r.With(loginLimiter).Post("/register", h.Register)
		r.Post("/logout", h.Logout)
		r.Post("/refresh", h.Refresh)
		r.Post("/reset-password", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidCredentials):
			core.JSONError(w, core.InvalidCredentialsError())
		case errors.Is(err, core.ErrAccountInactive):
			core.JSONError(w, core.AccountInactiveError())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	h.setAuthCookies(w, result)

	core.OK(w, LoginResponse{
		User:      toUserResponse(result.User),
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.Register(r.Context(), RegistrationInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     req.UserType,
	})
	if err != nil {
		switch {
		case core.IsAppError(err):
			core.JSONError(w, err)
		case errors.Is(err, core.ErrRegistrationDisabled):
			core.JSONError(w, core.RegistrationDisabledError())
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("email"))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, toUserResponse(user))
}

// Logout always succeeds from the caller's point of view: it extracts
// the session id from the cookie or bearer token when one is present,
// invalidates it, and clears both cookies either way. Both tokens share
// a session id, so the refresh cookie works as a fallback when the
// access token is absent.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		if cookie, err := r.Cookie(cookieRefreshToken); err == nil {
			token = cookie.Value
		}
	}

	if token != "" {
		if sessionID, err := h.service.SessionIDFromToken(token); err == nil {
			if err := h.service.Logout(r.Context(), sessionID); err != nil {
				h.clearAuthCookies(w)
				core.InternalServerError(w, err)
				return
			}
		}
	}

	h.clearAuthCookies(w)
	core.NoContent(w)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	token := req.RefreshToken
	if token == "" {
		if c, err := r.Cookie(cookieRefreshToken); err == nil {
			token = c.Value
		}
	}

	if token == "" {
		core.JSONError(w, core.TokenInvalidError())
		return
	}

	result, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrSessionRevoked):
			core.JSONError(w, core.SessionRevokedError())
		case errors.Is(err, core.ErrTokenInvalid):
			core.JSONError(w, core.TokenInvalidError())
		case errors.Is(err, core.ErrAccountInactive):
			core.JSONError(w, core.AccountInactiveError())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	h.setCookie(w, cookieAuthToken, result.AccessToken, result.ExpiresAt)

	core.OK(w, RefreshResponse{ExpiresAt: result.ExpiresAt})
}

// ResetPassword implements only the validation contract for the reset
// payload; delivery and redemption of reset tokens live outside this
// service.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if !PasswordMeetsPolicy(req.NewPassword) {
		core.BadRequest(
			w,
			"new_password must contain an uppercase letter, a lowercase letter, and a digit",
		)
		return
	}

	core.Accepted(w, map[string]bool{"accepted": true})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toUserResponse(user))
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, result *LoginResult) {
	h.setCookie(w, cookieAuthToken, result.AccessToken, result.ExpiresAt)
	h.setCookie(w, cookieRefreshToken, result.RefreshToken, result.RefreshExpiresAt)
}

func (h *Handler) setCookie(
	w http.ResponseWriter,
	name, value string,
	expiresAt time.Time,
) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{cookieAuthToken, cookieRefreshToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   0,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

