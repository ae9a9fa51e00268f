package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/knowledgehub/service-api-go/internal/user/entity"
	"github.com/knowledgehub/service-api-go/internal/user/repo"
)

// Handler exposes the HTTP endpoints of the authentication subsystem.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger

	// cookieSecure marks the session cookie Secure; off for local HTTP
	// development only.
	cookieSecure bool
}

func NewHandler(svc *Service, logger *zap.SugaredLogger, cookieSecure bool) *Handler {
	return &Handler{svc: svc, logger: logger, cookieSecure: cookieSecure}
}

// SignupRequest is the signup request body.
type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	DisplayName     string `json:"display_name"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login. The session id also
// travels as an HTTP-only cookie; it appears in the body for clients
// that manage the credential themselves.
type SessionResponse struct {
	SessionID string            `json:"session_id"`
	User      entity.PublicView `json:"user"`
}

func validEmail(email string) bool {
	if email == "" || len(email) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid signup payload", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if !validEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email address"})
		return
	}
	if n := utf8.RuneCountInString(req.DisplayName); n < 1 || n > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name must be 1-100 characters"})
		return
	}
	if req.Password != req.PasswordConfirm {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passwords do not match"})
		return
	}

	u, sessionID, err := h.svc.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		var weak *WeakPasswordError
		switch {
		case errors.As(err, &weak):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": weak.Reason})
		case errors.Is(err, repo.ErrDuplicateEmail):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email already registered"})
		case errors.Is(err, ErrSessionCreation):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session creation failed, please retry later"})
		default:
			h.logger.Errorw("signup failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "signup failed"})
		}
		return
	}

	h.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sessionID, User: u.Public()})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	u, sessionID, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			// Same body for unknown email and wrong password.
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		case errors.Is(err, ErrSessionCreation):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session creation failed, please retry later"})
		default:
			h.logger.Errorw("login failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		}
		return
	}

	h.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: sessionID, User: u.Public()})
}

// Logout deletes the server-side session and expires the cookie. The
// cookie is cleared even when no server-side record existed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(SessionCookieName); err == nil {
		token = c.Value
	}
	h.svc.Logout(r.Context(), token)
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the identity resolved by the session middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, u.Public())
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.svc.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
