package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knowledgehub/service-api-go/internal/session"
)

// newTestMux wires the auth handlers over in-memory fakes the same way
// the router does over the real stores.
func newTestMux(t *testing.T) (http.Handler, *fakeUsers, *fakeSessions) {
	t.Helper()
	users := newFakeUsers()
	sessions := newFakeSessions()
	svc := newTestService(t, users, sessions)
	h := NewHandler(svc, zap.NewNop().Sugar(), false)
	requireSession := RequireSession(svc, zap.NewNop().Sugar())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.Handle("GET /me", requireSession(http.HandlerFunc(h.Me)))
	return mux, users, sessions
}

func doJSON(t *testing.T, mux http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func TestSignupEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/signup",
		`{"email":"alice@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"Alice"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Alice", resp.User.DisplayName)
	assert.NotEmpty(t, resp.User.PublicID)

	c := sessionCookie(t, rr)
	require.NotNil(t, c)
	assert.Equal(t, resp.SessionID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
}

func TestSignupEndpoint_Validation(t *testing.T) {
	mux, _, sessions := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"email":`},
		{name: "invalid email", body: `{"email":"not-an-email","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"A"}`},
		{name: "empty display name", body: `{"email":"a@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":""}`},
		{name: "display name too long", body: `{"email":"a@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"` + strings.Repeat("x", 101) + `"}`},
		{name: "password mismatch", body: `{"email":"a@example.com","password":"Sup3rSecret","password_confirm":"Different1","display_name":"A"}`},
		{name: "weak password", body: `{"email":"a@example.com","password":"alllowercase1","password_confirm":"alllowercase1","display_name":"A"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, mux, http.MethodPost, "/signup", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
	assert.Zero(t, sessions.createCalls)
}

func TestSignupEndpoint_DuplicateEmail(t *testing.T) {
	mux, _, _ := newTestMux(t)

	body := `{"email":"alice@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"Alice"}`
	rr := doJSON(t, mux, http.MethodPost, "/signup", body, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, mux, http.MethodPost, "/signup", body, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email already registered")
}

func TestSignupEndpoint_SessionStoreDown(t *testing.T) {
	mux, users, sessions := newTestMux(t)
	sessions.createErr = session.ErrUnavailable

	rr := doJSON(t, mux, http.MethodPost, "/signup",
		`{"email":"alice@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"Alice"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	// the opaque body never names the backing store
	assert.NotContains(t, rr.Body.String(), "redis")
	// the compensating delete removed the identity again
	assert.Empty(t, users.byEmail)
}

func TestLoginEndpoint_UniformResponse(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/signup",
		`{"email":"alice@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"Alice"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	wrongPassword := doJSON(t, mux, http.MethodPost, "/login",
		`{"email":"alice@example.com","password":"Wr0ngPassword"}`, nil)
	unknownEmail := doJSON(t, mux, http.MethodPost, "/login",
		`{"email":"nobody@example.com","password":"Sup3rSecret"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthLifecycle(t *testing.T) {
	mux, _, _ := newTestMux(t)

	// signup issues a session cookie
	rr := doJSON(t, mux, http.MethodPost, "/signup",
		`{"email":"alice@example.com","password":"Sup3rSecret","password_confirm":"Sup3rSecret","display_name":"Alice"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	cookie := sessionCookie(t, rr)
	require.NotNil(t, cookie)

	// the cookie resolves to the created identity
	rr = doJSON(t, mux, http.MethodGet, "/me", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var me struct {
		PublicID    string `json:"public_id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, "Alice", me.DisplayName)

	// logout clears the cookie
	rr = doJSON(t, mux, http.MethodPost, "/logout", "", cookie)
	require.Equal(t, http.StatusNoContent, rr.Code)
	cleared := sessionCookie(t, rr)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// the old token no longer resolves
	rr = doJSON(t, mux, http.MethodGet, "/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutEndpoint_WithoutSession(t *testing.T) {
	mux, _, _ := newTestMux(t)

	// logging out with no cookie still clears and succeeds
	rr := doJSON(t, mux, http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	cleared := sessionCookie(t, rr)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestMeEndpoint_Unauthorized(t *testing.T) {
	mux, _, sessions := newTestMux(t)

	// no cookie
	rr := doJSON(t, mux, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	noCookie := rr.Body.String()

	// never-issued token gets the identical body
	rr = doJSON(t, mux, http.MethodGet, "/me", "", &http.Cookie{Name: SessionCookieName, Value: "never-issued"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, noCookie, rr.Body.String())

	// session store outage is a server error, not a 401
	sessions.opErr = session.ErrUnavailable
	rr = doJSON(t, mux, http.MethodGet, "/me", "", &http.Cookie{Name: SessionCookieName, Value: "any"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
