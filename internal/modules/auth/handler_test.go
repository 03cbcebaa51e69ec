package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, env *testEnv) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(env.svc, CookieConfig{SameSite: "Lax", Path: "/api/v1/auth"})
	router := gin.New()
	v1 := router.Group("/api/v1")
	h.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		id, err := env.svc.VerifyAccessToken(bearer(c.GetHeader("Authorization")))
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("user_id", id)
		c.Next()
	})
	h.RegisterProtectedRoutes(protected)
	return router
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) {
		return header[len(prefix):]
	}
	return ""
}

func doJSON(router *gin.Engine, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", refreshCookieName)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   errorBody       `json:"error"`
}

type errorBody struct {
	Code string `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandler_RegisterLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(t, env)

	w := doJSON(router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"name": "Trent", "email": "trent@example.com", "password": "trent-password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cookie := refreshCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/api/v1/auth", cookie.Path)
	assert.NotContains(t, w.Body.String(), cookie.Value)

	var body struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	assert.Equal(t, "Bearer", body.Tokens.TokenType)
	assert.Equal(t, 900, body.Tokens.ExpiresIn)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/refresh", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := refreshCookie(t, w)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	// replaying the first cookie is rejected
	w = doJSON(router, http.MethodPost, "/api/v1/auth/refresh", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REVOKED", decode(t, w).Error.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/logout", nil, rotated)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REVOKED", decode(t, w).Error.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "trent@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w).Error.Code)
}

func TestHandler_RefreshWithoutCookie(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(t, env)

	w := doJSON(router, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_TOKEN", decode(t, w).Error.Code)
}

func TestHandler_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(t, env)

	w := doJSON(router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "not-an-email", "password": "long-enough",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "victor@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Password")

	doJSON(router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "victor@example.com", "password": "long-enough",
	})
	w = doJSON(router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "victor@example.com", "password": "long-enough",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMAIL_EXISTS", decode(t, w).Error.Code)
}

func TestHandler_PasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(t, env)
	env.register(t, "walter@example.com", "walter-password")

	known := doJSON(router, http.MethodPost, "/api/v1/auth/password/forgot", gin.H{"email": "walter@example.com"})
	unknown := doJSON(router, http.MethodPost, "/api/v1/auth/password/forgot", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())

	token := env.captureResetToken(t)

	w := doJSON(router, http.MethodPost, "/api/v1/auth/password/reset", gin.H{
		"token": token, "new_password": "walter-new-password",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/v1/auth/password/reset", gin.H{
		"token": token, "new_password": "walter-newer-password",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TOKEN_ALREADY_USED", decode(t, w).Error.Code)
}

func TestHandler_MeAndChangePassword(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(t, env)
	_, pair := env.register(t, "xena@example.com", "xena-password")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "xena@example.com")
	assert.NotContains(t, w.Body.String(), "password_hash")

	body, _ := json.Marshal(gin.H{"current_password": "bad-password", "new_password": "xena-new-password"})
	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/me/password", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CURRENT_PASSWORD", decode(t, w).Error.Code)

	body, _ = json.Marshal(gin.H{"current_password": "xena-password", "new_password": "xena-new-password"})
	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/me/password", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := env.svc.Refresh(req.Context(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
