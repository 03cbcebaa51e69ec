package auth

import (
	"net/http"
	"strings"

	"safepath/internal/pkg/response"
	"safepath/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

type CookieConfig struct {
	Secure   bool
	SameSite string
	Path     string
}

type Handler struct {
	service *Service
	cookies CookieConfig
}

func NewHandler(service *Service, cookies CookieConfig) *Handler {
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &Handler{service: service, cookies: cookies}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/password/forgot", h.ForgotPassword)
		authGroup.POST("/password/reset", h.ResetPassword)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	userGroup := protected.Group("/users")
	{
		userGroup.GET("/me", h.GetMe)
		userGroup.PUT("/me/password", h.ChangePassword)
	}
}

// Register создаёт аккаунт и сразу открывает сессию.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, pair, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusCreated, gin.H{
		"user":   toUserPublic(user),
		"tokens": h.tokensBody(pair),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, pair, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"user":   toUserPublic(user),
		"tokens": h.tokensBody(pair),
	})
}

// Refresh меняет refresh-токен из cookie на новую пару.
func (h *Handler) Refresh(c *gin.Context) {
	refreshRaw, err := c.Cookie(refreshCookieName)
	if err != nil || strings.TrimSpace(refreshRaw) == "" {
		response.Fail(c, ErrNoToken)
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), refreshRaw)
	if err != nil {
		h.clearRefreshCookie(c)
		response.Fail(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"tokens": h.tokensBody(pair),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	refreshRaw, err := c.Cookie(refreshCookieName)
	if err == nil && strings.TrimSpace(refreshRaw) != "" {
		if logoutErr := h.service.Logout(c.Request.Context(), refreshRaw); logoutErr != nil {
			response.Fail(c, logoutErr)
			return
		}
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, result)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		response.Fail(c, err)
		return
	}

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, gin.H{"status": "password_reset"})
}

func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")

	user, err := h.service.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": toUserPublic(user)})
}

// ChangePassword завершает все сессии пользователя, включая текущую.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := c.GetInt64("user_id")
	if err := h.service.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Fail(c, err)
		return
	}

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, gin.H{"status": "password_changed"})
}

func (h *Handler) tokensBody(pair *TokenPair) gin.H {
	return gin.H{
		"access_token": pair.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   int(h.service.tokens.AccessTTL().Seconds()),
	}
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(parseSameSite(h.cookies.SameSite))
	c.SetCookie(refreshCookieName, token, int(h.service.tokens.RefreshTTL().Seconds()), h.cookies.Path, "", h.cookies.Secure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(parseSameSite(h.cookies.SameSite))
	c.SetCookie(refreshCookieName, "", -1, h.cookies.Path, "", h.cookies.Secure, true)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", errs)
		return false
	}
	return true
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
