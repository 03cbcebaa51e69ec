package vault

import (
	"net/http"
	"strings"

	"safepath/internal/pkg/response"
	"safepath/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	group := protected.Group("/vault/credential")
	{
		group.PUT("", h.Store)
		group.PATCH("", h.Update)
		group.GET("", h.Describe)
		group.DELETE("", h.Remove)
		group.POST("/verify", h.Verify)
		group.GET("/rate-limit", h.RateLimit)
	}
}

func (h *Handler) Store(c *gin.Context) {
	var req StoreCredentialRequest
	if !bindJSON(c, &req) {
		return
	}
	userID := c.GetInt64("user_id")

	if err := h.service.Store(c.Request.Context(), userID, req.Secret); err != nil {
		fail(c, err)
		return
	}
	h.respondDescription(c, http.StatusCreated, userID)
}

func (h *Handler) Update(c *gin.Context) {
	var req StoreCredentialRequest
	if !bindJSON(c, &req) {
		return
	}
	userID := c.GetInt64("user_id")

	if err := h.service.Update(c.Request.Context(), userID, req.Secret); err != nil {
		fail(c, err)
		return
	}
	h.respondDescription(c, http.StatusOK, userID)
}

// Describe takes an optional comma separated "required" query and then
// also reports whether the recorded scopes cover it.
func (h *Handler) Describe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	required := splitScopes(c.Query("required"))
	if len(required) == 0 {
		h.respondDescription(c, http.StatusOK, userID)
		return
	}

	ctx := c.Request.Context()
	desc, err := h.service.Describe(ctx, userID)
	if err != nil {
		fail(c, err)
		return
	}
	satisfied, err := h.service.HasScopes(ctx, userID, required...)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"credential": desc, "scopes_satisfied": satisfied})
}

func (h *Handler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.GetInt64("user_id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Verify(c *gin.Context) {
	var req VerifyCredentialRequest
	if !bindJSON(c, &req) {
		return
	}

	match, err := h.service.VerifyHash(c.Request.Context(), c.GetInt64("user_id"), req.Candidate)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"match": match})
}

func (h *Handler) RateLimit(c *gin.Context) {
	rl, err := h.service.RateLimit(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"limit":     rl.Limit,
		"remaining": rl.Remaining,
		"reset":     rl.Reset,
	})
}

func (h *Handler) respondDescription(c *gin.Context, status int, userID int64) {
	desc, err := h.service.Describe(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, status, gin.H{"credential": desc})
}

// fail surfaces the validator's reason on rejections.
func fail(c *gin.Context, err error) {
	if rej, ok := IsRejected(err); ok {
		status := http.StatusUnprocessableEntity
		code := ErrCredentialRejected.Code
		if rej.Unwrap() == ErrValidatorUnavailable {
			status = http.StatusServiceUnavailable
			code = ErrValidatorUnavailable.Code
		}
		response.ErrorWithDetails(c, status, code, "Credential was not accepted", gin.H{"reason": rej.Reason})
		return
	}
	response.Fail(c, err)
}

func splitScopes(raw string) []string {
	var scopes []string
	for _, scope := range strings.Split(raw, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
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
