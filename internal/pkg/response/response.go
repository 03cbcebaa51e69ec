package response

import (
	"net/http"

	"safepath/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// Fail writes err using its apperr classification. Unclassified errors
// become a generic 500 so internal messages never reach the client; the
// original error is attached to the gin context for the error logger.
func Fail(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok || ae.Kind == apperr.KindInternal {
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	if ae.Kind == apperr.KindConfiguration || ae.Kind == apperr.KindExternalService {
		_ = c.Error(err)
	}
	Error(c, ae.Kind.HTTPStatus(), ae.Code, ae.Message)
}
