package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error sends a JSON error response.
// The status comes from the AppError in err's chain, 500 if there is none.
// Anything that is not an AppError is logged and reported without leaking the cause.
func Error(c *gin.Context, err error) {
	status := apperror.StatusCode(err)

	var appErr *apperror.AppError
	switch {
	case !errors.As(err, &appErr):
		zap.L().Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	case appErr.Err != nil && status >= http.StatusInternalServerError:
		zap.L().Warn("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(appErr.Err),
		)
	}
	c.JSON(status, ErrorResponse{Error: Message(err)})
}

// Message returns the user-facing message of err without writing a response.
func Message(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
