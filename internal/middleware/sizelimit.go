package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/httputil"
)

const bodyTooLargeMessage = "request body too large"

// BodyLimit rejects request bodies larger than maxBytes. Bodies without a
// declared length are cut off while reading.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Message: bodyTooLargeMessage,
				Error: &httputil.Error{
					Code:    http.StatusRequestEntityTooLarge,
					Message: bodyTooLargeMessage,
				},
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// BindError converts a binding failure into an application error.
func BindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.BadRequest(bodyTooLargeMessage, err)
	}
	if fields := ValidationErrorsOf(err); len(fields) > 0 {
		return apperrors.BadRequest(fields.String(), err)
	}
	return apperrors.BadRequest("invalid request body", err)
}
