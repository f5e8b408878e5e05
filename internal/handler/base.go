package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/middleware"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/httputil"
)

// BindJSON decodes the request body into obj and writes a 400 response on
// failure. It reports whether the handler should continue.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return false
	}
	return true
}

// QueryLimit reads ?limit=. A missing value yields 0 so callers fall back to
// their default; values above max are capped.
func QueryLimit(c *gin.Context, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("limit must be a non-negative integer", err))
		return 0, false
	}
	if max > 0 && n > max {
		n = max
	}
	return n, true
}
