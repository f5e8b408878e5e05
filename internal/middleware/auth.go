package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/auth"
	"github.com/humanplus/posture-console/internal/model"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/httputil"
)

const (
	ContextUser  = "user"
	ContextToken = "token"
)

type AuthMiddleware struct {
	provider auth.Provider
}

func NewAuthMiddleware(provider auth.Provider) *AuthMiddleware {
	return &AuthMiddleware{provider: provider}
}

// Authenticate verifies the bearer token and stores the operator in the
// context. allowQuery also accepts ?token= for clients that cannot set
// headers, such as browser WebSockets.
func (m *AuthMiddleware) Authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("missing authorization header", nil))
			return
		}

		user, err := m.provider.ValidateToken(c.Request.Context(), token)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.MessageFor(err), err))
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextToken, token)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CurrentUser returns the authenticated operator, or nil on public routes.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// CurrentToken returns the bearer token of the request, if authenticated.
func CurrentToken(c *gin.Context) string {
	return c.GetString(ContextToken)
}
