package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/auth"
	"github.com/humanplus/posture-console/internal/handler"
	"github.com/humanplus/posture-console/internal/middleware"
	"github.com/humanplus/posture-console/internal/model"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/httputil"
)

type Handler struct {
	provider auth.Provider
	authMW   *middleware.AuthMiddleware
}

func NewHandler(provider auth.Provider, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{provider: provider, authMW: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/auth")
	{
		g.POST("/login", h.Login)
		g.POST("/logout", h.authMW.Authenticate(false), h.Logout)
		g.GET("/me", h.authMW.Authenticate(false), h.Me)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, signInError(err))
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.provider.SignOut(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized(auth.MessageFor(err), err))
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) Me(c *gin.Context) {
	httputil.RespondWithSuccess(c, middleware.CurrentUser(c))
}

func signInError(err error) error {
	msg := auth.MessageFor(err)
	switch auth.CodeOf(err) {
	case auth.CodeInvalidEmail:
		return apperrors.BadRequest(msg, err)
	case auth.CodeTooManyRequests:
		return apperrors.TooManyRequests(msg, err)
	case auth.CodeUserDisabled:
		return &apperrors.AppError{Code: apperrors.ErrForbidden, Message: msg, Err: err}
	case auth.CodeInternal, "":
		return &apperrors.AppError{Code: apperrors.ErrInternal, Message: msg, Err: err}
	default:
		return apperrors.Unauthorized(msg, err)
	}
}
