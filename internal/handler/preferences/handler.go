package preferences

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/handler"
	"github.com/humanplus/posture-console/internal/middleware"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/pkg/httputil"
)

type Store interface {
	Load(ctx context.Context, uid string) model.Preferences
	SetLanguage(ctx context.Context, uid, language string) (model.Preferences, error)
	SetNotifications(ctx context.Context, uid string, enabled bool) (model.Preferences, error)
}

type Handler struct {
	prefs Store
}

func NewHandler(prefs Store) *Handler {
	return &Handler{prefs: prefs}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/preferences")
	{
		g.GET("", h.Get)
		g.PUT("/language", h.SetLanguage)
		g.PUT("/notifications", h.SetNotifications)
	}
}

func (h *Handler) Get(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.prefs.Load(c.Request.Context(), uid(c)))
}

func (h *Handler) SetLanguage(c *gin.Context) {
	var req model.LanguageRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	prefs, err := h.prefs.SetLanguage(c.Request.Context(), uid(c), req.Language)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, prefs)
}

func (h *Handler) SetNotifications(c *gin.Context) {
	var req model.NotificationsRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	prefs, err := h.prefs.SetNotifications(c.Request.Context(), uid(c), *req.Enabled)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, prefs)
}

func uid(c *gin.Context) string {
	if u := middleware.CurrentUser(c); u != nil {
		return u.UID
	}
	return ""
}
