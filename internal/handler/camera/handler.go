package camera

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/camera"
	"github.com/humanplus/posture-console/internal/middleware"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/httputil"
)

type Controller interface {
	Start(ctx context.Context) camera.Result
	Stop(ctx context.Context) camera.Result
	Status(ctx context.Context) camera.Result
}

type Handler struct {
	camera Controller
}

func NewHandler(c Controller) *Handler {
	return &Handler{camera: c}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cam := r.Group("/camera")
	{
		cam.POST("/start", h.Start)
		cam.POST("/stop", h.Stop)
		cam.GET("/status", h.Status)
	}
}

func (h *Handler) Start(c *gin.Context) {
	respond(c, h.camera.Start(ctx(c)))
}

func (h *Handler) Stop(c *gin.Context) {
	respond(c, h.camera.Stop(ctx(c)))
}

func (h *Handler) Status(c *gin.Context) {
	respond(c, h.camera.Status(ctx(c)))
}

func ctx(c *gin.Context) context.Context {
	return camera.WithToken(c.Request.Context(), middleware.CurrentToken(c))
}

func respond(c *gin.Context, res camera.Result) {
	if !res.Success {
		httputil.RespondWithError(c, apperrors.Unavailable(res.Message, nil))
		return
	}
	httputil.RespondWithSuccess(c, res)
}
