package visit

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/handler"
	"github.com/humanplus/posture-console/internal/middleware"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/service/visit"
	"github.com/humanplus/posture-console/pkg/httputil"
)

const maxVisits = 200

type Handler struct {
	service visit.VisitService
}

func NewHandler(service visit.VisitService) *Handler {
	return &Handler{service: service}
}

type exercisesRequest struct {
	Exercises []json.RawMessage `json:"exercises" binding:"required"`
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	visits := r.Group("/visits")
	{
		visits.GET("", h.ListVisits)
		visits.POST("", h.CreateVisit)
		visits.GET("/:id", h.GetVisit)
		visits.PUT("/:id/exercises", h.UpdateExercises)
	}
}

func (h *Handler) CreateVisit(c *gin.Context) {
	var req model.CreateVisitRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.OperatorID == "" {
		if u := middleware.CurrentUser(c); u != nil {
			req.OperatorID = u.UID
		}
	}

	v, err := h.service.CreateVisit(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, v)
}

// ListVisits returns the most recent visits across all patients.
func (h *Handler) ListVisits(c *gin.Context) {
	limit, ok := handler.QueryLimit(c, maxVisits)
	if !ok {
		return
	}
	visits, err := h.service.ListByDate(c.Request.Context(), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visits)
}

func (h *Handler) GetVisit(c *gin.Context) {
	v, err := h.service.GetVisit(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) UpdateExercises(c *gin.Context) {
	var req exercisesRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	v, err := h.service.UpdateExercises(c.Request.Context(), c.Param("id"), req.Exercises)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}
