package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/humanplus/posture-console/internal/handler"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/service/patient"
	"github.com/humanplus/posture-console/internal/service/visit"
	"github.com/humanplus/posture-console/pkg/httputil"
)

const maxVisitsPerPatient = 100

type Handler struct {
	service patient.PatientService
	visits  visit.VisitService
}

func NewHandler(service patient.PatientService, visits visit.VisitService) *Handler {
	return &Handler{service: service, visits: visits}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.GET("/:id/visits", h.ListVisits)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.ListPatients(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var form model.NewPatientForm
	if !handler.BindJSON(c, &form) {
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), &form)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

// ListVisits returns the patient's most recent visits, newest first.
func (h *Handler) ListVisits(c *gin.Context) {
	limit, ok := handler.QueryLimit(c, maxVisitsPerPatient)
	if !ok {
		return
	}
	visits, err := h.visits.ListRecentByPatient(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visits)
}
