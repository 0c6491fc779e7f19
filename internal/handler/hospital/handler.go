package hospital

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/service/hospital"
	apperrors "github.com/medgrid/dispatch-api/pkg/errors"
	"github.com/medgrid/dispatch-api/pkg/httputil"
)

type Handler struct {
	service hospital.Servicer
}

func NewHandler(service hospital.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	hospitals := r.Group("/hospitals")
	{
		hospitals.POST("", h.CreateHospital)
		hospitals.GET("", h.ListHospitals)
		hospitals.GET("/:id", h.GetHospital)
		hospitals.PATCH("/:id", h.UpdateHospital)
	}
}

func (h *Handler) CreateHospital(c *gin.Context) {
	var req model.CreateHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	created, err := h.service.CreateHospital(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) GetHospital(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid hospital ID", err))
		return
	}

	found, err := h.service.GetHospital(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, found)
}

func (h *Handler) ListHospitals(c *gin.Context) {
	hospitals, err := h.service.ListHospitals(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hospitals)
}

func (h *Handler) UpdateHospital(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid hospital ID", err))
		return
	}

	var req model.UpdateHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	updated, err := h.service.UpdateHospital(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}
