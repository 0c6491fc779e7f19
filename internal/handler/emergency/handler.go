package emergency

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/service/dispatch"
	apperrors "github.com/medgrid/dispatch-api/pkg/errors"
	"github.com/medgrid/dispatch-api/pkg/httputil"
)

type Handler struct {
	service dispatch.Servicer
}

func NewHandler(service dispatch.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	emergencies := r.Group("/emergencies")
	{
		emergencies.POST("", h.CreateEmergency)
		emergencies.GET("", h.ListEmergencies)
		emergencies.GET("/:id", h.GetEmergency)
		emergencies.PATCH("/:id/status", h.UpdateStatus)
	}
}

// CreateEmergency dispatches a new incident: it reserves capacity on the best
// eligible hospital and returns the assignment.
func (h *Handler) CreateEmergency(c *gin.Context) {
	var req model.CreateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	result, err := h.service.CreateEmergency(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) GetEmergency(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid emergency ID", err))
		return
	}

	emergency, err := h.service.GetEmergency(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, emergency)
}

func (h *Handler) ListEmergencies(c *gin.Context) {
	emergencies, err := h.service.ListEmergencies(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, emergencies)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid emergency ID", err))
		return
	}

	var req model.UpdateEmergencyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	emergency, err := h.service.UpdateEmergencyStatus(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, emergency)
}
