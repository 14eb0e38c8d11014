// internal/handlers/appointment/appointment_handler.go
package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medconnect-service/internal/domain/appointment"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/response"
	service "medconnect-service/internal/service/appointment"
)

type AppointmentHandler struct {
	appointmentService *service.AppointmentService
}

func NewAppointmentHandler(appointmentService *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentService: appointmentService,
	}
}

// Book creates an appointment; the route is gated on the appointment limit
func (h *AppointmentHandler) Book(c *gin.Context) {
	patientID := middleware.MustGetIdentity(c).UserID

	var req appointment.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.appointmentService.Book(c.Request.Context(), patientID, req)
	if err != nil {
		response.FromError(c, "failed to book appointment", err)
		return
	}

	response.Success(c, http.StatusCreated, "appointment booked", result)
}

func (h *AppointmentHandler) List(c *gin.Context) {
	patientID := middleware.MustGetIdentity(c).UserID

	result, err := h.appointmentService.List(c.Request.Context(), patientID)
	if err != nil {
		response.FromError(c, "failed to list appointments", err)
		return
	}

	response.Success(c, http.StatusOK, "appointments retrieved", result)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	patientID := middleware.MustGetIdentity(c).UserID

	result, err := h.appointmentService.Cancel(c.Request.Context(), patientID, c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to cancel appointment", err)
		return
	}

	response.Success(c, http.StatusOK, "appointment cancelled", result)
}
