package controllers

import (
	"net/http"
	"strings"

	dbpkg "valeria/db"
	"valeria/models"

	"github.com/gin-gonic/gin"
)

// GET /api/appointments
func GetAppointments(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	q := db.Where("client_id = ?", client.ID)
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}

	var appointments []models.Appointment
	if err := q.Order("scheduled_at asc").Find(&appointments).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"appointments": appointments})
}

// POST /api/appointments
func CreateAppointment(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	appointment := models.Appointment{}
	if err := c.Bind(&appointment); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if appointment.CustomerID <= 0 {
		RespondError(c, "customer_id é obrigatório", http.StatusBadRequest)
		return
	}

	var customer models.Customer
	if err := db.Where("id = ? AND client_id = ?", appointment.CustomerID, client.ID).
		First(&customer).Error; err != nil {
		RespondError(c, "customer não encontrado", http.StatusNotFound)
		return
	}

	appointment.ID = 0
	appointment.ClientID = client.ID
	if appointment.Status == "" {
		appointment.Status = models.APPOINTMENT_STATUS_SCHEDULED
	}

	if err := db.Create(&appointment).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"appointment": appointment})
}

type updateAppointmentReq struct {
	Status string `json:"status"`
}

// PUT /api/appointments/:id/status
func UpdateAppointmentStatus(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var appointment models.Appointment
	if err := db.Where("id = ? AND client_id = ?", id, client.ID).First(&appointment).Error; err != nil {
		RespondError(c, "appointment não encontrado", http.StatusNotFound)
		return
	}

	var req updateAppointmentReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	status := strings.TrimSpace(req.Status)
	switch status {
	case models.APPOINTMENT_STATUS_SCHEDULED, models.APPOINTMENT_STATUS_DONE, models.APPOINTMENT_STATUS_CANCELLED:
	default:
		RespondError(c, "status inválido", http.StatusBadRequest)
		return
	}

	if err := db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).
		Update("status", status).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, true)
}
