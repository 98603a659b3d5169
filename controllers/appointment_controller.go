package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

const dateLayout = "2006-01-02"

// RequestAppointmentRequest represents a booking. Staff book on behalf of
// a customer; customers always book for themselves.
type RequestAppointmentRequest struct {
	CustomerID         uint   `json:"customer_id"`
	CarID              *uint  `json:"car_id"`
	VehicleDescription string `json:"vehicle_description"`
	IssueDescription   string `json:"issue_description" binding:"required"`
	PreferredDate      string `json:"preferred_date" binding:"required"`
	PreferredTime      string `json:"preferred_time"`
}

// ConfirmAppointmentRequest optionally moves the booking to another date
type ConfirmAppointmentRequest struct {
	ConfirmedDate string `json:"confirmed_date"`
}

// RejectAppointmentRequest carries the reason shown to the customer
type RejectAppointmentRequest struct {
	Reason string `json:"reason"`
}

// ConvertAppointmentRequest carries intake details at drop-off
type ConvertAppointmentRequest struct {
	MileageAtIntake    *int  `json:"mileage_at_intake"`
	AssignedMechanicID *uint `json:"assigned_mechanic_id"`
}

// AttachCarRequest links a registered car to a booking
type AttachCarRequest struct {
	CarID uint `json:"car_id" binding:"required"`
}

func parseDate(c *gin.Context, field, value string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", field+" must be a date in YYYY-MM-DD format", gin.H{"field": field})
		return time.Time{}, false
	}
	return t, true
}

func loadAppointmentFor(c *gin.Context, shopID, id uint) (*models.Appointment, bool) {
	appt, err := appointmentService().Get(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if isCustomer(c) {
		customerID := middleware.GetCustomerID(c)
		if customerID == nil || appt.CustomerID != *customerID {
			respondError(c, &services.NotFoundError{Resource: "appointment", ID: id})
			return nil, false
		}
	}
	return appt, true
}

// RequestAppointment handles POST /api/v1/appointments
func RequestAppointment(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req RequestAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	preferred, ok := parseDate(c, "preferred_date", req.PreferredDate)
	if !ok {
		return
	}

	customerID := req.CustomerID
	if self := middleware.GetCustomerID(c); self != nil {
		customerID = *self
	} else if customerID == 0 {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "customer_id is required", gin.H{"field": "customer_id"})
		return
	}

	appt, err := appointmentService().Create(c.Request.Context(), shopID, services.CreateAppointmentInput{
		CustomerID:         customerID,
		CarID:              req.CarID,
		VehicleDescription: req.VehicleDescription,
		IssueDescription:   req.IssueDescription,
		PreferredDate:      preferred,
		PreferredTime:      req.PreferredTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, appt)
}

// ListAppointments handles GET /api/v1/appointments
// Optional query parameters: status, customer_id, from, to (YYYY-MM-DD)
func ListAppointments(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	filter := services.AppointmentFilter{
		Status: models.AppointmentStatus(c.Query("status")),
		Page:   pageFromQuery(c),
	}
	if filter.CustomerID, ok = queryUint(c, "customer_id"); !ok {
		return
	}
	if isCustomer(c) {
		filter.CustomerID = middleware.GetCustomerID(c)
	}
	if from := c.Query("from"); from != "" {
		t, ok := parseDate(c, "from", from)
		if !ok {
			return
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, ok := parseDate(c, "to", to)
		if !ok {
			return
		}
		filter.To = &t
	}
	listAppointments(c, shopID, filter)
}

// ListPendingAppointments handles GET /api/v1/appointments/pending (front desk)
func ListPendingAppointments(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	listAppointments(c, shopID, services.AppointmentFilter{
		Status: models.AppointmentRequested,
		Page:   pageFromQuery(c),
	})
}

func listAppointments(c *gin.Context, shopID uint, filter services.AppointmentFilter) {
	appts, total, err := appointmentService().List(c.Request.Context(), shopID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, appts, total, filter.Page)
}

// GetAppointment handles GET /api/v1/appointments/:id
func GetAppointment(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	appt, ok := loadAppointmentFor(c, shopID, id)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, appt)
}

// ConfirmAppointment handles POST /api/v1/appointments/:id/confirm
func ConfirmAppointment(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ConfirmAppointmentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	var confirmed *time.Time
	if req.ConfirmedDate != "" {
		t, ok := parseDate(c, "confirmed_date", req.ConfirmedDate)
		if !ok {
			return
		}
		confirmed = &t
	}

	appt, err := appointmentService().Confirm(c.Request.Context(), shopID, id, confirmed, middleware.GetStaffID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, appt)
}

// RejectAppointment handles POST /api/v1/appointments/:id/reject
func RejectAppointment(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RejectAppointmentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	appt, err := appointmentService().Reject(c.Request.Context(), shopID, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, appt)
}

// AttachAppointmentCar handles PUT /api/v1/appointments/:id/car
func AttachAppointmentCar(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AttachCarRequest
	if !bindJSON(c, &req) {
		return
	}

	appt, err := appointmentService().AttachCar(c.Request.Context(), shopID, id, req.CarID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, appt)
}

// ConvertAppointment handles POST /api/v1/appointments/:id/convert
func ConvertAppointment(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ConvertAppointmentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	order, err := appointmentService().ConvertToWorkOrder(c.Request.Context(), shopID, id, services.ConvertInput{
		MileageAtIntake:    req.MileageAtIntake,
		AssignedMechanicID: req.AssignedMechanicID,
		ByStaffID:          middleware.GetStaffID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, order)
}

// CancelAppointment handles DELETE /api/v1/appointments/:id
// Customers may only cancel their own bookings.
func CancelAppointment(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var owner *uint
	if isCustomer(c) {
		owner = middleware.GetCustomerID(c)
	}
	if err := appointmentService().Cancel(c.Request.Context(), shopID, id, owner); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "cancelled": true})
}
