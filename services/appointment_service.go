package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AppointmentService enforces the booking lifecycle and converts confirmed
// bookings into work orders.
type AppointmentService struct {
	db         *gorm.DB
	notifier   Notifier
	events     Broadcaster
	workOrders *WorkOrderService
}

// NewAppointmentService creates an appointment service
func NewAppointmentService(db *gorm.DB, notifier Notifier, events Broadcaster) *AppointmentService {
	workOrders := NewWorkOrderService(db, notifier, events)
	return &AppointmentService{
		db:         db,
		notifier:   workOrders.notifier,
		events:     workOrders.events,
		workOrders: workOrders,
	}
}

// CreateAppointmentInput is a booking request
type CreateAppointmentInput struct {
	CustomerID         uint
	CarID              *uint
	VehicleDescription string
	IssueDescription   string
	PreferredDate      time.Time
	PreferredTime      string
}

// ConvertInput carries work order details chosen at vehicle drop-off
type ConvertInput struct {
	MileageAtIntake    *int
	AssignedMechanicID *uint
	ByStaffID          *uint
}

// AppointmentFilter narrows an appointment listing
type AppointmentFilter struct {
	Status     models.AppointmentStatus
	CustomerID *uint
	From       *time.Time
	To         *time.Time
	Page       utils.Page
}

// Create books an appointment in Requested
func (s *AppointmentService) Create(ctx context.Context, shopID uint, in CreateAppointmentInput) (*models.Appointment, error) {
	issue := strings.TrimSpace(in.IssueDescription)
	if issue == "" {
		return nil, invalid("issue_description", "is required")
	}
	if in.PreferredDate.IsZero() {
		return nil, invalid("preferred_date", "is required")
	}
	vehicle := strings.TrimSpace(in.VehicleDescription)
	if in.CarID == nil && vehicle == "" {
		return nil, invalid("vehicle_description", "is required when no registered car is given")
	}

	appt := models.Appointment{
		ShopID:             shopID,
		CustomerID:         in.CustomerID,
		CarID:              in.CarID,
		VehicleDescription: vehicle,
		IssueDescription:   issue,
		PreferredDate:      in.PreferredDate.UTC(),
		PreferredTime:      strings.TrimSpace(in.PreferredTime),
		Status:             models.AppointmentRequested,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := activeCustomer(tx, shopID, in.CustomerID, "customer_id"); err != nil {
			return err
		}
		if in.CarID != nil {
			if err := ownedCar(tx, shopID, *in.CarID, in.CustomerID); err != nil {
				return err
			}
		}
		if err := tx.Create(&appt).Error; err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"shop_id": shopID, "appointment_id": appt.ID}).Info("Appointment requested")
	s.events.Broadcast(shopID, EventAppointmentRequested, eventPayload{"appointment_id": appt.ID})
	return &appt, nil
}

func ownedCar(tx *gorm.DB, shopID, carID, customerID uint) error {
	var car models.Car
	if err := findInShop(tx, &car, shopID, carID, "car"); err != nil {
		return err
	}
	if car.OwnerID != customerID {
		return invalid("car_id", "car %d does not belong to customer %d", carID, customerID)
	}
	return nil
}

// Get returns one appointment with customer and car
func (s *AppointmentService) Get(ctx context.Context, shopID, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	if err := findInShop(s.db.WithContext(ctx).Preload("Customer").Preload("Car"), &appt, shopID, id, "appointment"); err != nil {
		return nil, err
	}
	return &appt, nil
}

// List returns a page of appointments ordered by preferred date
func (s *AppointmentService) List(ctx context.Context, shopID uint, f AppointmentFilter) ([]models.Appointment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Appointment{}).Where("shop_id = ?", shopID)
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, invalid("status", "unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.From != nil {
		q = q.Where("preferred_date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("preferred_date < ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var appts []models.Appointment
	if err := q.Preload("Customer").Preload("Car").
		Order("preferred_date, id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&appts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, total, nil
}

// Confirm accepts a requested appointment. The confirmed date defaults to the
// customer's preferred date.
func (s *AppointmentService) Confirm(ctx context.Context, shopID, id uint, confirmedDate *time.Time, byStaffID *uint) (*models.Appointment, error) {
	var (
		appt     models.Appointment
		customer models.Customer
		shop     *models.Shop
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &appt, shopID, id, "appointment"); err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(models.AppointmentConfirmed) {
			return invalid("status", "appointment is %s and cannot be confirmed", appt.Status)
		}

		when := appt.PreferredDate
		if confirmedDate != nil && !confirmedDate.IsZero() {
			when = confirmedDate.UTC()
		}
		if err := tx.Model(&appt).Updates(map[string]interface{}{
			"status":                models.AppointmentConfirmed,
			"confirmed_date":        when,
			"confirmed_by_staff_id": byStaffID,
		}).Error; err != nil {
			return fmt.Errorf("failed to confirm appointment: %w", err)
		}
		appt.Status = models.AppointmentConfirmed
		appt.ConfirmedDate = &when
		appt.ConfirmedByStaffID = byStaffID

		if err := tx.First(&customer, appt.CustomerID).Error; err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		var err error
		shop, err = loadShop(tx, shopID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, Notification{
		ShopID:     shopID,
		CustomerID: uintPtr(customer.ID),
		Phone:      customer.Phone,
		Type:       models.MessageAppointmentConfirmed,
		Body:       appointmentConfirmedMessage(*shop, customer, *appt.ConfirmedDate, appt.PreferredTime),
	})
	return &appt, nil
}

// Reject declines a requested appointment. A reason is mandatory.
func (s *AppointmentService) Reject(ctx context.Context, shopID, id uint, reason string) (*models.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "is required")
	}

	var appt models.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &appt, shopID, id, "appointment"); err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(models.AppointmentRejected) {
			return invalid("status", "appointment is %s and cannot be rejected", appt.Status)
		}
		appt.Status = models.AppointmentRejected
		appt.RejectionReason = reason
		return tx.Model(&appt).Updates(map[string]interface{}{
			"status":           appt.Status,
			"rejection_reason": reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// AttachCar links a registered car to an appointment booked with a free-text
// vehicle description, so it can be converted.
func (s *AppointmentService) AttachCar(ctx context.Context, shopID, id, carID uint) (*models.Appointment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appt models.Appointment
		if err := findInShop(forUpdate(tx), &appt, shopID, id, "appointment"); err != nil {
			return err
		}
		if appt.Status.IsTerminal() {
			return invalid("status", "appointment is %s", appt.Status)
		}
		if err := ownedCar(tx, shopID, carID, appt.CustomerID); err != nil {
			return err
		}
		return tx.Model(&appt).Update("car_id", carID).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, shopID, id)
}

// ConvertToWorkOrder turns a confirmed appointment into a work order and
// marks the appointment Arrived. A second call fails with ConflictError.
func (s *AppointmentService) ConvertToWorkOrder(ctx context.Context, shopID, id uint, in ConvertInput) (*models.WorkOrder, error) {
	var order *models.WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appt models.Appointment
		if err := findInShop(forUpdate(tx), &appt, shopID, id, "appointment"); err != nil {
			return err
		}
		if appt.WorkOrderID != nil {
			return conflict("appointment %d was already converted to work order %d", appt.ID, *appt.WorkOrderID)
		}
		if !appt.Status.CanTransitionTo(models.AppointmentArrived) {
			return invalid("status", "appointment is %s; only confirmed appointments can be converted", appt.Status)
		}
		if appt.CarID == nil {
			return invalid("car_id", "register the vehicle and attach it before converting")
		}

		// guard against a concurrent conversion that committed after our read
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ? AND work_order_id IS NULL", appt.ID, models.AppointmentConfirmed).
			Update("status", models.AppointmentArrived)
		if res.Error != nil {
			return fmt.Errorf("failed to mark appointment arrived: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("appointment %d was already converted", appt.ID)
		}

		var err error
		order, err = s.workOrders.createTx(tx, shopID, CreateWorkOrderInput{
			CarID:              *appt.CarID,
			CustomerID:         appt.CustomerID,
			ReportedIssues:     appt.IssueDescription,
			MileageAtIntake:    in.MileageAtIntake,
			AssignedMechanicID: in.AssignedMechanicID,
			ByStaffID:          in.ByStaffID,
			appointmentID:      &appt.ID,
		})
		if err != nil {
			return err
		}
		return tx.Model(&models.Appointment{}).Where("id = ?", appt.ID).Update("work_order_id", order.ID).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"shop_id":        shopID,
		"appointment_id": id,
		"work_order_id":  order.ID,
	}).Info("Appointment converted to work order")
	s.events.Broadcast(shopID, EventWorkOrderCreated, order)
	return s.workOrders.Get(ctx, shopID, order.ID)
}

// Cancel withdraws an appointment that has not been turned into a visit yet
func (s *AppointmentService) Cancel(ctx context.Context, shopID, id uint, customerID *uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appt models.Appointment
		if err := findInShop(forUpdate(tx), &appt, shopID, id, "appointment"); err != nil {
			return err
		}
		if customerID != nil && appt.CustomerID != *customerID {
			return notFound("appointment", id)
		}
		if appt.Status == models.AppointmentArrived {
			return invalid("status", "appointment %d has already been converted to a work order", id)
		}
		if err := tx.Delete(&appt).Error; err != nil {
			return fmt.Errorf("failed to cancel appointment: %w", err)
		}
		return nil
	})
}
