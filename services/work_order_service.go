package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Direction is the way a work order moves through its lifecycle
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// WorkOrderService enforces the work order lifecycle and its line items
type WorkOrderService struct {
	db       *gorm.DB
	notifier Notifier
	events   Broadcaster
}

// NewWorkOrderService creates a work order service
func NewWorkOrderService(db *gorm.DB, notifier Notifier, events Broadcaster) *WorkOrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopBroadcaster{}
	}
	return &WorkOrderService{db: db, notifier: notifier, events: events}
}

// CreateWorkOrderInput is the data needed to open a work order.
// CustomerID defaults to the car's current owner.
type CreateWorkOrderInput struct {
	CarID              uint
	CustomerID         uint
	ReportedIssues     string
	MileageAtIntake    *int
	AssignedMechanicID *uint
	ByStaffID          *uint
	appointmentID      *uint
}

// LineItemInput describes a part or labor entry
type LineItemInput struct {
	ItemType    models.LineItemType
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Notes       string
	ByStaffID   *uint
	// AllowWhenDone is the caller's policy decision: front desk roles may
	// touch a Done work order, mechanics may not.
	AllowWhenDone bool
}

// NotesInput carries optional note changes
type NotesInput struct {
	ReportedIssues  *string
	DiagnosticNotes *string
	MechanicNotes   *string
}

// WorkOrderFilter narrows a work order listing
type WorkOrderFilter struct {
	Status     models.WorkOrderStatus
	MechanicID *uint
	CustomerID *uint
	CarID      *uint
	Page       utils.Page
}

// Create opens a work order in Created
func (s *WorkOrderService) Create(ctx context.Context, shopID uint, in CreateWorkOrderInput) (*models.WorkOrder, error) {
	var order *models.WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.createTx(tx, shopID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(shopID, EventWorkOrderCreated, order)
	return s.Get(ctx, shopID, order.ID)
}

// createTx does the work of Create inside the caller's transaction so
// appointment conversion can share it.
func (s *WorkOrderService) createTx(tx *gorm.DB, shopID uint, in CreateWorkOrderInput) (*models.WorkOrder, error) {
	issues := strings.TrimSpace(in.ReportedIssues)
	if issues == "" {
		return nil, invalid("reported_issues", "is required")
	}

	var car models.Car
	if err := findInShop(forUpdate(tx), &car, shopID, in.CarID, "car"); err != nil {
		return nil, err
	}
	if !car.IsActive {
		return nil, invalid("car_id", "car %d is not active", car.ID)
	}

	customerID := in.CustomerID
	if customerID == 0 {
		customerID = car.OwnerID
	}
	if customerID != car.OwnerID {
		return nil, invalid("customer_id", "customer %d does not own car %d", customerID, car.ID)
	}
	if _, err := activeCustomer(tx, shopID, customerID, "customer_id"); err != nil {
		return nil, err
	}

	intake := car.CurrentMileage
	if in.MileageAtIntake != nil && *in.MileageAtIntake != car.CurrentMileage {
		if *in.MileageAtIntake < car.CurrentMileage {
			return nil, invalid("mileage_at_intake", "must not be below current mileage %d", car.CurrentMileage)
		}
		if err := applyMileage(tx, &car, *in.MileageAtIntake); err != nil {
			return nil, err
		}
		intake = car.CurrentMileage
	}

	if in.AssignedMechanicID != nil {
		if _, err := assignableMechanic(tx, shopID, *in.AssignedMechanicID); err != nil {
			return nil, err
		}
	}

	order := models.WorkOrder{
		ShopID:             shopID,
		CustomerID:         customerID,
		CarID:              car.ID,
		AssignedMechanicID: in.AssignedMechanicID,
		AppointmentID:      in.appointmentID,
		Status:             models.WorkOrderCreated,
		ReportedIssues:     issues,
		MileageAtIntake:    intake,
	}
	if err := tx.Create(&order).Error; err != nil {
		if in.appointmentID != nil && isUniqueViolation(err) {
			return nil, conflict("appointment %d was already converted", *in.appointmentID)
		}
		return nil, fmt.Errorf("failed to create work order: %w", err)
	}

	if in.AssignedMechanicID != nil {
		if err := tx.Create(&models.AssignmentHistory{
			ShopID:              shopID,
			WorkOrderID:         order.ID,
			NewMechanicID:       *in.AssignedMechanicID,
			ReassignedByStaffID: in.ByStaffID,
			Reason:              "initial assignment",
			ReassignedAt:        time.Now().UTC(),
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to record assignment: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"shop_id":       shopID,
		"work_order_id": order.ID,
		"car_id":        car.ID,
		"intake_km":     intake,
	}).Info("Work order created")
	return &order, nil
}

func assignableMechanic(tx *gorm.DB, shopID, staffID uint) (*models.Staff, error) {
	var staff models.Staff
	if err := findInShop(tx, &staff, shopID, staffID, "staff"); err != nil {
		return nil, err
	}
	if !staff.IsActive {
		return nil, invalid("mechanic_id", "staff member %d is not active", staffID)
	}
	if staff.Role != models.RoleMechanic && staff.Role != models.RoleManager {
		return nil, invalid("mechanic_id", "staff member %d is a %s, not a mechanic", staffID, staff.Role)
	}
	return &staff, nil
}

// Get returns a work order with its car, customer, mechanic and line items
func (s *WorkOrderService) Get(ctx context.Context, shopID, id uint) (*models.WorkOrder, error) {
	var order models.WorkOrder
	q := s.db.WithContext(ctx).
		Preload("Car").
		Preload("Customer").
		Preload("AssignedMechanic").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	if err := findInShop(q, &order, shopID, id, "work order"); err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns a page of work orders, newest first, and the total count
func (s *WorkOrderService) List(ctx context.Context, shopID uint, f WorkOrderFilter) ([]models.WorkOrder, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.WorkOrder{}).Where("shop_id = ?", shopID)
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, invalid("status", "unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.MechanicID != nil {
		q = q.Where("assigned_mechanic_id = ?", *f.MechanicID)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.CarID != nil {
		q = q.Where("car_id = ?", *f.CarID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count work orders: %w", err)
	}

	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var orders []models.WorkOrder
	if err := q.Preload("Car").Preload("Customer").Preload("AssignedMechanic").
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list work orders: %w", err)
	}
	return orders, total, nil
}

// TransitionStatus moves a work order exactly one step. Forward from Done is
// a no-op; backward from Created is rejected.
func (s *WorkOrderService) TransitionStatus(ctx context.Context, shopID, id uint, dir Direction) (*models.WorkOrder, error) {
	return s.transition(ctx, shopID, id, func(current models.WorkOrderStatus) (models.WorkOrderStatus, error) {
		switch dir {
		case Forward:
			next, _ := current.Next()
			return next, nil
		case Backward:
			prev, ok := current.Previous()
			if !ok {
				return current, invalid("direction", "work order is %s and cannot move back", current)
			}
			return prev, nil
		default:
			return current, invalid("direction", "must be %q or %q", Forward, Backward)
		}
	})
}

// TransitionTo moves a work order to target, which must be adjacent to the
// current status. Requesting the current Done status again is a no-op.
func (s *WorkOrderService) TransitionTo(ctx context.Context, shopID, id uint, target models.WorkOrderStatus) (*models.WorkOrder, error) {
	if !target.Valid() {
		return nil, invalid("status", "unknown status %q", target)
	}
	return s.transition(ctx, shopID, id, func(current models.WorkOrderStatus) (models.WorkOrderStatus, error) {
		if target == current && current == models.WorkOrderDone {
			return current, nil
		}
		if !current.CanTransitionTo(target) {
			return current, invalid("status", "cannot move from %s to %s", current, target)
		}
		return target, nil
	})
}

func (s *WorkOrderService) transition(ctx context.Context, shopID, id uint, pick func(models.WorkOrderStatus) (models.WorkOrderStatus, error)) (*models.WorkOrder, error) {
	var (
		order      models.WorkOrder
		from       models.WorkOrderStatus
		notifyCar  *models.Car
		notifyCust *models.Customer
		shop       *models.Shop
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &order, shopID, id, "work order"); err != nil {
			return err
		}
		from = order.Status

		next, err := pick(from)
		if err != nil {
			return err
		}
		if next == from {
			return nil
		}
		if !from.CanTransitionTo(next) {
			return invalid("status", "cannot move from %s to %s", from, next)
		}

		if from == models.WorkOrderDone {
			var invoices int64
			if err := tx.Model(&models.Invoice{}).Where("work_order_id = ?", order.ID).Count(&invoices).Error; err != nil {
				return fmt.Errorf("failed to check invoice: %w", err)
			}
			if invoices > 0 {
				return conflict("work order %d is already invoiced", order.ID)
			}
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"status": next}
		if next == models.WorkOrderInProgress && order.StartedAt == nil {
			updates["started_at"] = now
		}
		if from == models.WorkOrderDone {
			updates["completed_at"] = nil
		}
		if next == models.WorkOrderDone {
			updates["completed_at"] = now
			if order.ReadyNotifiedAt == nil {
				updates["ready_notified_at"] = now
				notifyCar, notifyCust = &models.Car{}, &models.Customer{}
				if err := tx.First(notifyCar, order.CarID).Error; err != nil {
					return fmt.Errorf("failed to load car: %w", err)
				}
				if err := tx.First(notifyCust, order.CustomerID).Error; err != nil {
					return fmt.Errorf("failed to load customer: %w", err)
				}
				if shop, err = loadShop(tx, shopID); err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update work order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if updated.Status == from {
		return updated, nil
	}

	log.WithFields(log.Fields{
		"shop_id":       shopID,
		"work_order_id": id,
		"from":          from,
		"to":            updated.Status,
	}).Info("Work order status changed")

	s.events.Broadcast(shopID, EventWorkOrderStatusChanged, eventPayload{
		"work_order_id": id,
		"from":          from,
		"to":            updated.Status,
	})
	if notifyCar != nil {
		s.notifier.Notify(ctx, Notification{
			ShopID:     shopID,
			CustomerID: uintPtr(notifyCust.ID),
			Phone:      notifyCust.Phone,
			Type:       models.MessageCarReady,
			Body:       carReadyMessage(*shop, *notifyCust, *notifyCar),
		})
	}
	return updated, nil
}

// lockedByInvoice reports a ConflictError when the work order's invoice has
// been finalized or paid.
func lockedByInvoice(tx *gorm.DB, workOrderID uint) error {
	var invoice models.Invoice
	err := tx.Where("work_order_id = ?", workOrderID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check invoice: %w", err)
	}
	if invoice.Status.LocksLineItems() {
		return conflict("invoice %s is %s; line items are locked", invoice.DisplayNumber, invoice.Status)
	}
	return nil
}

// AddLineItem records a part or labor entry. Total is quantity x unit price
// rounded to the shop's currency precision. A Draft invoice for the work
// order is re-totalled in the same transaction.
func (s *WorkOrderService) AddLineItem(ctx context.Context, shopID, workOrderID uint, in LineItemInput) (*models.WorkOrderLineItem, error) {
	if !in.ItemType.Valid() {
		return nil, invalid("item_type", "must be %q or %q", models.LineItemPart, models.LineItemLabor)
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, invalid("description", "is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, invalid("quantity", "must be greater than zero")
	}
	if in.UnitPrice.IsNegative() {
		return nil, invalid("unit_price", "cannot be negative")
	}

	var item models.WorkOrderLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.WorkOrder
		if err := findInShop(forUpdate(tx), &order, shopID, workOrderID, "work order"); err != nil {
			return err
		}
		if order.Status == models.WorkOrderDone && !in.AllowWhenDone {
			return invalid("status", "work order %d is done", order.ID)
		}
		if err := lockedByInvoice(tx, order.ID); err != nil {
			return err
		}
		shop, err := loadShop(tx, shopID)
		if err != nil {
			return err
		}

		item = models.WorkOrderLineItem{
			ShopID:         shopID,
			WorkOrderID:    order.ID,
			ItemType:       in.ItemType,
			Description:    in.Description,
			Quantity:       in.Quantity,
			UnitPrice:      in.UnitPrice,
			TotalPrice:     shop.RoundMoney(in.Quantity.Mul(in.UnitPrice)),
			Notes:          in.Notes,
			AddedByStaffID: in.ByStaffID,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add line item: %w", err)
		}
		return retotalDraftInvoice(tx, shop, order.ID)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveLineItem deletes a line item under the same rules as AddLineItem
func (s *WorkOrderService) RemoveLineItem(ctx context.Context, shopID, workOrderID, itemID uint, allowWhenDone bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.WorkOrder
		if err := findInShop(forUpdate(tx), &order, shopID, workOrderID, "work order"); err != nil {
			return err
		}
		if order.Status == models.WorkOrderDone && !allowWhenDone {
			return invalid("status", "work order %d is done", order.ID)
		}
		if err := lockedByInvoice(tx, order.ID); err != nil {
			return err
		}

		res := tx.Where("shop_id = ? AND work_order_id = ? AND id = ?", shopID, workOrderID, itemID).
			Delete(&models.WorkOrderLineItem{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove line item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("line item", itemID)
		}
		shop, err := loadShop(tx, shopID)
		if err != nil {
			return err
		}
		return retotalDraftInvoice(tx, shop, order.ID)
	})
}

// UpdateNotes edits the free-text fields of a work order
func (s *WorkOrderService) UpdateNotes(ctx context.Context, shopID, id uint, in NotesInput) (*models.WorkOrder, error) {
	updates := map[string]interface{}{}
	if in.ReportedIssues != nil {
		if strings.TrimSpace(*in.ReportedIssues) == "" {
			return nil, invalid("reported_issues", "cannot be empty")
		}
		updates["reported_issues"] = strings.TrimSpace(*in.ReportedIssues)
	}
	if in.DiagnosticNotes != nil {
		updates["diagnostic_notes"] = *in.DiagnosticNotes
	}
	if in.MechanicNotes != nil {
		updates["mechanic_notes"] = *in.MechanicNotes
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.WorkOrder
		if err := findInShop(forUpdate(tx), &order, shopID, id, "work order"); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&order).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, shopID, id)
}

// Reassign hands the work order to another mechanic and appends a history row
func (s *WorkOrderService) Reassign(ctx context.Context, shopID, id, mechanicID uint, reason string, byStaffID *uint) (*models.WorkOrder, error) {
	var previous *uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.WorkOrder
		if err := findInShop(forUpdate(tx), &order, shopID, id, "work order"); err != nil {
			return err
		}
		if order.Status == models.WorkOrderDone {
			return invalid("status", "work order %d is done and cannot be reassigned", order.ID)
		}
		if order.AssignedMechanicID != nil && *order.AssignedMechanicID == mechanicID {
			return invalid("mechanic_id", "staff member %d is already assigned", mechanicID)
		}
		if _, err := assignableMechanic(tx, shopID, mechanicID); err != nil {
			return err
		}

		previous = order.AssignedMechanicID
		if err := tx.Create(&models.AssignmentHistory{
			ShopID:              shopID,
			WorkOrderID:         order.ID,
			PreviousMechanicID:  previous,
			NewMechanicID:       mechanicID,
			ReassignedByStaffID: byStaffID,
			Reason:              strings.TrimSpace(reason),
			ReassignedAt:        time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to record assignment: %w", err)
		}
		return tx.Model(&order).Update("assigned_mechanic_id", mechanicID).Error
	})
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(shopID, EventWorkOrderReassigned, eventPayload{
		"work_order_id": id,
		"previous":      previous,
		"mechanic_id":   mechanicID,
	})
	return s.Get(ctx, shopID, id)
}

// AssignmentHistory lists a work order's assignments, oldest first
func (s *WorkOrderService) AssignmentHistory(ctx context.Context, shopID, id uint) ([]models.AssignmentHistory, error) {
	var order models.WorkOrder
	if err := findInShop(s.db.WithContext(ctx), &order, shopID, id, "work order"); err != nil {
		return nil, err
	}
	var history []models.AssignmentHistory
	if err := s.db.WithContext(ctx).
		Where("shop_id = ? AND work_order_id = ?", shopID, id).
		Order("reassigned_at, id").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load assignment history: %w", err)
	}
	return history, nil
}
