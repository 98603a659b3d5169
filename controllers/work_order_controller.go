package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/shopspring/decimal"
)

// CreateWorkOrderRequest represents the request body for opening a work order
type CreateWorkOrderRequest struct {
	CarID              uint   `json:"car_id" binding:"required"`
	CustomerID         uint   `json:"customer_id"`
	ReportedIssues     string `json:"reported_issues" binding:"required"`
	MileageAtIntake    *int   `json:"mileage_at_intake"`
	AssignedMechanicID *uint  `json:"assigned_mechanic_id"`
}

// StatusRequest moves a work order one step, either by direction or by
// naming the adjacent target status
type StatusRequest struct {
	Direction services.Direction     `json:"direction"`
	Status    models.WorkOrderStatus `json:"status"`
}

// NotesRequest represents a notes update
type NotesRequest struct {
	ReportedIssues  *string `json:"reported_issues"`
	DiagnosticNotes *string `json:"diagnostic_notes"`
	MechanicNotes   *string `json:"mechanic_notes"`
}

// LineItemRequest represents a part or labor entry
type LineItemRequest struct {
	ItemType    models.LineItemType `json:"item_type" binding:"required"`
	Description string              `json:"description" binding:"required"`
	Quantity    decimal.Decimal     `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	Notes       string              `json:"notes"`
}

// ReassignRequest represents a mechanic change
type ReassignRequest struct {
	MechanicID uint   `json:"mechanic_id" binding:"required"`
	Reason     string `json:"reason"`
}

// redactedLineItem is a line item as shown to mechanics without pricing access
type redactedLineItem struct {
	ID          uint                `json:"id"`
	ItemType    models.LineItemType `json:"item_type"`
	Description string              `json:"description"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Notes       string              `json:"notes,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type redactedWorkOrder struct {
	*models.WorkOrder
	LineItems []redactedLineItem `json:"line_items,omitempty"`
}

// presentWorkOrder hides prices from mechanics when the shop says so
func presentWorkOrder(c *gin.Context, shopID uint, order *models.WorkOrder) (interface{}, bool) {
	if middleware.GetRole(c) != models.RoleMechanic {
		return order, true
	}
	shop, err := shopService().GetShop(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if shop.MechanicsSeePricing {
		return order, true
	}

	view := redactedWorkOrder{WorkOrder: order, LineItems: make([]redactedLineItem, 0, len(order.LineItems))}
	for _, item := range order.LineItems {
		view.LineItems = append(view.LineItems, redactedLineItem{
			ID:          item.ID,
			ItemType:    item.ItemType,
			Description: item.Description,
			Quantity:    item.Quantity,
			Notes:       item.Notes,
			CreatedAt:   item.CreatedAt,
		})
	}
	return view, true
}

// loadWorkOrderFor fetches a work order the caller may see. Customers only
// see their own; mechanics may only change work assigned to them.
func loadWorkOrderFor(c *gin.Context, shopID, id uint, mutating bool) (*models.WorkOrder, bool) {
	order, err := workOrderService().Get(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	switch middleware.GetRole(c) {
	case models.RoleCustomer:
		customerID := middleware.GetCustomerID(c)
		if mutating || customerID == nil || order.CustomerID != *customerID {
			respondError(c, &services.NotFoundError{Resource: "work order", ID: id})
			return nil, false
		}
	case models.RoleMechanic:
		staffID := middleware.GetStaffID(c)
		if mutating && (staffID == nil || order.AssignedMechanicID == nil || *order.AssignedMechanicID != *staffID) {
			forbidden(c, "This work order is not assigned to you")
			return nil, false
		}
	}
	return order, true
}

// CreateWorkOrder handles POST /api/v1/work-orders (front desk)
func CreateWorkOrder(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req CreateWorkOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := workOrderService().Create(c.Request.Context(), shopID, services.CreateWorkOrderInput{
		CarID:              req.CarID,
		CustomerID:         req.CustomerID,
		ReportedIssues:     req.ReportedIssues,
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

// ListWorkOrders handles GET /api/v1/work-orders
func ListWorkOrders(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	filter := services.WorkOrderFilter{
		Status: models.WorkOrderStatus(c.Query("status")),
		Page:   pageFromQuery(c),
	}
	if filter.MechanicID, ok = queryUint(c, "mechanic_id"); !ok {
		return
	}
	if filter.CarID, ok = queryUint(c, "car_id"); !ok {
		return
	}
	if filter.CustomerID, ok = queryUint(c, "customer_id"); !ok {
		return
	}
	if customerID := middleware.GetCustomerID(c); customerID != nil {
		filter.CustomerID = customerID
	}
	listWorkOrders(c, shopID, filter)
}

// ListMyTasks handles GET /api/v1/work-orders/my-tasks (mechanics)
func ListMyTasks(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	staffID := middleware.GetStaffID(c)
	if staffID == nil {
		forbidden(c, "Only staff have tasks")
		return
	}
	listWorkOrders(c, shopID, services.WorkOrderFilter{
		Status:     models.WorkOrderStatus(c.Query("status")),
		MechanicID: staffID,
		Page:       pageFromQuery(c),
	})
}

func listWorkOrders(c *gin.Context, shopID uint, filter services.WorkOrderFilter) {
	orders, total, err := workOrderService().List(c.Request.Context(), shopID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, orders, total, filter.Page)
}

// GetWorkOrder handles GET /api/v1/work-orders/:id
func GetWorkOrder(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, ok := loadWorkOrderFor(c, shopID, id, false)
	if !ok {
		return
	}
	view, ok := presentWorkOrder(c, shopID, order)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, view)
}

// ChangeWorkOrderStatus handles PATCH /api/v1/work-orders/:id/status
func ChangeWorkOrderStatus(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Direction == "" && req.Status == "" {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Either direction or status is required", gin.H{"field": "direction"})
		return
	}
	if _, ok := loadWorkOrderFor(c, shopID, id, true); !ok {
		return
	}

	svc := workOrderService()
	var order *models.WorkOrder
	var err error
	if req.Status != "" {
		order, err = svc.TransitionTo(c.Request.Context(), shopID, id, req.Status)
	} else {
		order, err = svc.TransitionStatus(c.Request.Context(), shopID, id, req.Direction)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	view, ok := presentWorkOrder(c, shopID, order)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, view)
}

// UpdateWorkOrderNotes handles PATCH /api/v1/work-orders/:id/notes
func UpdateWorkOrderNotes(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req NotesRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, ok := loadWorkOrderFor(c, shopID, id, true); !ok {
		return
	}
	// mechanics record findings, the front desk owns the customer's words
	if middleware.GetRole(c) == models.RoleMechanic && req.ReportedIssues != nil {
		forbidden(c, "Mechanics cannot change the reported issues")
		return
	}

	order, err := workOrderService().UpdateNotes(c.Request.Context(), shopID, id, services.NotesInput{
		ReportedIssues:  req.ReportedIssues,
		DiagnosticNotes: req.DiagnosticNotes,
		MechanicNotes:   req.MechanicNotes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	view, ok := presentWorkOrder(c, shopID, order)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, view)
}

// lineItemPolicy decides whether the caller may edit line items and whether
// a Done work order is still open to them
func lineItemPolicy(c *gin.Context, shopID uint) (allowWhenDone bool, ok bool) {
	role := middleware.GetRole(c)
	if role.IsFrontDesk() {
		return true, true
	}
	if role != models.RoleMechanic {
		forbidden(c, "You cannot edit line items")
		return false, false
	}
	shop, err := shopService().GetShop(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, err)
		return false, false
	}
	if !shop.MechanicsCanAddLineItems {
		forbidden(c, "Mechanics are not allowed to edit line items in this shop")
		return false, false
	}
	return false, true
}

// AddLineItem handles POST /api/v1/work-orders/:id/line-items
func AddLineItem(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if !bindJSON(c, &req) {
		return
	}
	allowWhenDone, ok := lineItemPolicy(c, shopID)
	if !ok {
		return
	}
	if _, ok := loadWorkOrderFor(c, shopID, id, true); !ok {
		return
	}

	item, err := workOrderService().AddLineItem(c.Request.Context(), shopID, id, services.LineItemInput{
		ItemType:      req.ItemType,
		Description:   req.Description,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		Notes:         req.Notes,
		ByStaffID:     middleware.GetStaffID(c),
		AllowWhenDone: allowWhenDone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, item)
}

// RemoveLineItem handles DELETE /api/v1/work-orders/:id/line-items/:itemId
func RemoveLineItem(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	allowWhenDone, ok := lineItemPolicy(c, shopID)
	if !ok {
		return
	}
	if _, ok := loadWorkOrderFor(c, shopID, id, true); !ok {
		return
	}

	if err := workOrderService().RemoveLineItem(c.Request.Context(), shopID, id, itemID, allowWhenDone); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": itemID, "deleted": true})
}

// ReassignWorkOrder handles POST /api/v1/work-orders/:id/reassign (front desk)
func ReassignWorkOrder(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ReassignRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := workOrderService().Reassign(c.Request.Context(), shopID, id, req.MechanicID, req.Reason, middleware.GetStaffID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// GetAssignmentHistory handles GET /api/v1/work-orders/:id/assignments (staff)
func GetAssignmentHistory(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := workOrderService().AssignmentHistory(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}
