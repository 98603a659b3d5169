package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type workOrderFixture struct {
	db       *gorm.DB
	shop     *models.Shop
	customer *models.Customer
	car      *models.Car
	mechanic *models.Staff
	service  *WorkOrderService
}

func newWorkOrderFixture(t *testing.T, opts ...testutil.ShopOption) *workOrderFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors", opts...)
	customer := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	return &workOrderFixture{
		db:       db,
		shop:     shop,
		customer: customer,
		car:      testutil.CreateCar(t, db, shop.ID, customer.ID, "CA1234AB", 50000),
		mechanic: testutil.CreateStaff(t, db, shop.ID, models.RoleMechanic, "auth0|mech"),
		service:  NewWorkOrderService(db, nil, nil),
	}
}

func lineItem(kind models.LineItemType, qty, price string) LineItemInput {
	return LineItemInput{
		ItemType:    kind,
		Description: "Item",
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString(price),
	}
}

func TestCreateWorkOrderValidation(t *testing.T) {
	f := newWorkOrderFixture(t)
	other := testutil.CreateCustomer(t, f.db, f.shop.ID, "+359888999999")
	desk := testutil.CreateStaff(t, f.db, f.shop.ID, models.RoleReceptionist, "auth0|desk")

	tests := []struct {
		name  string
		in    CreateWorkOrderInput
		check func(error) bool
	}{
		{"blank issues", CreateWorkOrderInput{CarID: f.car.ID, ReportedIssues: "  "}, IsValidation},
		{"unknown car", CreateWorkOrderInput{CarID: 999, ReportedIssues: "x"}, IsNotFound},
		{"customer does not own car", CreateWorkOrderInput{CarID: f.car.ID, CustomerID: other.ID, ReportedIssues: "x"}, IsValidation},
		{"receptionist as mechanic", CreateWorkOrderInput{CarID: f.car.ID, ReportedIssues: "x", AssignedMechanicID: &desk.ID}, IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Create(context.Background(), f.shop.ID, tt.in)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestCreateWorkOrderRecordsInitialAssignment(t *testing.T) {
	f := newWorkOrderFixture(t)
	order, err := f.service.Create(context.Background(), f.shop.ID, CreateWorkOrderInput{
		CarID:              f.car.ID,
		ReportedIssues:     "Rattle",
		AssignedMechanicID: &f.mechanic.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 50000, order.MileageAtIntake)
	require.NotNil(t, order.AssignedMechanic)
	assert.Equal(t, f.mechanic.ID, order.AssignedMechanic.ID)

	history, err := f.service.AssignmentHistory(context.Background(), f.shop.ID, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "initial assignment", history[0].Reason)
}

func TestLineItemTotalsAreRounded(t *testing.T) {
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderInProgress, 50000, time.Now())

	tests := []struct {
		qty, price, want string
	}{
		{"2", "25.00", "50"},
		{"1.5", "33.33", "50"},
		{"3", "0.333", "1"},
		{"0.25", "10", "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.qty+"x"+tt.price, func(t *testing.T) {
			item, err := f.service.AddLineItem(context.Background(), f.shop.ID, order.ID, lineItem(models.LineItemPart, tt.qty, tt.price))
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.TotalPrice.String())
		})
	}
}

func TestLineItemValidation(t *testing.T) {
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderInProgress, 50000, time.Now())

	blank := lineItem(models.LineItemLabor, "1", "10")
	blank.Description = " "

	tests := []struct {
		name  string
		in    LineItemInput
		field string
	}{
		{"unknown type", lineItem("service", "1", "10"), "item_type"},
		{"blank description", blank, "description"},
		{"zero quantity", lineItem(models.LineItemPart, "0", "10"), "quantity"},
		{"negative price", lineItem(models.LineItemPart, "1", "-1"), "unit_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.AddLineItem(context.Background(), f.shop.ID, order.ID, tt.in)
			var v *ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}
}

func TestLineItemsOnDoneWorkOrder(t *testing.T) {
	ctx := context.Background()
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderDone, 50000, time.Now())
	existing := testutil.AddLineItem(t, f.db, order, "Filter", "1", "10")

	_, err := f.service.AddLineItem(ctx, f.shop.ID, order.ID, lineItem(models.LineItemPart, "1", "5"))
	assert.True(t, IsValidation(err), "mechanics cannot touch a done work order")
	assert.True(t, IsValidation(f.service.RemoveLineItem(ctx, f.shop.ID, order.ID, existing.ID, false)))

	frontDesk := lineItem(models.LineItemPart, "1", "5")
	frontDesk.AllowWhenDone = true
	_, err = f.service.AddLineItem(ctx, f.shop.ID, order.ID, frontDesk)
	require.NoError(t, err)
	require.NoError(t, f.service.RemoveLineItem(ctx, f.shop.ID, order.ID, existing.ID, true))
	assert.True(t, IsNotFound(f.service.RemoveLineItem(ctx, f.shop.ID, order.ID, existing.ID, true)))
}

func TestLockedByInvoice(t *testing.T) {
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderDone, 50000, time.Now())

	assert.NoError(t, lockedByInvoice(f.db, order.ID), "no invoice yet")

	invoice := models.Invoice{
		ShopID:        f.shop.ID,
		Number:        1,
		DisplayNumber: "INV-2026-00001",
		WorkOrderID:   order.ID,
		CustomerID:    order.CustomerID,
		Status:        models.InvoiceDraft,
		Currency:      "BGN",
	}
	require.NoError(t, f.db.Create(&invoice).Error)
	assert.NoError(t, lockedByInvoice(f.db, order.ID), "drafts stay editable")

	for _, status := range []models.InvoiceStatus{models.InvoiceFinalized, models.InvoicePaid} {
		require.NoError(t, f.db.Model(&invoice).Update("status", status).Error)
		assert.True(t, IsConflict(lockedByInvoice(f.db, order.ID)), string(status))
	}
}

func TestTransitionToRejectsUnknownStatus(t *testing.T) {
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderCreated, 50000, time.Now())

	_, err := f.service.TransitionTo(context.Background(), f.shop.ID, order.ID, "finished")
	assert.True(t, IsValidation(err))
	_, err = f.service.TransitionStatus(context.Background(), f.shop.ID, order.ID, "sideways")
	assert.True(t, IsValidation(err))

	done := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderDone, 50000, time.Now())
	same, err := f.service.TransitionTo(context.Background(), f.shop.ID, done.ID, models.WorkOrderDone)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderDone, same.Status)
}

func TestUpdateNotes(t *testing.T) {
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderDiagnosing, 50000, time.Now())

	empty := ""
	_, err := f.service.UpdateNotes(context.Background(), f.shop.ID, order.ID, NotesInput{ReportedIssues: &empty})
	assert.True(t, IsValidation(err))

	diag := "Worn front pads"
	updated, err := f.service.UpdateNotes(context.Background(), f.shop.ID, order.ID, NotesInput{DiagnosticNotes: &diag})
	require.NoError(t, err)
	assert.Equal(t, diag, updated.DiagnosticNotes)
	assert.Equal(t, "Routine service", updated.ReportedIssues)
}

func TestListWorkOrdersFilters(t *testing.T) {
	f := newWorkOrderFixture(t)
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderDone, 40000, base)
	open := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderInProgress, 50000, base.Add(24*time.Hour))
	require.NoError(t, f.db.Model(open).Update("assigned_mechanic_id", f.mechanic.ID).Error)

	other := testutil.CreateShop(t, f.db, "Elsewhere")
	owner := testutil.CreateCustomer(t, f.db, other.ID, "+359888000000")
	testutil.CreateWorkOrder(t, f.db, testutil.CreateCar(t, f.db, other.ID, owner.ID, "X1", 1), models.WorkOrderInProgress, 1, base)

	all, total, err := f.service.List(context.Background(), f.shop.ID, WorkOrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, open.ID, all[0].ID, "newest first")

	mine, _, err := f.service.List(context.Background(), f.shop.ID, WorkOrderFilter{MechanicID: &f.mechanic.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, open.ID, mine[0].ID)

	done, _, err := f.service.List(context.Background(), f.shop.ID, WorkOrderFilter{Status: models.WorkOrderDone})
	require.NoError(t, err)
	assert.Len(t, done, 1)

	_, _, err = f.service.List(context.Background(), f.shop.ID, WorkOrderFilter{Status: "bogus"})
	assert.True(t, IsValidation(err))
}

func TestReassignDoneWorkOrder(t *testing.T) {
	f := newWorkOrderFixture(t)
	order := testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderDone, 50000, time.Now())
	_, err := f.service.Reassign(context.Background(), f.shop.ID, order.ID, f.mechanic.ID, "", nil)
	assert.True(t, IsValidation(err))
}
