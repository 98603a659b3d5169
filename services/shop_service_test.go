package services

import (
	"context"
	"testing"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"BGN", "BGN", false},
		{" eur ", "EUR", false},
		{"", "", true},
		{"EURO", "", true},
		{"E1R", "", true},
		{"лев", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeCurrency(tt.in)
		if tt.wantErr {
			assert.True(t, IsValidation(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateTaxRate(t *testing.T) {
	for _, ok := range []string{"0", "0.09", "0.2", "1"} {
		assert.NoError(t, validateTaxRate(decimal.RequireFromString(ok)), ok)
	}
	for _, bad := range []string{"-0.01", "1.01", "20"} {
		assert.True(t, IsValidation(validateTaxRate(decimal.RequireFromString(bad))), bad)
	}
}

func TestCreateShop(t *testing.T) {
	db := testutil.NewTestDB(t)
	service := NewShopService(db, decimal.RequireFromString("0.20"), "")
	ctx := context.Background()

	shop, err := service.CreateShop(ctx, CreateShopInput{Name: "  Sofia Motors ", Email: "desk@sofiamotors.bg"})
	require.NoError(t, err)
	assert.Equal(t, "Sofia Motors", shop.Name)
	assert.True(t, shop.IsActive)
	assert.Equal(t, models.TierBasic, shop.SubscriptionTier)
	assert.Equal(t, "BGN", shop.Currency)
	assert.Equal(t, int32(2), shop.CurrencyPrecision)
	assert.True(t, shop.TaxRate.Equal(decimal.RequireFromString("0.2")))

	var seq models.InvoiceSequence
	require.NoError(t, db.First(&seq, "shop_id = ?", shop.ID).Error)
	assert.Zero(t, seq.LastNumber)

	rate := decimal.RequireFromString("0.09")
	custom, err := service.CreateShop(ctx, CreateShopInput{Name: "Varna Garage", Currency: "eur", TaxRate: &rate, SubscriptionTier: models.TierPro})
	require.NoError(t, err)
	assert.Equal(t, "EUR", custom.Currency)
	assert.True(t, custom.TaxRate.Equal(rate))

	tooHigh := decimal.RequireFromString("1.5")
	invalidInputs := []struct {
		field string
		in    CreateShopInput
	}{
		{"name", CreateShopInput{Name: "  "}},
		{"email", CreateShopInput{Name: "X", Email: "not-an-email"}},
		{"subscription_tier", CreateShopInput{Name: "X", SubscriptionTier: "platinum"}},
		{"currency", CreateShopInput{Name: "X", Currency: "LEVA"}},
		{"tax_rate", CreateShopInput{Name: "X", TaxRate: &tooHigh}},
	}
	for _, tt := range invalidInputs {
		_, err := service.CreateShop(ctx, tt.in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, tt.field)
		assert.Equal(t, tt.field, verr.Field)
	}
}

func TestUpdateShopSettings(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors", testutil.WithSMS())
	service := NewShopService(db, decimal.RequireFromString("0.20"), "BG")
	ctx := context.Background()

	off := false
	on := true
	precision := int32(0)
	currency := "eur"
	updated, err := service.UpdateSettings(ctx, shop.ID, ShopSettingsInput{
		SMSEnabled:                     &off,
		BlockTransferWithOpenWorkOrder: &on,
		CurrencyPrecision:              &precision,
		Currency:                       &currency,
	})
	require.NoError(t, err)
	assert.False(t, updated.SMSEnabled)
	assert.True(t, updated.BlockTransferWithOpenWorkOrder)
	assert.Equal(t, int32(0), updated.CurrencyPrecision)
	assert.Equal(t, "EUR", updated.Currency)
	assert.Equal(t, "Sofia Motors", updated.Name)

	tooPrecise := int32(5)
	_, err = service.UpdateSettings(ctx, shop.ID, ShopSettingsInput{CurrencyPrecision: &tooPrecise})
	assert.True(t, IsValidation(err))

	blank := " "
	_, err = service.UpdateSettings(ctx, shop.ID, ShopSettingsInput{Name: &blank})
	assert.True(t, IsValidation(err))

	_, err = service.UpdateSettings(ctx, shop.ID+100, ShopSettingsInput{})
	assert.True(t, IsNotFound(err))
}

func TestSetShopActive(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	service := NewShopService(db, decimal.Zero, "")

	suspended, err := service.SetShopActive(context.Background(), shop.ID, false)
	require.NoError(t, err)
	assert.False(t, suspended.IsActive)

	reloaded, err := service.GetShop(context.Background(), shop.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	shops, total, err := service.ListShops(context.Background(), utils.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, shops, 1)
}

func TestCreateStaff(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	service := NewShopService(db, decimal.Zero, "BG")
	ctx := context.Background()

	staff, err := service.CreateStaff(ctx, shop.ID, CreateStaffInput{
		AuthSubject: "auth0|mech-1",
		FirstName:   "Georgi",
		LastName:    "Dimitrov",
		Phone:       "0888 123 456",
		Role:        models.RoleMechanic,
		Specialty:   " brakes ",
	})
	require.NoError(t, err)
	assert.Equal(t, "+359888123456", staff.Phone)
	assert.Equal(t, "brakes", staff.Specialty)
	assert.True(t, staff.IsActive)

	_, err = service.CreateStaff(ctx, shop.ID, CreateStaffInput{AuthSubject: "auth0|mech-1", FirstName: "A", LastName: "B", Role: models.RoleReceptionist})
	assert.True(t, IsConflict(err))

	for _, role := range []models.Role{models.RoleSuperAdmin, models.RoleCustomer, "owner"} {
		_, err := service.CreateStaff(ctx, shop.ID, CreateStaffInput{AuthSubject: "auth0|x", FirstName: "A", LastName: "B", Role: role})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, string(role))
		assert.Equal(t, "role", verr.Field)
	}

	_, err = service.CreateStaff(ctx, shop.ID+100, CreateStaffInput{AuthSubject: "auth0|y", FirstName: "A", LastName: "B", Role: models.RoleManager})
	assert.True(t, IsNotFound(err))
}

func TestStaffActivation(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	manager := testutil.CreateStaff(t, db, shop.ID, models.RoleManager, "auth0|manager")
	mechanic := testutil.CreateStaff(t, db, shop.ID, models.RoleMechanic, "auth0|mechanic")
	service := NewShopService(db, decimal.Zero, "")
	ctx := context.Background()

	_, err := service.SetStaffActive(ctx, shop.ID, manager.ID, manager.ID, false)
	assert.True(t, IsValidation(err))

	_, err = service.SetStaffActive(ctx, shop.ID, mechanic.ID, manager.ID, false)
	require.NoError(t, err)

	active, err := service.ListStaff(ctx, shop.ID, StaffFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, manager.ID, active[0].ID)

	mechanics, err := service.ListStaff(ctx, shop.ID, StaffFilter{Role: models.RoleMechanic, IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, mechanics, 1)

	other := testutil.CreateShop(t, db, "Plovdiv Auto")
	_, err = service.GetStaff(ctx, other.ID, mechanic.ID)
	assert.True(t, IsNotFound(err))
}
