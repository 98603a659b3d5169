package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ShopService manages tenants, their settings and their staff
type ShopService struct {
	db             *gorm.DB
	defaultTaxRate decimal.Decimal
	phoneRegion    string
}

// NewShopService creates a shop service. New shops start with defaultTaxRate.
func NewShopService(db *gorm.DB, defaultTaxRate decimal.Decimal, phoneRegion string) *ShopService {
	if phoneRegion == "" {
		phoneRegion = "BG"
	}
	return &ShopService{db: db, defaultTaxRate: defaultTaxRate, phoneRegion: phoneRegion}
}

// CreateShopInput is the data needed to open a new shop
type CreateShopInput struct {
	Name             string
	Address          string
	Phone            string
	Email            string
	Website          string
	SubscriptionTier models.SubscriptionTier
	Currency         string
	TaxRate          *decimal.Decimal
}

// ShopSettingsInput carries optional settings changes
type ShopSettingsInput struct {
	Name                           *string
	Address                        *string
	Phone                          *string
	Email                          *string
	Website                        *string
	SMSEnabled                     *bool
	MechanicsSeePricing            *bool
	MechanicsCanAddLineItems       *bool
	BlockTransferWithOpenWorkOrder *bool
	TaxRate                        *decimal.Decimal
	Currency                       *string
	CurrencyPrecision              *int32
	SubscriptionTier               *models.SubscriptionTier
}

// CreateStaffInput is the data needed to add an employee
type CreateStaffInput struct {
	AuthSubject string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Role        models.Role
	Specialty   string
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return invalid("tax_rate", "must be between 0 and 1")
	}
	return nil
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", invalid("currency", "must be a three letter ISO 4217 code")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", invalid("currency", "must be a three letter ISO 4217 code")
		}
	}
	return code, nil
}

// CreateShop opens a shop and its invoice counter
func (s *ShopService) CreateShop(ctx context.Context, in CreateShopInput) (*models.Shop, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	if err := validateEmail(strings.TrimSpace(in.Email)); err != nil {
		return nil, err
	}
	if in.SubscriptionTier == "" {
		in.SubscriptionTier = models.TierBasic
	}
	if !in.SubscriptionTier.Valid() {
		return nil, invalid("subscription_tier", "unknown tier %q", in.SubscriptionTier)
	}
	if in.Currency == "" {
		in.Currency = "BGN"
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	rate := s.defaultTaxRate
	if in.TaxRate != nil {
		rate = *in.TaxRate
	}
	if err := validateTaxRate(rate); err != nil {
		return nil, err
	}

	shop := models.Shop{
		Name:              in.Name,
		Address:           strings.TrimSpace(in.Address),
		Phone:             strings.TrimSpace(in.Phone),
		Email:             strings.TrimSpace(in.Email),
		Website:           strings.TrimSpace(in.Website),
		IsActive:          true,
		SubscriptionTier:  in.SubscriptionTier,
		TaxRate:           rate,
		Currency:          currency,
		CurrencyPrecision: 2,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shop).Error; err != nil {
			return fmt.Errorf("failed to create shop: %w", err)
		}
		if err := tx.Create(&models.InvoiceSequence{ShopID: shop.ID}).Error; err != nil {
			return fmt.Errorf("failed to create invoice sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"shop_id": shop.ID, "name": shop.Name}).Info("Shop created")
	return &shop, nil
}

// GetShop returns a shop by id, active or not
func (s *ShopService) GetShop(ctx context.Context, id uint) (*models.Shop, error) {
	return loadShop(s.db.WithContext(ctx), id)
}

// ListShops returns a page of shops ordered by id
func (s *ShopService) ListShops(ctx context.Context, page utils.Page) ([]models.Shop, int64, error) {
	var total int64
	q := s.db.WithContext(ctx).Model(&models.Shop{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count shops: %w", err)
	}
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var shops []models.Shop
	if err := q.Order("id").Offset(page.Offset()).Limit(page.Size).Find(&shops).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, total, nil
}

// SetShopActive suspends or reinstates a shop. Suspended shops reject all
// tenant requests.
func (s *ShopService) SetShopActive(ctx context.Context, id uint, active bool) (*models.Shop, error) {
	shop, err := loadShop(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(shop).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("failed to update shop: %w", err)
	}
	shop.IsActive = active
	log.WithFields(log.Fields{"shop_id": id, "active": active}).Info("Shop activation changed")
	return shop, nil
}

// UpdateSettings applies the non-nil fields of in
func (s *ShopService) UpdateSettings(ctx context.Context, shopID uint, in ShopSettingsInput) (*models.Shop, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "cannot be empty")
		}
		updates["name"] = name
	}
	if in.Address != nil {
		updates["address"] = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		updates["email"] = email
	}
	if in.Website != nil {
		updates["website"] = strings.TrimSpace(*in.Website)
	}
	if in.SMSEnabled != nil {
		updates["sms_enabled"] = *in.SMSEnabled
	}
	if in.MechanicsSeePricing != nil {
		updates["mechanics_see_pricing"] = *in.MechanicsSeePricing
	}
	if in.MechanicsCanAddLineItems != nil {
		updates["mechanics_can_add_line_items"] = *in.MechanicsCanAddLineItems
	}
	if in.BlockTransferWithOpenWorkOrder != nil {
		updates["block_transfer_with_open_work_order"] = *in.BlockTransferWithOpenWorkOrder
	}
	if in.TaxRate != nil {
		if err := validateTaxRate(*in.TaxRate); err != nil {
			return nil, err
		}
		updates["tax_rate"] = *in.TaxRate
	}
	if in.Currency != nil {
		currency, err := normalizeCurrency(*in.Currency)
		if err != nil {
			return nil, err
		}
		updates["currency"] = currency
	}
	if in.CurrencyPrecision != nil {
		if *in.CurrencyPrecision < 0 || *in.CurrencyPrecision > 4 {
			return nil, invalid("currency_precision", "must be between 0 and 4")
		}
		updates["currency_precision"] = *in.CurrencyPrecision
	}
	if in.SubscriptionTier != nil {
		if !in.SubscriptionTier.Valid() {
			return nil, invalid("subscription_tier", "unknown tier %q", *in.SubscriptionTier)
		}
		updates["subscription_tier"] = *in.SubscriptionTier
	}

	db := s.db.WithContext(ctx)
	shop, err := loadShop(db, shopID)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := db.Model(shop).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update shop settings: %w", err)
		}
	}
	return loadShop(db, shopID)
}

// CreateStaff adds an employee to the shop. Super admins are provisioned
// outside of any shop and cannot be created here.
func (s *ShopService) CreateStaff(ctx context.Context, shopID uint, in CreateStaffInput) (*models.Staff, error) {
	in.AuthSubject = strings.TrimSpace(in.AuthSubject)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	switch {
	case in.AuthSubject == "":
		return nil, invalid("auth_subject", "is required")
	case in.FirstName == "":
		return nil, invalid("first_name", "is required")
	case in.LastName == "":
		return nil, invalid("last_name", "is required")
	}
	switch in.Role {
	case models.RoleManager, models.RoleReceptionist, models.RoleMechanic:
	default:
		return nil, invalid("role", "must be manager, receptionist or mechanic")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	phone := ""
	if strings.TrimSpace(in.Phone) != "" {
		var err error
		if phone, err = NormalizePhone(in.Phone, s.phoneRegion); err != nil {
			return nil, err
		}
	}

	staff := models.Staff{
		ShopID:      shopID,
		AuthSubject: in.AuthSubject,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Phone:       phone,
		Role:        in.Role,
		Specialty:   strings.TrimSpace(in.Specialty),
		IsActive:    true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadShop(tx, shopID); err != nil {
			return err
		}
		if err := tx.Create(&staff).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("auth subject %q is already in use", in.AuthSubject)
			}
			return fmt.Errorf("failed to create staff: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"shop_id": shopID, "staff_id": staff.ID, "role": staff.Role}).Info("Staff member created")
	return &staff, nil
}

// StaffFilter narrows a staff listing
type StaffFilter struct {
	Role            models.Role
	IncludeInactive bool
}

// ListStaff returns the shop's employees ordered by name
func (s *ShopService) ListStaff(ctx context.Context, shopID uint, f StaffFilter) ([]models.Staff, error) {
	q := s.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	var staff []models.Staff
	if err := q.Order("last_name, first_name").Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}

// GetStaff returns one employee of the shop
func (s *ShopService) GetStaff(ctx context.Context, shopID, id uint) (*models.Staff, error) {
	var staff models.Staff
	if err := findInShop(s.db.WithContext(ctx), &staff, shopID, id, "staff"); err != nil {
		return nil, err
	}
	return &staff, nil
}

// SetStaffActive deactivates or reactivates an employee. actorID may not
// deactivate themselves.
func (s *ShopService) SetStaffActive(ctx context.Context, shopID, id, actorID uint, active bool) (*models.Staff, error) {
	if !active && id == actorID {
		return nil, invalid("staff_id", "you cannot deactivate your own account")
	}
	staff, err := s.GetStaff(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(staff).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("failed to update staff: %w", err)
	}
	staff.IsActive = active
	log.WithFields(log.Fields{"shop_id": shopID, "staff_id": id, "active": active}).Info("Staff activation changed")
	return staff, nil
}
