package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RegistryService owns customer and car records and the ownership history
// between them.
type RegistryService struct {
	db          *gorm.DB
	notifier    Notifier
	phoneRegion string
}

// NewRegistryService creates a registry service
func NewRegistryService(db *gorm.DB, notifier Notifier, phoneRegion string) *RegistryService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if phoneRegion == "" {
		phoneRegion = "BG"
	}
	return &RegistryService{db: db, notifier: notifier, phoneRegion: phoneRegion}
}

// RegisterCustomerInput is the data needed to register a customer
type RegisterCustomerInput struct {
	FirstName   string
	LastName    string
	Phone       string
	Email       string
	Password    string
	GDPRConsent bool
}

// UpdateCustomerInput carries optional profile changes
type UpdateCustomerInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Email     *string
}

// CustomerFilter narrows a customer listing
type CustomerFilter struct {
	Search          string
	IncludeInactive bool
	Page            utils.Page
}

// fieldValidator checks single values with the same rules gin applies to
// bound request bodies.
var fieldValidator = validator.New()

// validateEmail accepts an empty value or a bare address; display-name forms
// such as "Ivan <ivan@example.com>" are rejected.
func validateEmail(email string) error {
	if err := fieldValidator.Var(email, "omitempty,email"); err != nil {
		return invalid("email", "%q is not a valid email address", email)
	}
	return nil
}

// RegisterCustomer creates a customer and returns the plaintext password
// exactly once. A welcome notification is requested after commit.
func (s *RegistryService) RegisterCustomer(ctx context.Context, shopID uint, in RegisterCustomerInput) (*models.Customer, string, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" {
		return nil, "", invalid("first_name", "is required")
	}
	if in.LastName == "" {
		return nil, "", invalid("last_name", "is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, "", err
	}
	phone, err := NormalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		return nil, "", err
	}

	password := in.Password
	if password == "" {
		if password, err = GeneratePassword(generatedPasswordLength); err != nil {
			return nil, "", err
		}
	} else if len(password) < minPasswordLength {
		return nil, "", invalid("password", "must be at least %d characters", minPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	customer := models.Customer{
		ShopID:       shopID,
		Phone:        phone,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		GDPRConsent:  in.GDPRConsent,
		IsActive:     true,
	}
	if in.GDPRConsent {
		customer.GDPRConsentDate = timePtr(time.Now().UTC())
	}

	var shop *models.Shop
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if shop, err = loadShop(tx, shopID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Customer{}).
			Where("shop_id = ? AND phone = ?", shopID, phone).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check phone: %w", err)
		}
		if existing > 0 {
			return conflict("a customer with phone %s already exists", phone)
		}

		if err := tx.Create(&customer).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("a customer with phone %s already exists", phone)
			}
			return fmt.Errorf("failed to create customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	log.WithFields(log.Fields{"shop_id": shopID, "customer_id": customer.ID}).Info("Customer registered")

	s.notifier.Notify(ctx, Notification{
		ShopID:     shopID,
		CustomerID: uintPtr(customer.ID),
		Phone:      customer.Phone,
		Type:       models.MessageWelcome,
		Body:       welcomeMessage(*shop, customer, password),
		LogBody:    welcomeMessage(*shop, customer, "********"),
	})

	return &customer, password, nil
}

// GetCustomer returns one customer with their cars
func (s *RegistryService) GetCustomer(ctx context.Context, shopID, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := findInShop(s.db.WithContext(ctx).Preload("Cars"), &customer, shopID, id, "customer"); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByPhone resolves a login phone to the shop's customer
func (s *RegistryService) FindCustomerByPhone(ctx context.Context, shopID uint, rawPhone string) (*models.Customer, error) {
	phone, err := NormalizePhone(rawPhone, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	var customer models.Customer
	err = s.db.WithContext(ctx).Where("shop_id = ? AND phone = ?", shopID, phone).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("customer", 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return &customer, nil
}

// ListCustomers returns a page of customers and the total match count
func (s *RegistryService) ListCustomers(ctx context.Context, shopID uint, f CustomerFilter) ([]models.Customer, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Customer{}).Where("shop_id = ?", shopID)
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?",
			like, like, "%"+term+"%", like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var customers []models.Customer
	if err := q.Order("last_name, first_name").Offset(page.Offset()).Limit(page.Size).Find(&customers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, total, nil
}

// UpdateCustomer applies profile changes. A new phone is normalized and must
// stay unique within the shop.
func (s *RegistryService) UpdateCustomer(ctx context.Context, shopID, id uint, in UpdateCustomerInput) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &customer, shopID, id, "customer"); err != nil {
			return err
		}

		if in.FirstName != nil {
			if strings.TrimSpace(*in.FirstName) == "" {
				return invalid("first_name", "cannot be empty")
			}
			customer.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			if strings.TrimSpace(*in.LastName) == "" {
				return invalid("last_name", "cannot be empty")
			}
			customer.LastName = strings.TrimSpace(*in.LastName)
		}
		if in.Email != nil {
			email := strings.TrimSpace(*in.Email)
			if err := validateEmail(email); err != nil {
				return err
			}
			customer.Email = email
		}
		if in.Phone != nil {
			phone, err := NormalizePhone(*in.Phone, s.phoneRegion)
			if err != nil {
				return err
			}
			if phone != customer.Phone {
				var taken int64
				if err := tx.Model(&models.Customer{}).
					Where("shop_id = ? AND phone = ? AND id <> ?", shopID, phone, id).
					Count(&taken).Error; err != nil {
					return fmt.Errorf("failed to check phone: %w", err)
				}
				if taken > 0 {
					return conflict("a customer with phone %s already exists", phone)
				}
				customer.Phone = phone
			}
		}

		if err := tx.Save(&customer).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("a customer with phone %s already exists", customer.Phone)
			}
			return fmt.Errorf("failed to update customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// SetConsent records the customer's data-processing consent. The consent
// date is stamped when consent is first given.
func (s *RegistryService) SetConsent(ctx context.Context, shopID, id uint, consent bool) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &customer, shopID, id, "customer"); err != nil {
			return err
		}
		if consent && !customer.GDPRConsent {
			customer.GDPRConsentDate = timePtr(time.Now().UTC())
		}
		customer.GDPRConsent = consent
		return tx.Model(&customer).Select("gdpr_consent", "gdpr_consent_date").Updates(&customer).Error
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// ChangePassword replaces the password after verifying the current one
func (s *RegistryService) ChangePassword(ctx context.Context, shopID, id uint, current, next string) error {
	if len(next) < minPasswordLength {
		return invalid("new_password", "must be at least %d characters", minPasswordLength)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := findInShop(forUpdate(tx), &customer, shopID, id, "customer"); err != nil {
			return err
		}
		if !CheckPassword(customer.PasswordHash, current) {
			return invalid("current_password", "does not match")
		}
		hash, err := HashPassword(next)
		if err != nil {
			return err
		}
		return tx.Model(&customer).Update("password_hash", hash).Error
	})
}

// DeactivateCustomer soft-deactivates a customer. Records are kept.
func (s *RegistryService) DeactivateCustomer(ctx context.Context, shopID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("shop_id = ? AND id = ?", shopID, id).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("customer", id)
	}
	log.WithFields(log.Fields{"shop_id": shopID, "customer_id": id}).Info("Customer deactivated")
	return nil
}
