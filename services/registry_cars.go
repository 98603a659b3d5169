package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// letters (any script, Bulgarian plates use Cyrillic), digits, spaces, dashes
	plateRe = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} \-]{0,18}[\p{L}\p{N}]$`)
	// 17 characters, I, O and Q never appear in a VIN
	vinRe = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
)

// RegisterCarInput is the data needed to register a car
type RegisterCarInput struct {
	OwnerID           uint
	Make              string
	Model             string
	Year              int
	VIN               string
	LicensePlate      string
	Color             string
	CurrentMileage    int
	ServiceIntervalKm *int
	Notes             string
}

// UpdateCarInput carries optional descriptive changes. Mileage and owner
// have their own operations.
type UpdateCarInput struct {
	Make              *string
	Model             *string
	Year              *int
	VIN               *string
	LicensePlate      *string
	Color             *string
	ServiceIntervalKm *int
	Notes             *string
}

// CarFilter narrows a car listing
type CarFilter struct {
	OwnerID *uint
	Search  string
	Page    utils.Page
}

// TransferInput describes an ownership change
type TransferInput struct {
	NewOwnerID uint
	Notes      string
	ByStaffID  *uint
}

// NormalizePlate upper-cases and trims a plate and checks its shape
func NormalizePlate(raw string) (string, error) {
	plate := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if plate == "" {
		return "", invalid("license_plate", "is required")
	}
	if !plateRe.MatchString(plate) {
		return "", invalid("license_plate", "%q is not a valid plate", raw)
	}
	return plate, nil
}

// NormalizeVIN upper-cases a VIN and checks it loosely. Empty is allowed.
func NormalizeVIN(raw string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(raw))
	if vin == "" {
		return "", nil
	}
	if !vinRe.MatchString(vin) {
		return "", invalid("vin", "must be 17 characters without I, O or Q")
	}
	return vin, nil
}

func validateYear(year int) error {
	if year == 0 {
		return nil
	}
	if year < 1900 || year > time.Now().Year()+1 {
		return invalid("year", "%d is out of range", year)
	}
	return nil
}

func ensurePlateFree(tx *gorm.DB, shopID uint, plate string, exceptID uint) error {
	var taken int64
	if err := tx.Model(&models.Car{}).
		Where("shop_id = ? AND license_plate = ? AND id <> ?", shopID, plate, exceptID).
		Count(&taken).Error; err != nil {
		return fmt.Errorf("failed to check plate: %w", err)
	}
	if taken > 0 {
		return conflict("a car with plate %s already exists", plate)
	}
	return nil
}

func activeCustomer(tx *gorm.DB, shopID, id uint, field string) (*models.Customer, error) {
	var customer models.Customer
	if err := findInShop(tx, &customer, shopID, id, "customer"); err != nil {
		return nil, err
	}
	if !customer.IsActive {
		return nil, invalid(field, "customer %d is not active", id)
	}
	return &customer, nil
}

// RegisterCar creates a car for an active customer of the shop
func (s *RegistryService) RegisterCar(ctx context.Context, shopID uint, in RegisterCarInput) (*models.Car, error) {
	in.Make = strings.TrimSpace(in.Make)
	in.Model = strings.TrimSpace(in.Model)
	if in.Make == "" {
		return nil, invalid("make", "is required")
	}
	if in.Model == "" {
		return nil, invalid("model", "is required")
	}
	if err := validateYear(in.Year); err != nil {
		return nil, err
	}
	plate, err := NormalizePlate(in.LicensePlate)
	if err != nil {
		return nil, err
	}
	vin, err := NormalizeVIN(in.VIN)
	if err != nil {
		return nil, err
	}
	if in.CurrentMileage < 0 {
		return nil, invalid("current_mileage", "cannot be negative")
	}
	interval := models.DefaultServiceIntervalKm
	if in.ServiceIntervalKm != nil {
		if *in.ServiceIntervalKm < 0 {
			return nil, invalid("service_interval_km", "cannot be negative")
		}
		interval = *in.ServiceIntervalKm
	}

	car := models.Car{
		ShopID:            shopID,
		OwnerID:           in.OwnerID,
		Make:              in.Make,
		Model:             in.Model,
		Year:              in.Year,
		VIN:               vin,
		LicensePlate:      plate,
		Color:             strings.TrimSpace(in.Color),
		CurrentMileage:    in.CurrentMileage,
		ServiceIntervalKm: interval,
		Notes:             in.Notes,
		IsActive:          true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := activeCustomer(tx, shopID, in.OwnerID, "owner_id"); err != nil {
			return err
		}
		if err := ensurePlateFree(tx, shopID, plate, 0); err != nil {
			return err
		}
		if err := tx.Create(&car).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("a car with plate %s already exists", plate)
			}
			return fmt.Errorf("failed to create car: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"shop_id": shopID, "car_id": car.ID, "plate": car.LicensePlate}).Info("Car registered")
	return &car, nil
}

// GetCar returns one car with its owner
func (s *RegistryService) GetCar(ctx context.Context, shopID, id uint) (*models.Car, error) {
	var car models.Car
	if err := findInShop(s.db.WithContext(ctx).Preload("Owner"), &car, shopID, id, "car"); err != nil {
		return nil, err
	}
	return &car, nil
}

// ListCars returns a page of cars and the total match count
func (s *RegistryService) ListCars(ctx context.Context, shopID uint, f CarFilter) ([]models.Car, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Car{}).Where("shop_id = ?", shopID)
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToUpper(term) + "%"
		q = q.Where("UPPER(make) LIKE ? OR UPPER(model) LIKE ? OR license_plate LIKE ? OR vin LIKE ?", like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cars: %w", err)
	}

	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var cars []models.Car
	if err := q.Preload("Owner").Order("id DESC").Offset(page.Offset()).Limit(page.Size).Find(&cars).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list cars: %w", err)
	}
	return cars, total, nil
}

// UpdateCar applies descriptive changes
func (s *RegistryService) UpdateCar(ctx context.Context, shopID, id uint, in UpdateCarInput) (*models.Car, error) {
	var car models.Car
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &car, shopID, id, "car"); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.Make != nil {
			if strings.TrimSpace(*in.Make) == "" {
				return invalid("make", "cannot be empty")
			}
			updates["make"] = strings.TrimSpace(*in.Make)
		}
		if in.Model != nil {
			if strings.TrimSpace(*in.Model) == "" {
				return invalid("model", "cannot be empty")
			}
			updates["model"] = strings.TrimSpace(*in.Model)
		}
		if in.Year != nil {
			if err := validateYear(*in.Year); err != nil {
				return err
			}
			updates["year"] = *in.Year
		}
		if in.VIN != nil {
			vin, err := NormalizeVIN(*in.VIN)
			if err != nil {
				return err
			}
			updates["vin"] = vin
		}
		if in.LicensePlate != nil {
			plate, err := NormalizePlate(*in.LicensePlate)
			if err != nil {
				return err
			}
			if err := ensurePlateFree(tx, shopID, plate, car.ID); err != nil {
				return err
			}
			updates["license_plate"] = plate
		}
		if in.Color != nil {
			updates["color"] = strings.TrimSpace(*in.Color)
		}
		if in.ServiceIntervalKm != nil {
			if *in.ServiceIntervalKm < 0 {
				return invalid("service_interval_km", "cannot be negative")
			}
			updates["service_interval_km"] = *in.ServiceIntervalKm
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&car).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("a car with that plate already exists")
			}
			return fmt.Errorf("failed to update car: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCar(ctx, shopID, id)
}

// DeleteCar removes a car that has never been serviced
func (s *RegistryService) DeleteCar(ctx context.Context, shopID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if err := findInShop(tx, &car, shopID, id, "car"); err != nil {
			return err
		}

		var orders int64
		if err := tx.Model(&models.WorkOrder{}).Where("shop_id = ? AND car_id = ?", shopID, id).Count(&orders).Error; err != nil {
			return fmt.Errorf("failed to count work orders: %w", err)
		}
		if orders > 0 {
			return conflict("car %d has %d work orders and cannot be deleted", id, orders)
		}

		// hard delete so the plate can be registered again
		if err := tx.Unscoped().Delete(&car).Error; err != nil {
			return fmt.Errorf("failed to delete car: %w", err)
		}
		return nil
	})
}

// UpdateMileage records a new odometer reading. Mileage only goes up.
func (s *RegistryService) UpdateMileage(ctx context.Context, shopID, carID uint, mileage int) (*models.Car, error) {
	var car models.Car
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &car, shopID, carID, "car"); err != nil {
			return err
		}
		return applyMileage(tx, &car, mileage)
	})
	if err != nil {
		return nil, err
	}
	return &car, nil
}

// applyMileage is the monotonic-mileage rule shared with work order intake.
// car must have been loaded inside tx.
func applyMileage(tx *gorm.DB, car *models.Car, mileage int) error {
	if mileage <= car.CurrentMileage {
		return invalid("mileage", "must be greater than current mileage %d", car.CurrentMileage)
	}
	if err := tx.Model(car).Update("current_mileage", mileage).Error; err != nil {
		return fmt.Errorf("failed to update mileage: %w", err)
	}
	car.CurrentMileage = mileage
	return nil
}

// TransferOwnership moves a car to another customer of the same shop and
// writes the history row in the same transaction.
func (s *RegistryService) TransferOwnership(ctx context.Context, shopID, carID uint, in TransferInput) (*models.Car, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shop, err := loadShop(tx, shopID)
		if err != nil {
			return err
		}

		var car models.Car
		if err := findInShop(forUpdate(tx), &car, shopID, carID, "car"); err != nil {
			return err
		}
		if in.NewOwnerID == car.OwnerID {
			return invalid("new_owner_id", "customer %d already owns this car", in.NewOwnerID)
		}
		if _, err := activeCustomer(tx, shopID, in.NewOwnerID, "new_owner_id"); err != nil {
			return err
		}

		if shop.BlockTransferWithOpenWorkOrder {
			var open int64
			if err := tx.Model(&models.WorkOrder{}).
				Where("shop_id = ? AND car_id = ? AND status <> ?", shopID, carID, models.WorkOrderDone).
				Count(&open).Error; err != nil {
				return fmt.Errorf("failed to check open work orders: %w", err)
			}
			if open > 0 {
				return conflict("car %d has an open work order", carID)
			}
		}

		previous := car.OwnerID
		history := models.CarOwnershipHistory{
			ShopID:               shopID,
			CarID:                carID,
			PreviousOwnerID:      &previous,
			NewOwnerID:           in.NewOwnerID,
			TransferredByStaffID: in.ByStaffID,
			Notes:                in.Notes,
			TransferredAt:        time.Now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record ownership history: %w", err)
		}
		if err := tx.Model(&car).Update("owner_id", in.NewOwnerID).Error; err != nil {
			return fmt.Errorf("failed to update owner: %w", err)
		}

		log.WithFields(log.Fields{
			"shop_id":        shopID,
			"car_id":         carID,
			"previous_owner": previous,
			"new_owner":      in.NewOwnerID,
		}).Info("Car ownership transferred")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCar(ctx, shopID, carID)
}

// OwnershipHistory lists a car's owner changes, oldest first
func (s *RegistryService) OwnershipHistory(ctx context.Context, shopID, carID uint) ([]models.CarOwnershipHistory, error) {
	if _, err := s.GetCar(ctx, shopID, carID); err != nil {
		return nil, err
	}
	var history []models.CarOwnershipHistory
	if err := s.db.WithContext(ctx).
		Where("shop_id = ? AND car_id = ?", shopID, carID).
		Order("transferred_at, id").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load ownership history: %w", err)
	}
	return history, nil
}

// ServiceHistory lists a car's work orders with line items, newest first
func (s *RegistryService) ServiceHistory(ctx context.Context, shopID, carID uint) ([]models.WorkOrder, error) {
	if _, err := s.GetCar(ctx, shopID, carID); err != nil {
		return nil, err
	}
	var orders []models.WorkOrder
	if err := s.db.WithContext(ctx).
		Preload("LineItems").
		Preload("AssignedMechanic").
		Where("shop_id = ? AND car_id = ?", shopID, carID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load service history: %w", err)
	}
	return orders, nil
}
