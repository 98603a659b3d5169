package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reminderDateLayout = "2006-01-02"

// PredictorOptions tunes the mileage predictor
type PredictorOptions struct {
	LookaheadDays int
	MinVisits     int
}

// MileagePredictor estimates when each car reaches its next service mileage
// and requests a reminder when that is close.
type MileagePredictor struct {
	db       *gorm.DB
	notifier Notifier
	opts     PredictorOptions
}

// NewMileagePredictor creates a predictor. Zero options fall back to a
// 14 day lookahead and a two visit minimum.
func NewMileagePredictor(db *gorm.DB, notifier Notifier, opts PredictorOptions) *MileagePredictor {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = 14
	}
	if opts.MinVisits < 2 {
		opts.MinVisits = 2
	}
	return &MileagePredictor{db: db, notifier: notifier, opts: opts}
}

// Prediction is one car flagged as due for service
type Prediction struct {
	CarID         uint      `json:"car_id"`
	CustomerID    uint      `json:"customer_id"`
	PredictedDate time.Time `json:"predicted_date"`
	PredictedDays int       `json:"predicted_days"`
	AvgKmPerDay   float64   `json:"avg_km_per_day"`
	DueMileage    int       `json:"due_mileage"`
	// Notified is false when the car was already reminded on this date
	Notified bool `json:"notified"`
}

// visit is the part of a work order the estimate needs
type visit struct {
	CarID           uint
	MileageAtIntake int
	CreatedAt       time.Time
}

// averageKmPerDay is the distance covered between the first and last visit
// divided by the whole days between them. ok is false when the visits fall
// on the same day or the odometer did not move forward.
func averageKmPerDay(visits []visit) (avg float64, ok bool) {
	first, last := visits[0], visits[len(visits)-1]
	days := int(last.CreatedAt.Sub(first.CreatedAt).Hours() / 24)
	if days <= 0 {
		return 0, false
	}
	avg = float64(last.MileageAtIntake-first.MileageAtIntake) / float64(days)
	if avg <= 0 {
		return 0, false
	}
	return avg, true
}

// nextServiceMileage is the next multiple of the interval above current.
func nextServiceMileage(current, interval int) int {
	return (current/interval + 1) * interval
}

// EvaluateShop checks every active car of the shop as of the given day.
// A car is flagged when its due mileage is expected within the lookahead
// window. At most one reminder per car per calendar day is recorded and
// sent; repeated runs on the same day report the car with Notified false.
func (p *MileagePredictor) EvaluateShop(ctx context.Context, shopID uint, asOf time.Time) ([]Prediction, error) {
	db := p.db.WithContext(ctx)
	shop, err := loadShop(db, shopID)
	if err != nil {
		return nil, err
	}

	var cars []models.Car
	if err := db.Preload("Owner").
		Where("shop_id = ? AND is_active = ? AND service_interval_km > 0", shopID, true).
		Order("id").Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("failed to load cars: %w", err)
	}
	if len(cars) == 0 {
		return []Prediction{}, nil
	}

	// every work order records its intake reading, so 0 km is a real visit
	var rows []visit
	if err := db.Model(&models.WorkOrder{}).
		Select("car_id, mileage_at_intake, created_at").
		Where("shop_id = ? AND status = ?", shopID, models.WorkOrderDone).
		Order("car_id, created_at").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load visit history: %w", err)
	}
	history := make(map[uint][]visit)
	for _, v := range rows {
		history[v.CarID] = append(history[v.CarID], v)
	}

	day := asOf.Format(reminderDateLayout)
	logger := log.WithFields(log.Fields{"shop_id": shopID, "as_of": day})
	predictions := []Prediction{}

	for _, car := range cars {
		if car.Owner == nil || !car.Owner.IsActive {
			continue
		}
		visits := history[car.ID]
		if len(visits) < p.opts.MinVisits {
			continue
		}
		avg, ok := averageKmPerDay(visits)
		if !ok {
			continue
		}

		due := nextServiceMileage(car.CurrentMileage, car.ServiceIntervalKm)
		days := float64(due-car.CurrentMileage) / avg
		if days > float64(p.opts.LookaheadDays) {
			continue
		}

		prediction := Prediction{
			CarID:         car.ID,
			CustomerID:    car.OwnerID,
			PredictedDays: int(days),
			PredictedDate: asOf.AddDate(0, 0, int(days)),
			AvgKmPerDay:   avg,
			DueMileage:    due,
		}

		reminder := models.ServiceReminder{
			ShopID:            shopID,
			CarID:             car.ID,
			CustomerID:        car.OwnerID,
			ReminderDate:      day,
			PredictedDate:     prediction.PredictedDate,
			ServiceDueMileage: due,
			AvgKmPerDay:       avg,
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reminder)
		if res.Error != nil {
			return predictions, fmt.Errorf("failed to record reminder for car %d: %w", car.ID, res.Error)
		}
		prediction.Notified = res.RowsAffected == 1
		predictions = append(predictions, prediction)

		if !prediction.Notified {
			continue
		}
		owner := *car.Owner
		p.notifier.Notify(ctx, Notification{
			ShopID:     shopID,
			CustomerID: uintPtr(owner.ID),
			Phone:      owner.Phone,
			Type:       models.MessageServiceReminder,
			Body:       serviceReminderMessage(*shop, owner, car, due, prediction.PredictedDate),
		})
		logger.WithFields(log.Fields{
			"car_id":         car.ID,
			"due_mileage":    due,
			"predicted_days": prediction.PredictedDays,
		}).Info("Service reminder requested")
	}

	logger.WithField("flagged", len(predictions)).Info("Mileage evaluation finished")
	return predictions, nil
}

// EvaluateAllShops runs EvaluateShop for every active shop with SMS enabled.
// A failing shop is logged and does not stop the others.
func (p *MileagePredictor) EvaluateAllShops(ctx context.Context, asOf time.Time) (map[uint][]Prediction, error) {
	var shops []models.Shop
	if err := p.db.WithContext(ctx).
		Where("is_active = ? AND sms_enabled = ?", true, true).
		Order("id").Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("failed to load shops: %w", err)
	}

	results := make(map[uint][]Prediction, len(shops))
	for _, shop := range shops {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		predictions, err := p.EvaluateShop(ctx, shop.ID, asOf)
		if err != nil {
			log.WithError(err).WithField("shop_id", shop.ID).Error("Mileage evaluation failed")
			continue
		}
		results[shop.ID] = predictions
	}
	return results, nil
}

// ReminderFilter narrows a reminder listing
type ReminderFilter struct {
	CarID *uint
	From  string
	To    string
	Page  utils.Page
}

// ListReminders returns recorded reminders, newest day first
func (p *MileagePredictor) ListReminders(ctx context.Context, shopID uint, f ReminderFilter) ([]models.ServiceReminder, int64, error) {
	q := p.db.WithContext(ctx).Model(&models.ServiceReminder{}).Where("shop_id = ?", shopID)
	if f.CarID != nil {
		q = q.Where("car_id = ?", *f.CarID)
	}
	for _, bound := range []struct {
		value, op, field string
	}{{f.From, ">=", "from"}, {f.To, "<=", "to"}} {
		if bound.value == "" {
			continue
		}
		if _, err := time.Parse(reminderDateLayout, bound.value); err != nil {
			return nil, 0, invalid(bound.field, "must be a date in YYYY-MM-DD format")
		}
		q = q.Where("reminder_date "+bound.op+" ?", bound.value)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var reminders []models.ServiceReminder
	if err := q.Order("reminder_date DESC, id DESC").Offset(page.Offset()).Limit(page.Size).Find(&reminders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, total, nil
}
