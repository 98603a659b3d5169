package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notification is a request to message a customer. LogBody, when set, is
// what the SMS log records instead of Body (used to keep passwords out of it).
type Notification struct {
	ShopID     uint
	CustomerID *uint
	Phone      string
	Type       models.MessageType
	Body       string
	LogBody    string
}

// Notifier accepts notification requests. It is called after the owning
// transaction commits and never reports failure back to the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

var notifierInstance Notifier

// GetNotifier returns the process notifier, or a no-op one if none is set
func GetNotifier() Notifier {
	if notifierInstance == nil {
		return noopNotifier{}
	}
	return notifierInstance
}

// SetNotifier sets the process notifier (primarily for testing)
func SetNotifier(n Notifier) {
	notifierInstance = n
}

// smsRequest is the payload handed to the SMS gateway
type smsRequest struct {
	ShopID      uint               `json:"shop_id"`
	CustomerID  *uint              `json:"customer_id,omitempty"`
	To          string             `json:"to"`
	MessageType models.MessageType `json:"message_type"`
	Body        string             `json:"body"`
	RequestedAt time.Time          `json:"requested_at"`
}

// NotificationService hands notification requests to a Publisher and keeps
// the per-shop SMS log and usage counter.
type NotificationService struct {
	db          *gorm.DB
	publisher   Publisher
	topicPrefix string
}

// NewNotificationService creates a notifier backed by the given publisher
func NewNotificationService(db *gorm.DB, publisher Publisher, topicPrefix string) *NotificationService {
	if topicPrefix == "" {
		topicPrefix = "autoshop"
	}
	return &NotificationService{db: db, publisher: publisher, topicPrefix: topicPrefix}
}

// Topic returns the publish topic for a shop and message type
func (s *NotificationService) Topic(shopID uint, messageType models.MessageType) string {
	return fmt.Sprintf("%s/shops/%d/sms/%s", s.topicPrefix, shopID, messageType)
}

// Notify publishes the request and records it. Errors are logged only.
func (s *NotificationService) Notify(ctx context.Context, n Notification) {
	logger := log.WithFields(log.Fields{
		"shop_id":      n.ShopID,
		"message_type": n.Type,
	})

	var shop models.Shop
	if err := s.db.WithContext(ctx).First(&shop, n.ShopID).Error; err != nil {
		logger.WithError(err).Error("Notification dropped: shop lookup failed")
		return
	}

	entry := models.SMSLog{
		ShopID:         n.ShopID,
		CustomerID:     n.CustomerID,
		RecipientPhone: n.Phone,
		MessageType:    n.Type,
		MessageBody:    n.Body,
		SentAt:         time.Now().UTC(),
	}
	if n.LogBody != "" {
		entry.MessageBody = n.LogBody
	}

	switch {
	case !shop.SMSEnabled:
		entry.Status = models.SMSStatusSkipped
		entry.ErrorMessage = "SMS disabled for shop"
	case n.Phone == "":
		entry.Status = models.SMSStatusFailed
		entry.ErrorMessage = "recipient has no phone number"
	default:
		payload, err := json.Marshal(smsRequest{
			ShopID:      n.ShopID,
			CustomerID:  n.CustomerID,
			To:          n.Phone,
			MessageType: n.Type,
			Body:        n.Body,
			RequestedAt: entry.SentAt,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, s.Topic(n.ShopID, n.Type), payload)
		}
		if err != nil {
			logger.WithError(err).Warn("Notification publish failed")
			entry.Status = models.SMSStatusFailed
			entry.ErrorMessage = err.Error()
		} else {
			entry.Status = models.SMSStatusQueued
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if entry.Status != models.SMSStatusQueued {
			return nil
		}
		return tx.Model(&models.Shop{}).Where("id = ?", shop.ID).
			UpdateColumn("sms_usage_count", gorm.Expr("sms_usage_count + ?", 1)).Error
	})
	if err != nil {
		logger.WithError(err).Error("Failed to record SMS log")
		return
	}

	logger.WithField("status", entry.Status).Debug("Notification recorded")
}
