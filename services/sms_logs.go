package services

import (
	"context"
	"fmt"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"gorm.io/gorm"
)

// SMSLogFilter narrows an SMS log listing
type SMSLogFilter struct {
	Phone  string
	Type   models.MessageType
	Status string
	Page   utils.Page
}

// ListSMSLogs returns the shop's message log, newest first
func ListSMSLogs(ctx context.Context, db *gorm.DB, shopID uint, f SMSLogFilter) ([]models.SMSLog, int64, error) {
	q := db.WithContext(ctx).Model(&models.SMSLog{}).Where("shop_id = ?", shopID)
	if f.Phone != "" {
		q = q.Where("recipient_phone LIKE ?", "%"+f.Phone+"%")
	}
	if f.Type != "" {
		q = q.Where("message_type = ?", f.Type)
	}
	if f.Status != "" {
		switch f.Status {
		case models.SMSStatusQueued, models.SMSStatusFailed, models.SMSStatusSkipped:
		default:
			return nil, 0, invalid("status", "unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sms logs: %w", err)
	}
	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var logs []models.SMSLog
	if err := q.Order("sent_at DESC, id DESC").Offset(page.Offset()).Limit(page.Size).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list sms logs: %w", err)
	}
	return logs, total, nil
}
