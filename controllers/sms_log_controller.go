package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// ListSMSLogs handles GET /api/v1/sms-logs (manager)
// Optional query parameters: phone, type, status
func ListSMSLogs(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	filter := services.SMSLogFilter{
		Phone:  c.Query("phone"),
		Type:   models.MessageType(c.Query("type")),
		Status: c.Query("status"),
		Page:   pageFromQuery(c),
	}

	logs, total, err := services.ListSMSLogs(c.Request.Context(), config.GetDB(), shopID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, logs, total, filter.Page)
}
