package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// EvaluateRemindersRequest optionally evaluates as of another day
type EvaluateRemindersRequest struct {
	AsOf string `json:"as_of"`
}

// EvaluateReminders handles POST /api/v1/reminders/evaluate (manager)
func EvaluateReminders(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req EvaluateRemindersRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	asOf := time.Now()
	if req.AsOf != "" {
		if asOf, ok = parseDate(c, "as_of", req.AsOf); !ok {
			return
		}
	}

	predictions, err := mileagePredictor().EvaluateShop(c.Request.Context(), shopID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	notified := 0
	for _, p := range predictions {
		if p.Notified {
			notified++
		}
	}
	respondOK(c, http.StatusOK, gin.H{
		"predictions": predictions,
		"notified":    notified,
	})
}

// ListReminders handles GET /api/v1/reminders
// Optional query parameters: car_id, from, to (YYYY-MM-DD)
func ListReminders(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	filter := services.ReminderFilter{
		From: c.Query("from"),
		To:   c.Query("to"),
		Page: pageFromQuery(c),
	}
	if filter.CarID, ok = queryUint(c, "car_id"); !ok {
		return
	}

	reminders, total, err := mileagePredictor().ListReminders(c.Request.Context(), shopID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, reminders, total, filter.Page)
}
