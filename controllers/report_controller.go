package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// dateRangeFromQuery reads start_date and end_date. The end date is
// inclusive, so it is pushed to the end of that day.
func dateRangeFromQuery(c *gin.Context) (services.DateRange, bool) {
	var r services.DateRange
	if v := c.Query("start_date"); v != "" {
		t, ok := parseDate(c, "start_date", v)
		if !ok {
			return r, false
		}
		r.From = t
	}
	if v := c.Query("end_date"); v != "" {
		t, ok := parseDate(c, "end_date", v)
		if !ok {
			return r, false
		}
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return r, true
}

// GetDashboard handles GET /api/v1/reports/dashboard
func GetDashboard(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	stats, err := reportService().Dashboard(c.Request.Context(), shopID, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// GetRevenueReport handles GET /api/v1/reports/revenue?period=daily|weekly|monthly
func GetRevenueReport(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	r, ok := dateRangeFromQuery(c)
	if !ok {
		return
	}
	points, err := reportService().RevenueBreakdown(c.Request.Context(), shopID, c.DefaultQuery("period", "daily"), r, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, points)
}

// GetPopularServices handles GET /api/v1/reports/popular-services
func GetPopularServices(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	r, ok := dateRangeFromQuery(c)
	if !ok {
		return
	}
	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 100", gin.H{"field": "limit"})
			return
		}
		limit = n
	}
	popular, err := reportService().PopularServices(c.Request.Context(), shopID, r, limit, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, popular)
}

// GetMechanicPerformance handles GET /api/v1/reports/mechanic-performance
func GetMechanicPerformance(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	r, ok := dateRangeFromQuery(c)
	if !ok {
		return
	}
	rows, err := reportService().MechanicPerformance(c.Request.Context(), shopID, r, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rows)
}
