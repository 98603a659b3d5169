package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func errorJSON(c *gin.Context, status int, code, message string, details ...interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 && details[0] != nil {
		body["details"] = details[0]
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondPage(c *gin.Context, data interface{}, total int64, page utils.Page) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": gin.H{
			"page":  page.Number,
			"limit": page.Size,
			"total": total,
		},
	})
}

// respondError maps service errors onto the error envelope
func respondError(c *gin.Context, err error) {
	var validation *services.ValidationError
	var conflict *services.ConflictError
	var missing *services.NotFoundError
	var upload *utils.FileUploadError

	switch {
	case errors.As(err, &validation):
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", validation.Message, gin.H{"field": validation.Field})
	case errors.As(err, &conflict):
		errorJSON(c, http.StatusConflict, "CONFLICT", conflict.Message)
	case errors.As(err, &missing):
		code := strings.ToUpper(strings.ReplaceAll(missing.Resource, " ", "_")) + "_NOT_FOUND"
		errorJSON(c, http.StatusNotFound, code, missing.Error())
	case errors.As(err, &upload):
		errorJSON(c, http.StatusBadRequest, upload.Code, upload.Message)
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		_ = c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "DATABASE_ERROR", "An internal error occurred")
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", gin.H{"reason": err.Error()})
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name, gin.H{"field": name})
		return nil, false
	}
	id := uint(v)
	return &id, true
}

func pageFromQuery(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("limit"))
}

// tenant returns the resolved shop or writes a 401
func tenant(c *gin.Context) (uint, bool) {
	shopID, err := middleware.GetShopID(c)
	if err != nil {
		errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not resolve your shop")
		return 0, false
	}
	return shopID, true
}

func forbidden(c *gin.Context, message string) {
	errorJSON(c, http.StatusForbidden, "FORBIDDEN", message)
}

func isCustomer(c *gin.Context) bool {
	return middleware.GetRole(c) == models.RoleCustomer
}

func appConfig() *config.Config {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		DefaultPhoneRegion:     "BG",
		DefaultTaxRate:         decimal.RequireFromString("0.20"),
		JWTIssuer:              "autoshop-crm",
		JWTAudience:            "autoshop-crm-api",
		ReminderLookaheadDays:  14,
		MinVisitsForPrediction: 2,
	}
}

// Service constructors. Handlers build services per request from the
// process-wide collaborators, the same way they read config.GetDB().

func registryService() *services.RegistryService {
	return services.NewRegistryService(config.GetDB(), services.GetNotifier(), appConfig().DefaultPhoneRegion)
}

func workOrderService() *services.WorkOrderService {
	return services.NewWorkOrderService(config.GetDB(), services.GetNotifier(), services.GetBroadcaster())
}

func appointmentService() *services.AppointmentService {
	return services.NewAppointmentService(config.GetDB(), services.GetNotifier(), services.GetBroadcaster())
}

func invoiceService() *services.InvoiceService {
	return services.NewInvoiceService(config.GetDB(), services.GetObjectStore(), services.GetInvoiceRenderer(), services.GetBroadcaster())
}

func shopService() *services.ShopService {
	cfg := appConfig()
	return services.NewShopService(config.GetDB(), cfg.DefaultTaxRate, cfg.DefaultPhoneRegion)
}

func mileagePredictor() *services.MileagePredictor {
	cfg := appConfig()
	return services.NewMileagePredictor(config.GetDB(), services.GetNotifier(), services.PredictorOptions{
		LookaheadDays: cfg.ReminderLookaheadDays,
		MinVisits:     cfg.MinVisitsForPrediction,
	})
}

func reportService() *services.ReportService {
	return services.NewReportService(config.GetDB())
}

func carPhotoService() *services.CarPhotoService {
	return services.NewCarPhotoService(config.GetDB(), services.GetImageService())
}
