package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// RegisterCarRequest represents the request body for registering a car
type RegisterCarRequest struct {
	OwnerID           uint   `json:"owner_id" binding:"required"`
	Make              string `json:"make" binding:"required"`
	Model             string `json:"model" binding:"required"`
	Year              int    `json:"year"`
	VIN               string `json:"vin"`
	LicensePlate      string `json:"license_plate" binding:"required"`
	Color             string `json:"color"`
	CurrentMileage    int    `json:"current_mileage" binding:"gte=0"`
	ServiceIntervalKm *int   `json:"service_interval_km"`
	Notes             string `json:"notes"`
}

// UpdateCarRequest represents a partial car update
type UpdateCarRequest struct {
	Make              *string `json:"make"`
	Model             *string `json:"model"`
	Year              *int    `json:"year"`
	VIN               *string `json:"vin"`
	LicensePlate      *string `json:"license_plate"`
	Color             *string `json:"color"`
	ServiceIntervalKm *int    `json:"service_interval_km"`
	Notes             *string `json:"notes"`
}

// MileageRequest represents an odometer reading
type MileageRequest struct {
	Mileage int `json:"mileage" binding:"required,gt=0"`
}

// TransferRequest represents an ownership change
type TransferRequest struct {
	NewOwnerID uint   `json:"new_owner_id" binding:"required"`
	Notes      string `json:"notes"`
}

// loadVisibleCar fetches a car and hides other people's cars from customers
func loadVisibleCar(c *gin.Context, shopID, id uint) (*models.Car, bool) {
	car, err := registryService().GetCar(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if customerID := middleware.GetCustomerID(c); customerID != nil && car.OwnerID != *customerID {
		respondError(c, &services.NotFoundError{Resource: "car", ID: id})
		return nil, false
	}
	return car, true
}

// RegisterCar handles POST /api/v1/cars (front desk)
func RegisterCar(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req RegisterCarRequest
	if !bindJSON(c, &req) {
		return
	}

	car, err := registryService().RegisterCar(c.Request.Context(), shopID, services.RegisterCarInput{
		OwnerID:           req.OwnerID,
		Make:              req.Make,
		Model:             req.Model,
		Year:              req.Year,
		VIN:               req.VIN,
		LicensePlate:      req.LicensePlate,
		Color:             req.Color,
		CurrentMileage:    req.CurrentMileage,
		ServiceIntervalKm: req.ServiceIntervalKm,
		Notes:             req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, car)
}

// ListCars handles GET /api/v1/cars. Customers only see their own cars.
func ListCars(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	ownerID, ok := queryUint(c, "owner_id")
	if !ok {
		return
	}
	if customerID := middleware.GetCustomerID(c); customerID != nil {
		ownerID = customerID
	}

	page := pageFromQuery(c)
	cars, total, err := registryService().ListCars(c.Request.Context(), shopID, services.CarFilter{
		OwnerID: ownerID,
		Search:  c.Query("search"),
		Page:    page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, cars, total, page)
}

// GetCar handles GET /api/v1/cars/:id
func GetCar(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	car, ok := loadVisibleCar(c, shopID, id)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, car)
}

// UpdateCar handles PATCH /api/v1/cars/:id (front desk)
func UpdateCar(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateCarRequest
	if !bindJSON(c, &req) {
		return
	}

	car, err := registryService().UpdateCar(c.Request.Context(), shopID, id, services.UpdateCarInput{
		Make:              req.Make,
		Model:             req.Model,
		Year:              req.Year,
		VIN:               req.VIN,
		LicensePlate:      req.LicensePlate,
		Color:             req.Color,
		ServiceIntervalKm: req.ServiceIntervalKm,
		Notes:             req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, car)
}

// DeleteCar handles DELETE /api/v1/cars/:id (manager)
func DeleteCar(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := registryService().DeleteCar(c.Request.Context(), shopID, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// UpdateCarMileage handles PUT /api/v1/cars/:id/mileage (staff)
func UpdateCarMileage(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req MileageRequest
	if !bindJSON(c, &req) {
		return
	}
	car, err := registryService().UpdateMileage(c.Request.Context(), shopID, id, req.Mileage)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, car)
}

// TransferCar handles POST /api/v1/cars/:id/transfer (front desk)
func TransferCar(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	car, err := registryService().TransferOwnership(c.Request.Context(), shopID, id, services.TransferInput{
		NewOwnerID: req.NewOwnerID,
		Notes:      req.Notes,
		ByStaffID:  middleware.GetStaffID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, car)
}

// GetCarOwnershipHistory handles GET /api/v1/cars/:id/history (front desk)
func GetCarOwnershipHistory(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := registryService().OwnershipHistory(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}

// GetCarServiceHistory handles GET /api/v1/cars/:id/service-history
func GetCarServiceHistory(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := loadVisibleCar(c, shopID, id); !ok {
		return
	}
	orders, err := registryService().ServiceHistory(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, orders)
}

// UploadCarPhoto handles POST /api/v1/cars/:id/photos (staff, multipart "photo")
func UploadCarPhoto(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "A photo file is required", gin.H{"field": "photo", "reason": err.Error()})
		return
	}

	photo, err := carPhotoService().Upload(c.Request.Context(), shopID, id, fileHeader, middleware.GetStaffID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, photo)
}

// ListCarPhotos handles GET /api/v1/cars/:id/photos
func ListCarPhotos(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := loadVisibleCar(c, shopID, id); !ok {
		return
	}
	photos, err := carPhotoService().List(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, photos)
}

// DeleteCarPhoto handles DELETE /api/v1/cars/:id/photos/:photoId (front desk)
func DeleteCarPhoto(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	photoID, ok := paramID(c, "photoId")
	if !ok {
		return
	}
	if err := carPhotoService().Delete(c.Request.Context(), shopID, id, photoID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": photoID, "deleted": true})
}
