package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Field: "vin", Message: "vin: bad"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("outer: %w", &services.ValidationError{Field: "year"}), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Resource: "work order", ID: 3}, http.StatusNotFound, "WORK_ORDER_NOT_FOUND"},
		{"upload", &utils.FileUploadError{Code: "FILE_TOO_LARGE", Message: "too big"}, http.StatusBadRequest, "FILE_TOO_LARGE"},
		{"anything else", errors.New("connection reset"), http.StatusInternalServerError, "DATABASE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
			assert.Contains(t, w.Body.String(), `"success":false`)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestParamAndQueryHelpers(t *testing.T) {
	router := gin.New()
	router.GET("/things/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		carID, ok := queryUint(c, "car_id")
		if !ok {
			return
		}
		page := pageFromQuery(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "car_id": carID, "page": page.Number, "limit": page.Size})
	})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/things/7", http.StatusOK, `"car_id":null`},
		{"/things/7?car_id=3&page=2&limit=500", http.StatusOK, `"limit":100`},
		{"/things/0", http.StatusBadRequest, "INVALID_ID"},
		{"/things/abc", http.StatusBadRequest, "INVALID_ID"},
		{"/things/7?car_id=x", http.StatusBadRequest, `"field":"car_id"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}
