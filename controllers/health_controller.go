package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
)

// HealthCheck handles GET /api/v1/health
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Autoshop CRM API is running",
	})
}

// DatabaseStatus handles GET /api/v1/database/status. It pings the database
// and lists the tables the migrations created.
func DatabaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		errorJSON(c, http.StatusInternalServerError, "DATABASE_ERROR", "Database is not configured")
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to get database instance")
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		errorJSON(c, http.StatusInternalServerError, "DATABASE_CONNECTION_ERROR", "Database connection failed")
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "DATABASE_QUERY_ERROR", "Failed to query tables")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"driver":  db.Dialector.Name(),
		"tables":  tables,
	})
}
