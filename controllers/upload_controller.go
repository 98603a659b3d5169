package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
)

// GetUploadedFile handles GET /api/v1/uploads/:filename. It serves car
// photos and archived invoices kept by the local object store.
func GetUploadedFile(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required")
		return
	}

	// Security: Prevent directory traversal attacks
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		errorJSON(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	contentType, ok := utils.ContentTypeForFile(filename)
	if !ok {
		errorJSON(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PNG, JPEG and PDF files are served")
		return
	}

	filePath := filepath.Join(utils.UploadDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		errorJSON(c, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(filePath)
}
