package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader builds a multipart.FileHeader the way gin would hand it over
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["file"]) > 0 {
		fileHeader := form.File["file"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}
	return nil
}

func TestValidateImageFile(t *testing.T) {
	content := []byte("fake image content")

	tests := []struct {
		name     string
		filename string
		size     int64
		wantCode string
	}{
		{name: "png accepted", filename: "front.png", size: int64(len(content))},
		{name: "jpg accepted", filename: "front.jpg", size: int64(len(content))},
		{name: "upper case jpeg accepted", filename: "FRONT.JPEG", size: int64(len(content))},
		{name: "gif rejected", filename: "front.gif", size: int64(len(content)), wantCode: "INVALID_FILE_FORMAT"},
		{name: "no extension rejected", filename: "front", size: int64(len(content)), wantCode: "INVALID_FILE_FORMAT"},
		{name: "pdf is not a photo", filename: "invoice.pdf", size: int64(len(content)), wantCode: "INVALID_FILE_FORMAT"},
		{name: "too large", filename: "big.png", size: 11 * 1024 * 1024, wantCode: "FILE_TOO_LARGE"},
		{name: "exactly at limit", filename: "limit.png", size: MaxFileSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := createTestFileHeader(tt.filename, tt.size, content)
			require.NotNil(t, fh)

			err := ValidateImageFile(fh)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var fileErr *FileUploadError
			require.ErrorAs(t, err, &fileErr)
			assert.Equal(t, tt.wantCode, fileErr.Code)
		})
	}
}

func TestSaveUploadedFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("photo bytes")
	fh := createTestFileHeader("door.png", int64(len(content)), content)
	require.NotNil(t, fh)

	err := SaveUploadedFile(fh, filepath.Join(dir, "nested"), "cars_1_door.png")
	require.NoError(t, err)

	saved, err := os.ReadFile(filepath.Join(dir, "nested", "cars_1_door.png"))
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestSaveUploadedFileRejectsTraversal(t *testing.T) {
	content := []byte("x")
	fh := createTestFileHeader("door.png", 1, content)
	require.NotNil(t, fh)

	assert.Error(t, SaveUploadedFile(fh, t.TempDir(), "../escape.png"))
	assert.Error(t, SaveUploadedFile(fh, t.TempDir(), "a/b.png"))
}

func TestGetFileURL(t *testing.T) {
	assert.Equal(t, "", GetFileURL(""))
	assert.Equal(t, "/api/v1/uploads/cars_1_a.png", GetFileURL("cars_1_a.png"))
}

func TestContentTypeForFile(t *testing.T) {
	ct, ok := ContentTypeForFile("a.PNG")
	assert.True(t, ok)
	assert.Equal(t, "image/png", ct)

	ct, ok = ContentTypeForFile("invoice.pdf")
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", ct)

	_, ok = ContentTypeForFile("script.sh")
	assert.False(t, ok)
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize}, ParsePage("", ""))
	assert.Equal(t, Page{Number: 3, Size: 10}, ParsePage("3", "10"))
	assert.Equal(t, Page{Number: 1, Size: MaxPageSize}, ParsePage("-1", "1000"))
	assert.Equal(t, 20, ParsePage("3", "10").Offset())
}
