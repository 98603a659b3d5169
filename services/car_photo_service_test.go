package services

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photoUpload(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	require.Len(t, form.File["photo"], 1)
	return form.File["photo"][0]
}

func TestCarPhotos(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	owner := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	car := testutil.CreateCar(t, db, shop.ID, owner.ID, "CA1234AB", 1000)
	mechanic := testutil.CreateStaff(t, db, shop.ID, models.RoleMechanic, "auth0|mech")
	store := NewMockS3Service()
	service := NewCarPhotoService(db, InitImageService(store))
	ctx := context.Background()

	photo, err := service.Upload(ctx, shop.ID, car.ID, photoUpload(t, "front.jpg", []byte("jpeg bytes")), &mechanic.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(photo.StorageKey, fmt.Sprintf("shops/%d/cars/%d/", shop.ID, car.ID)))
	assert.True(t, strings.HasSuffix(photo.StorageKey, ".jpg"))
	assert.Equal(t, "front.jpg", photo.OriginalFilename)
	assert.Contains(t, photo.URL, photo.StorageKey)
	stored, ok := store.Object(photo.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "jpeg bytes", string(stored))

	photos, err := service.List(ctx, shop.ID, car.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.NotEmpty(t, photos[0].URL)

	_, err = service.Upload(ctx, shop.ID, car.ID, photoUpload(t, "notes.txt", []byte("text")), nil)
	var uploadErr *utils.FileUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "INVALID_FILE_FORMAT", uploadErr.Code)
	assert.Equal(t, 1, store.Len())

	other := testutil.CreateShop(t, db, "Plovdiv Auto")
	_, err = service.List(ctx, other.ID, car.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(service.Delete(ctx, other.ID, car.ID, photo.ID)))

	require.NoError(t, service.Delete(ctx, shop.ID, car.ID, photo.ID))
	assert.Zero(t, store.Len())
	assert.True(t, IsNotFound(service.Delete(ctx, shop.ID, car.ID, photo.ID)))
}
