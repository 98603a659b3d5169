package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.PutObject(ctx, "shops/1/invoices/INV-2026-00001.pdf", "application/pdf", []byte("%PDF-1.3")))

	body, err := os.ReadFile(filepath.Join(dir, "shops_1_invoices_INV-2026-00001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(body))

	url, err := store.GetPresignedURL(ctx, "shops/1/invoices/INV-2026-00001.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/uploads/shops_1_invoices_INV-2026-00001.pdf", url)

	require.NoError(t, store.DeleteFile(ctx, "shops/1/invoices/INV-2026-00001.pdf"))
	_, err = os.Stat(filepath.Join(dir, "shops_1_invoices_INV-2026-00001.pdf"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.DeleteFile(ctx, "shops/1/missing.pdf"))
	assert.NoError(t, store.DeleteFile(ctx, ""))
}

func TestFlatKey(t *testing.T) {
	assert.Equal(t, "cars_12_abc.png", flatKey("cars/12/abc.png"))
	assert.Equal(t, "cars_12_abc.png", flatKey("/cars/12/abc.png/"))
	assert.Equal(t, "plain.png", flatKey("plain.png"))
}
