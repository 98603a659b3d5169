package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDB(t *testing.T) {
	original := DB
	defer func() { DB = original }()

	DB = nil
	assert.Nil(t, GetDB(), "GetDB should return nil when DB is not initialized")
}

func TestConnectDatabaseSQLite(t *testing.T) {
	original := DB
	defer func() { DB = original }()

	err := ConnectDatabase("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NotNil(t, GetDB())
	assert.Equal(t, "sqlite", GetDB().Dialector.Name())

	sqlDB, err := GetDB().DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnectDatabaseUnsupportedScheme(t *testing.T) {
	original := DB
	defer func() { DB = original }()

	err := ConnectDatabase("mysql://root@localhost/autoshop")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DATABASE_URL scheme")
}

func TestSetDB(t *testing.T) {
	original := DB
	defer func() { DB = original }()

	SetDB(nil)
	assert.Nil(t, GetDB())
}
