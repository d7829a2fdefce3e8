package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/enchanter-io/enchanter/store"
)

func TestOpenInMemoryDB(t *testing.T) {
	database, err := OpenInMemoryDB()
	require.NoError(t, err)
	defer database.Close()

	require.NotNil(t, database.Client())
	for _, model := range schemaModels {
		assert.True(t, database.Client().Migrator().HasTable(model))
	}
}

func TestOpenFileDBCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	database, err := OpenFileDB(dir, "engine.db")
	require.NoError(t, err)
	defer database.Close()

	_, err = os.Stat(filepath.Join(dir, "engine.db"))
	assert.NoError(t, err)
}

func TestFileDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	database, err := OpenFileDB(dir, "engine.db")
	require.NoError(t, err)
	record := &store.Wallet{Address: "0x1111111111111111111111111111111111111111", Name: "ops"}
	require.NoError(t, database.Client().Create(record).Error)
	require.NoError(t, database.Close())

	reopened, err := OpenFileDB(dir, "engine.db")
	require.NoError(t, err)
	defer reopened.Close()

	var loaded store.Wallet
	require.NoError(t, reopened.Client().Where("address = ?", record.Address).First(&loaded).Error)
	assert.Equal(t, "ops", loaded.Name)
}

func TestDuplicateKeyTranslation(t *testing.T) {
	database, err := OpenInMemoryDB()
	require.NoError(t, err)
	defer database.Close()

	first := &store.Wallet{Address: "0x2222222222222222222222222222222222222222", Name: "a"}
	require.NoError(t, database.Client().Create(first).Error)

	dup := &store.Wallet{Address: "0x2222222222222222222222222222222222222222", Name: "b"}
	err = database.Client().Create(dup).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

func TestClose(t *testing.T) {
	database, err := OpenInMemoryDB()
	require.NoError(t, err)
	require.NoError(t, database.Close())
}
