package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meter-capture-agent/config"
	"meter-capture-agent/internal/model"
)

func TestInit_SQLiteCreatesDirectoryAndTable(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "capture.db")

	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	assert.True(t, gormDB.Migrator().HasTable(&model.KVEntry{}))
	assert.FileExists(t, dsn)
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestInit_SQLiteFileURICreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "lib", "capture.db")

	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:" + path + "?_busy_timeout=5000"})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	assert.DirExists(t, filepath.Dir(path))
	assert.FileExists(t, path)
}

func TestSQLiteDir(t *testing.T) {
	testCases := []struct {
		dsn      string
		expected string
	}{
		{dsn: "data/capture.db", expected: "data"},
		{dsn: "capture.db", expected: ""},
		{dsn: "file:/var/lib/captured/x.db", expected: "/var/lib/captured"},
		{dsn: "file:/var/lib/captured/x.db?cache=shared", expected: "/var/lib/captured"},
		{dsn: ":memory:", expected: ""},
		{dsn: "file::memory:?cache=shared", expected: ""},
		{dsn: "file:test.db?mode=memory", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			assert.Equal(t, tc.expected, sqliteDir(tc.dsn))
		})
	}
}
