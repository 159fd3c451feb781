package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_kpi.sql":     {Data: []byte("SELECT 2")},
		"0001_init.sql":    {Data: []byte("SELECT 1")},
		"README.md":        {Data: []byte("notes")},
		"archive/0000.sql": {Data: []byte("SELECT 0")},
		"0010_reports.sql": {Data: []byte("SELECT 10")},
	}

	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_kpi.sql", "0010_reports.sql"}, files)
}
