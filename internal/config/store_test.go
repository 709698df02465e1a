package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreLoadFileAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configs.json")
	body := `[
		{"id": "cfg-1", "tenantId": "t1", "datasetId": "orders", "selectedFields": ["order_id", "want_invoice"],
		 "booleanLabels": {"true": "Y", "false": "N"}, "destination": "exports/orders.csv", "writeMode": "overwrite"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	store := NewConfigStore()
	require.NoError(t, store.LoadFile(path))

	cfg, ok := store.GetConfig("cfg-1")
	require.True(t, ok)
	assert.Equal(t, "orders", cfg.DatasetID)
	assert.Equal(t, "Y", cfg.BooleanLabels[true])
	assert.Equal(t, "N", cfg.BooleanLabels[false])

	_, ok = store.GetConfig("missing")
	assert.False(t, ok)

	assert.Len(t, store.ListConfigs(), 1)
}

func TestConfigStoreLoadFileTolerantOfMissingPath(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.LoadFile(filepath.Join(t.TempDir(), "does-not-exist.json")))
	assert.Empty(t, store.ListConfigs())
}

func TestConfigStoreEmptyPathIsNoOp(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.LoadFile(""))
	assert.Empty(t, store.ListConfigs())
}
