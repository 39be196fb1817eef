package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	assert.True(t, reg.Contains("BT-1"))
	assert.True(t, reg.Contains("BT-152"))
	assert.False(t, reg.Contains("BT-999"))

	assert.Equal(t, GroupHeader, reg.Bucket("BT-1"))
	assert.Equal(t, GroupTotals, reg.Bucket("BT-112"))
	assert.Equal(t, GroupLine, reg.Bucket("BT-131"))
}

func TestBucketFoldsAllowancesAndCharges(t *testing.T) {
	reg := Default()
	assert.Equal(t, GroupAllowances, reg["BT-92"].Group)
	assert.Equal(t, GroupTotals, reg.Bucket("BT-92"))
	assert.Equal(t, GroupCharges, reg["BT-99"].Group)
	assert.Equal(t, GroupTotals, reg.Bucket("BT-99"))
}

func TestBucketUnknownCodeDefaultsToHeader(t *testing.T) {
	assert.Equal(t, GroupHeader, Default().Bucket("BT-999"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	content := `{
		"BT-1": {"group": "header", "name": "Invoice number"},
		"BT-131": {"group": "line", "name": "Invoice line net amount"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, reg, 2)
	assert.Equal(t, "Invoice number", reg["BT-1"].Name)
	assert.Equal(t, GroupLine, reg.Bucket("BT-131"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
