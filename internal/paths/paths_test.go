package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	l := NewLayout(filepath.Join("project", "data"))

	assert.Equal(t, filepath.Join("project", "data"), l.Data)
	assert.Equal(t, filepath.Join("project", "data", "raw"), l.Raw)
	assert.Equal(t, filepath.Join("project", "data", "processed"), l.Processed)
	assert.Equal(t, filepath.Join("project", "data", "raw", "natural_earth"), l.NaturalEarth)
	assert.Equal(t, filepath.Join("project", "logs"), l.Logs)
}

func TestEnsure_CreatesAllDirectories(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(filepath.Join(root, "data"))

	require.NoError(t, l.Ensure())

	assert.DirExists(t, l.Data)
	assert.DirExists(t, l.Raw)
	assert.DirExists(t, l.Processed)
	assert.DirExists(t, l.NaturalEarth)
	assert.DirExists(t, l.Logs)
}

func TestEnsure_Idempotent(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, l.Ensure())
	require.NoError(t, l.Ensure())
}
