package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/var/lib/loom", ExpandPath("/var/lib/loom"))

	t.Setenv("LOOM_TEST_DIR", "/tmp/loomtest")
	assert.Equal(t, "/tmp/loomtest/loom.db", ExpandPath("$LOOM_TEST_DIR/loom.db"))
}

func TestDatabasePath(t *testing.T) {
	assert.Equal(t, "/explicit/loom.db", DatabasePath("/explicit/loom.db"))

	fallback := DatabasePath("")
	assert.True(t, strings.HasSuffix(fallback, filepath.Join("loom", "loom.db")))
	assert.False(t, strings.Contains(fallback, "$"))
}
