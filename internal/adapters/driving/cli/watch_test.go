package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCmd_Once(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("# Beta"), 0o644))

	out, err := execute(t, nil, "-t", "acme", "watch", "--once", dir)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.md"}, ts.docs.ingested)
	assert.Contains(t, out, "2 ingested")
	assert.NotContains(t, out, "Watching")
}

func TestWatchCmd_MissingDir(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, nil, "watch", "--once", filepath.Join(t.TempDir(), "nope"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMCPServeCmd_Flags(t *testing.T) {
	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)
	assert.NotNil(t, mcpServeCmd.Flags().Lookup("metrics-addr"))
}

func TestMCPServeCmd_RequiresSearchService(t *testing.T) {
	SetServices(Services{})

	_, err := execute(t, nil, "mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service is required")
}
