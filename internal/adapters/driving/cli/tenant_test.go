package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestTenantListCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, nil, "tenant", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tenants found.")

	ts.tenants.tenants = []string{"acme", "globex"}
	out, err = execute(t, nil, "tenant", "list")
	require.NoError(t, err)
	assert.Equal(t, "acme\nglobex\n", out)
}

func TestTenantStatsCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.tenants.stats = &domain.TenantStats{Tenant: "acme", Documents: 3, Chunks: 12, Terms: 480, Vectors: 12, Dimensions: 1024}

	out, err := execute(t, nil, "-t", "acme", "tenant", "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Tenant:")
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "480")
	assert.Contains(t, out, "1024")
}

func TestTenantRebuildCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, nil, "-t", "acme", "tenant", "rebuild")

	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, ts.tenants.rebuilt)
	assert.Contains(t, out, "Rebuilt indices for tenant acme")
}

func TestTenantRebuildCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.tenants.err = domain.ErrEmbeddingUnavailable

	_, err := execute(t, nil, "tenant", "rebuild")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestTenantWipeCmd(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()

		out, err := execute(t, strings.NewReader("y\n"), "-t", "acme", "tenant", "wipe")

		require.NoError(t, err)
		assert.Equal(t, []string{"acme"}, ts.tenants.wiped)
		assert.Contains(t, out, "Wiped tenant acme")
	})

	t.Run("declined", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()

		out, err := execute(t, strings.NewReader("n\n"), "-t", "acme", "tenant", "wipe")

		require.NoError(t, err)
		assert.Empty(t, ts.tenants.wiped)
		assert.Contains(t, out, "Aborted.")
	})

	t.Run("yes flag skips prompt", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()

		_, err := execute(t, nil, "-t", "acme", "tenant", "wipe", "--yes")

		require.NoError(t, err)
		assert.Equal(t, []string{"acme"}, ts.tenants.wiped)
	})

	t.Run("service error", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.tenants.err = errors.New("disk full")

		_, err := execute(t, nil, "tenant", "wipe", "-y")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to wipe tenant")
	})
}

func TestTenantCmds_EmptyTenant(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, nil, "--tenant", " ", "tenant", "stats")

	assert.ErrorIs(t, err, domain.ErrValidation)
}
