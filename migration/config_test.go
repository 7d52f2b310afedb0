package migration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-address"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("PDP_SOURCE_DIR", t.TempDir())

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "baga", cfg.PiecePrefix)
	require.Equal(t, 16, cfg.MaxConcurrent)
	require.Equal(t, 64, cfg.BatchSize)
	require.Equal(t, 0, cfg.UploadRetries)
	require.EqualValues(t, 254<<20, cfg.MaxPieceBytes())
}

func TestConfigBatchSizeCapped(t *testing.T) {
	t.Setenv("PDP_BATCH_SIZE", "5000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, maxBatchSize, cfg.BatchSize)
}

func TestConfigBadWalletAddress(t *testing.T) {
	t.Setenv("PDP_WALLET_ADDRESS", "not-an-address")

	_, err := FromEnv()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigBadSize(t *testing.T) {
	t.Setenv("PDP_MAX_PIECE_SIZE", "many bytes")

	_, err := FromEnv()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigSizeUnits(t *testing.T) {
	t.Setenv("PDP_MAX_PIECE_SIZE", "1GiB")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.EqualValues(t, 1<<30, cfg.MaxPieceBytes())
}

func TestValidateMigration(t *testing.T) {
	t.Setenv("PDP_SOURCE_DIR", "")
	t.Setenv("PDP_SERVICE_URL", "")
	t.Setenv("PDP_WALLET_ADDRESS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.ErrorIs(t, cfg.ValidateMigration(), ErrConfiguration)

	t.Setenv("PDP_SOURCE_DIR", t.TempDir())
	t.Setenv("PDP_SERVICE_URL", "http://service.invalid")
	t.Setenv("PDP_WALLET_ADDRESS", "f01000")

	cfg, err = FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateMigration())

	addr, err := cfg.RequireWallet()
	require.NoError(t, err)
	want, err := address.NewIDAddress(1000)
	require.NoError(t, err)
	require.Equal(t, want, addr)
}

func TestConfigZeroConcurrencyRejected(t *testing.T) {
	t.Setenv("PDP_MAX_CONCURRENT", "0")

	_, err := FromEnv()
	require.ErrorIs(t, err, ErrConfiguration)
}
