package migration

import (
	"time"

	"github.com/docker/go-units"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
)

// ErrConfiguration marks a fatal configuration problem. Nothing is retried
// past it; the process exits non-zero.
var ErrConfiguration = xerrors.New("invalid configuration")

// Config is resolved entirely from PDP_* environment variables. The migrate
// subcommand takes no positional arguments.
type Config struct {
	// SourceDir is the flat directory holding the piece files to migrate.
	SourceDir string `envconfig:"SOURCE_DIR"`
	// ServiceURL is the base URL of the PDP service accepting uploads.
	ServiceURL string `envconfig:"SERVICE_URL"`
	// AuthToken is sent as a bearer token on every service request.
	AuthToken string `envconfig:"AUTH_TOKEN"`
	// WalletAddress identifies the account the uploads are billed against.
	// Uploads must already be authorized for it (see the approve subcommand).
	WalletAddress string `envconfig:"WALLET_ADDRESS"`
	// LotusEndpoint is a Filecoin full node RPC endpoint, used only by the
	// wallet subcommand.
	LotusEndpoint string `envconfig:"LOTUS_ENDPOINT" default:"https://api.node.glif.io/rpc/v1"`

	// PiecePrefix filters source entries down to piece files. Piece CIDs are
	// fil-commitment-unsealed, so their string form starts with "baga".
	PiecePrefix  string `envconfig:"PIECE_PREFIX" default:"baga"`
	ProgressFile string `envconfig:"PROGRESS_FILE" default:"migration-progress.json"`
	ErrorLog     string `envconfig:"ERROR_LOG" default:"migration-errors.json"`

	// MaxConcurrent bounds in-flight uploads within a batch. Large values
	// risk fd exhaustion locally and throttling remotely.
	MaxConcurrent int `envconfig:"MAX_CONCURRENT" default:"16"`
	// BatchSize is the checkpoint quantum: progress is saved after every
	// batch, so at most one batch of work is lost on a hard crash.
	BatchSize int `envconfig:"BATCH_SIZE" default:"64"`
	// LogInterval is the number of completions between progress lines.
	LogInterval int `envconfig:"LOG_INTERVAL" default:"10"`
	// UploadRetries enables bounded in-run retries of transient failures.
	// The default keeps the original behavior: re-running the tool is the
	// retry mechanism.
	UploadRetries int           `envconfig:"UPLOAD_RETRIES" default:"0"`
	UploadTimeout time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"10m"`
	// MaxPieceSize mirrors the service-side piece size ceiling, letting the
	// worker skip oversized pieces without shipping the bytes first.
	MaxPieceSize string `envconfig:"MAX_PIECE_SIZE" default:"254MiB"`

	wallet        address.Address
	maxPieceBytes int64
}

// The service rejects more than this many pieces per request, so batches are
// capped to it regardless of configuration.
const maxBatchSize = 100

// FromEnv loads and normalizes configuration. Missing values are not fatal
// here; each subcommand enforces the subset it needs.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pdp", &cfg); err != nil {
		return nil, xerrors.Errorf("%s: %w", err, ErrConfiguration)
	}

	if cfg.SourceDir != "" {
		dir, err := homedir.Expand(cfg.SourceDir)
		if err != nil {
			return nil, xerrors.Errorf("expanding PDP_SOURCE_DIR (%s): %w", err, ErrConfiguration)
		}
		cfg.SourceDir = dir
	}

	if cfg.WalletAddress != "" {
		a, err := address.NewFromString(cfg.WalletAddress)
		if err != nil {
			return nil, xerrors.Errorf("parsing PDP_WALLET_ADDRESS %q (%s): %w", cfg.WalletAddress, err, ErrConfiguration)
		}
		cfg.wallet = a
	}

	size, err := units.RAMInBytes(cfg.MaxPieceSize)
	if err != nil {
		return nil, xerrors.Errorf("parsing PDP_MAX_PIECE_SIZE %q (%s): %w", cfg.MaxPieceSize, err, ErrConfiguration)
	}
	cfg.maxPieceBytes = size

	if cfg.MaxConcurrent < 1 {
		return nil, xerrors.Errorf("PDP_MAX_CONCURRENT must be at least 1: %w", ErrConfiguration)
	}
	if cfg.BatchSize < 1 {
		return nil, xerrors.Errorf("PDP_BATCH_SIZE must be at least 1: %w", ErrConfiguration)
	}
	if cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = maxBatchSize
	}
	if cfg.LogInterval < 1 {
		cfg.LogInterval = 1
	}

	return &cfg, nil
}

// ValidateMigration checks the values the migration run cannot start without.
func (c *Config) ValidateMigration() error {
	if c.SourceDir == "" {
		return xerrors.Errorf("PDP_SOURCE_DIR is not set: %w", ErrConfiguration)
	}
	if c.ServiceURL == "" {
		return xerrors.Errorf("PDP_SERVICE_URL is not set: %w", ErrConfiguration)
	}
	if c.WalletAddress == "" {
		return xerrors.Errorf("PDP_WALLET_ADDRESS is not set: %w", ErrConfiguration)
	}
	return nil
}

// RequireService checks the service endpoint is configured.
func (c *Config) RequireService() error {
	if c.ServiceURL == "" {
		return xerrors.Errorf("PDP_SERVICE_URL is not set: %w", ErrConfiguration)
	}
	return nil
}

// RequireWallet returns the configured wallet address.
func (c *Config) RequireWallet() (address.Address, error) {
	if c.WalletAddress == "" {
		return address.Undef, xerrors.Errorf("PDP_WALLET_ADDRESS is not set: %w", ErrConfiguration)
	}
	return c.wallet, nil
}

// MaxPieceBytes is the parsed PDP_MAX_PIECE_SIZE ceiling.
func (c *Config) MaxPieceBytes() int64 {
	return c.maxPieceBytes
}
