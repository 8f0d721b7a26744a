package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: Password is prompted at runtime and stored in memory - use GetWalletPasswordBytes()
type Config struct {
	Port      string `envconfig:"PORT" default:"8090"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	NodeURL        string        `envconfig:"LINERA_NODE_URL" default:"http://127.0.0.1:8080"`
	NodeWSURL      string        `envconfig:"LINERA_NODE_WS_URL"`
	RequestTimeout time.Duration `envconfig:"LINERA_REQUEST_TIMEOUT" default:"30s"`
	MaxRPS         float64       `envconfig:"LINERA_MAX_RPS" default:"20"`

	DeployMaxAttempts    int           `envconfig:"LINERA_DEPLOY_MAX_ATTEMPTS" default:"5"`
	DeployInitialBackoff time.Duration `envconfig:"LINERA_DEPLOY_INITIAL_BACKOFF" default:"500ms"`
	DeployMaxBackoff     time.Duration `envconfig:"LINERA_DEPLOY_MAX_BACKOFF" default:"30s"`
	ConfirmTimeout       time.Duration `envconfig:"LINERA_CONFIRM_TIMEOUT" default:"60s"`
	ConfirmPollInterval  time.Duration `envconfig:"LINERA_CONFIRM_POLL_INTERVAL" default:"1s"`

	WatchInitialBackoff time.Duration `envconfig:"LINERA_WATCH_INITIAL_BACKOFF" default:"500ms"`
	WatchMaxBackoff     time.Duration `envconfig:"LINERA_WATCH_MAX_BACKOFF" default:"30s"`

	MetricsInterval time.Duration `envconfig:"LINERA_METRICS_INTERVAL" default:"5s"`

	SupabaseURL   string `envconfig:"SUPABASE_URL"`
	SupabaseKey   string `envconfig:"SUPABASE_KEY"`
	SupabaseTable string `envconfig:"SUPABASE_TABLE" default:"linera_events"`
}

// cfg is the global configuration instance
var cfg *Config

// Load reads an optional .env file and the environment into a new Config
// without touching the global instance.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if c.DeployMaxAttempts < 1 {
		return nil, fmt.Errorf("LINERA_DEPLOY_MAX_ATTEMPTS must be at least 1, got %d", c.DeployMaxAttempts)
	}
	return c, nil
}

// Init loads configuration from environment variables.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetNodeURL returns the node JSON-RPC URL from configuration
func GetNodeURL() string {
	return Get().NodeURL
}

// GetMetricsInterval returns the resource logging interval
func GetMetricsInterval() time.Duration {
	return Get().MetricsInterval
}

var passwordBytes []byte

// PromptForPassword prompts the user for the wallet password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// When stdin is not a terminal LINERA_WALLET_PASSWORD is used instead.
func PromptForPassword() error {
	raw, err := ReadPassword("Enter wallet password: ")
	if err != nil {
		return err
	}
	passwordBytes = raw
	return nil
}

// ReadPassword reads one password from the terminal, or from
// LINERA_WALLET_PASSWORD when stdin is not a terminal.
// Caller must zero the returned slice after use for security.
func ReadPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if env := os.Getenv("LINERA_WALLET_PASSWORD"); env != "" {
			return []byte(env), nil
		}
		return nil, errors.New("stdin is not a terminal: run interactively or set LINERA_WALLET_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("password cannot be empty")
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	clear(raw)
	return out, nil
}

// GetWalletPasswordBytes returns the password stored in memory (from PromptForPassword).
// Returns an error if the password was not set.
// Caller must zero the returned slice after use for security.
func GetWalletPasswordBytes() ([]byte, error) {
	if len(passwordBytes) == 0 {
		return nil, errors.New("password not set: call PromptForPassword at startup")
	}
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out, nil
}
