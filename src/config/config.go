package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/at2-network/at2-node/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key.
	DefaultKeyfile = "priv_key"

	// DefaultGenesisFile is the default name of the file containing the seeded
	// account balances.
	DefaultGenesisFile = "genesis.json"

	// DefaultInfoLog and DefaultDebugLog are the log files written under the
	// data directory.
	DefaultInfoLog  = "at2_info.log"
	DefaultDebugLog = "at2_debug.log"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultMaxPool          = 2
	DefaultCacheSize        = 100
	DefaultBootstrapRetries = 8
	DefaultSendRetries      = 3
	DefaultRetryBackoff     = 200 * time.Millisecond

	// MaxRetryBackoff caps the exponential backoff between reconnection
	// attempts.
	MaxRetryBackoff = 10 * time.Second
)

// Config contains all the configuration properties of an AT2 node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node talks to other
	// nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP API service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per target in the
	// transport.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of transport RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// CacheSize is the capacity of the recent-transaction cache.
	CacheSize int `mapstructure:"cache-size"`

	// BootstrapRetries is the max number of connection attempts per peer
	// during bootstrap.
	BootstrapRetries int `mapstructure:"bootstrap-retries"`

	// SendRetries is the max number of attempts for broadcast sends.
	SendRetries int `mapstructure:"send-retries"`

	// RetryBackoff is the initial delay between retries; it doubles on every
	// failure, capped at MaxRetryBackoff.
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`

	// Moniker defines the friendly name of this node.
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		TCPTimeout:       DefaultTCPTimeout,
		MaxPool:          DefaultMaxPool,
		CacheSize:        DefaultCacheSize,
		BootstrapRetries: DefaultBootstrapRetries,
		SendRetries:      DefaultSendRetries,
		RetryBackoff:     DefaultRetryBackoff,
	}
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// GenesisFile returns the full path of the file containing seeded balances.
func (c *Config) GenesisFile() string {
	return filepath.Join(c.DataDir, DefaultGenesisFile)
}

// Logger returns a formatted logrus Entry with prefix set to "at2". Log
// output is teed into level-keyed files under the data directory when they
// can be opened.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		pathMap := lfshook.PathMap{}

		infoLog := filepath.Join(c.DataDir, DefaultInfoLog)
		if _, err := os.OpenFile(infoLog, os.O_CREATE|os.O_WRONLY, 0666); err == nil {
			pathMap[logrus.InfoLevel] = infoLog
		}

		debugLog := filepath.Join(c.DataDir, DefaultDebugLog)
		if _, err := os.OpenFile(debugLog, os.O_CREATE|os.O_WRONLY, 0666); err == nil {
			pathMap[logrus.DebugLevel] = debugLog
		}

		if len(pathMap) > 0 {
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "at2")
}

// DefaultDataDir returns the default directory name for top-level AT2 config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".AT2")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "AT2")
		} else {
			return filepath.Join(home, ".at2")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
