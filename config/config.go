package config

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

const (
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
	PlatformSimulate    = "simulate"

	DefaultConfigPath = "config.yaml"

	defaultStreamBuffer      = 256
	defaultKeepaliveInterval = 30 * time.Minute
	defaultPollInterval      = 10 * time.Second
	defaultMaxPollFailures   = 5
	defaultReconnectWait     = 5 * time.Second
	defaultRetryMax          = 5
	defaultRetryInitial      = time.Second
	defaultRetryMaxInterval  = 30 * time.Second
	defaultBybitAccountType  = "UNIFIED"
	defaultLogLevel          = "info"
)

type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

// Credentials exchange secrets, read from the environment only.
type Credentials struct {
	APIKey     string
	APISecret  string
	PrivateKey string
}

type Config struct {
	Platform           string
	MarketType         domain.MarketType
	Testnet            bool
	BybitAccountType   string
	HyperliquidBaseURL string
	StreamBuffer       int
	KeepaliveInterval  time.Duration
	PollInterval       time.Duration
	MaxPollFailures    int
	ReconnectWait      time.Duration
	Retry              RetryConfig
	WebAddr            string
	JournalDir         string
	Log                LogConfig
	SimulateWallet     map[string]string
	Credentials        Credentials
}

type RetryConfigTmp struct {
	MaxRetries      *int          `yaml:"max_retries,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
}

type LogConfigTmp struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// ConfigTmp yaml representation of Config.
type ConfigTmp struct {
	Platform           string            `yaml:"platform"`
	MarketTypeStr      string            `yaml:"market_type,omitempty"`
	Testnet            bool              `yaml:"testnet,omitempty"`
	BybitAccountType   string            `yaml:"bybit_account_type,omitempty"`
	HyperliquidBaseURL string            `yaml:"hyperliquid_base_url,omitempty"`
	StreamBuffer       int               `yaml:"stream_buffer,omitempty"`
	KeepaliveInterval  time.Duration     `yaml:"keepalive_interval,omitempty"`
	PollInterval       time.Duration     `yaml:"poll_interval,omitempty"`
	MaxPollFailures    int               `yaml:"max_poll_failures,omitempty"`
	ReconnectWait      time.Duration     `yaml:"reconnect_wait,omitempty"`
	Retry              RetryConfigTmp    `yaml:"retry,omitempty"`
	WebAddr            string            `yaml:"web_addr,omitempty"`
	JournalDir         string            `yaml:"journal_dir,omitempty"`
	Log                LogConfigTmp      `yaml:"log,omitempty"`
	SimulateWallet     map[string]string `yaml:"simulate_wallet,omitempty"`
}

// Flags command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
}

// ParseFlags parses the process command line.
func ParseFlags() Flags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) Flags {
	var f Flags
	fs.StringVar(&f.ConfigPath, "config", DefaultConfigPath, "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive config wizard before starting")
	_ = fs.Parse(args)
	return f
}

// Get loads the config from path and fills credentials from the environment.
func Get(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	conf, err := Parse(data)
	if err != nil {
		return Config{}, err
	}

	creds, err := CredentialsFromEnv(conf.Platform, os.Getenv)
	if err != nil {
		return Config{}, err
	}
	conf.Credentials = creds

	return conf, nil
}

// Parse decodes yaml, rejecting unknown fields, then normalizes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tmp); err != nil {
		return Config{}, fmt.Errorf("failed to decode yaml config: %w", err)
	}

	tmp.normalize()
	conf := tmp.toConfig()
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (c *ConfigTmp) normalize() {
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	c.MarketTypeStr = strings.ToLower(strings.TrimSpace(c.MarketTypeStr))
	c.BybitAccountType = strings.ToUpper(strings.TrimSpace(c.BybitAccountType))
	c.HyperliquidBaseURL = strings.TrimRight(strings.TrimSpace(c.HyperliquidBaseURL), "/")
	c.WebAddr = strings.TrimSpace(c.WebAddr)
	c.JournalDir = strings.TrimSpace(c.JournalDir)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	if len(c.SimulateWallet) > 0 {
		wallet := make(map[string]string, len(c.SimulateWallet))
		for asset, amount := range c.SimulateWallet {
			wallet[strings.ToUpper(strings.TrimSpace(asset))] = strings.TrimSpace(amount)
		}
		c.SimulateWallet = wallet
	}
}

func (c ConfigTmp) toConfig() Config {
	conf := Config{
		Platform:           c.Platform,
		MarketType:         domain.MarketType(c.MarketTypeStr),
		Testnet:            c.Testnet,
		BybitAccountType:   c.BybitAccountType,
		HyperliquidBaseURL: c.HyperliquidBaseURL,
		StreamBuffer:       c.StreamBuffer,
		KeepaliveInterval:  c.KeepaliveInterval,
		PollInterval:       c.PollInterval,
		MaxPollFailures:    c.MaxPollFailures,
		ReconnectWait:      c.ReconnectWait,
		Retry: RetryConfig{
			MaxRetries:      -1,
			InitialInterval: c.Retry.InitialInterval,
			MaxInterval:     c.Retry.MaxInterval,
		},
		WebAddr:        c.WebAddr,
		JournalDir:     c.JournalDir,
		Log:            LogConfig{Level: c.Log.Level, Development: c.Log.Development},
		SimulateWallet: c.SimulateWallet,
	}
	if c.Retry.MaxRetries != nil {
		conf.Retry.MaxRetries = *c.Retry.MaxRetries
	}
	return conf
}

func (c *Config) applyDefaults() {
	if c.MarketType == "" {
		c.MarketType = domain.MarketTypeSpot
	}
	if c.BybitAccountType == "" {
		c.BybitAccountType = defaultBybitAccountType
	}
	if c.StreamBuffer == 0 {
		c.StreamBuffer = defaultStreamBuffer
	}
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = defaultKeepaliveInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxPollFailures == 0 {
		c.MaxPollFailures = defaultMaxPollFailures
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = defaultReconnectWait
	}
	// unset max_retries means default, an explicit 0 disables retries
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = defaultRetryMax
	}
	if c.Retry.InitialInterval == 0 {
		c.Retry.InitialInterval = defaultRetryInitial
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = defaultRetryMaxInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Validate checks a fully defaulted config.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformBinance, PlatformBybit, PlatformHyperliquid, PlatformSimulate:
	case "":
		return fmt.Errorf("'platform' param is required")
	default:
		return fmt.Errorf("unsupported platform: %s", c.Platform)
	}

	if !c.MarketType.IsValid() {
		return fmt.Errorf("incorrect 'market_type' param in yaml config: %s", c.MarketType)
	}
	if c.MarketType == domain.MarketTypeMargin && c.Platform != PlatformBinance {
		return fmt.Errorf("market_type margin is supported on binance only, got platform %s", c.Platform)
	}

	if c.StreamBuffer < 1 {
		return fmt.Errorf("'stream_buffer' must be positive, got %d", c.StreamBuffer)
	}
	for name, d := range map[string]time.Duration{
		"keepalive_interval":     c.KeepaliveInterval,
		"poll_interval":          c.PollInterval,
		"reconnect_wait":         c.ReconnectWait,
		"retry.initial_interval": c.Retry.InitialInterval,
		"retry.max_interval":     c.Retry.MaxInterval,
	} {
		if d < 0 {
			return fmt.Errorf("'%s' must not be negative, got %s", name, d)
		}
	}
	if c.MaxPollFailures < 1 {
		return fmt.Errorf("'max_poll_failures' must be positive, got %d", c.MaxPollFailures)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("'retry.max_retries' must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("'retry.max_interval' (%s) is less than 'retry.initial_interval' (%s)", c.Retry.MaxInterval, c.Retry.InitialInterval)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Log.Level)
	}

	for asset, amount := range c.SimulateWallet {
		if asset == "" {
			return fmt.Errorf("'simulate_wallet' contains an empty asset")
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("incorrect 'simulate_wallet' amount for %s: %w", asset, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("'simulate_wallet' amount for %s is negative", asset)
		}
	}

	return nil
}

// CredentialsFromEnv reads the secrets the platform needs.
func CredentialsFromEnv(platform string, getenv func(string) string) (Credentials, error) {
	switch platform {
	case PlatformBinance:
		return apiKeyPair(getenv, "BINANCE_API_KEY", "BINANCE_API_SECRET")
	case PlatformBybit:
		return apiKeyPair(getenv, "BYBIT_API_KEY", "BYBIT_API_SECRET")
	case PlatformHyperliquid:
		key := getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			return Credentials{}, fmt.Errorf("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		return Credentials{PrivateKey: key}, nil
	default:
		return Credentials{}, nil
	}
}

func apiKeyPair(getenv func(string) string, keyVar, secretVar string) (Credentials, error) {
	key, secret := getenv(keyVar), getenv(secretVar)
	if key == "" || secret == "" {
		return Credentials{}, fmt.Errorf("%s and %s environment variables must be set", keyVar, secretVar)
	}
	return Credentials{APIKey: key, APISecret: secret}, nil
}
