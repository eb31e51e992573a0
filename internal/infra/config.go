package infra

import (
	"fmt"
	"os"
	"strings"

	"assetwatch/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	minRateRefreshSec = 30
	maxRateRefreshSec = 3600
)

// Config holds every application setting. LoadConfig reads the YAML file,
// then environment variables override the sensitive parts.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string `yaml:"addr"`
		ReadTimeoutSec     int    `yaml:"read_timeout_sec"`
		WriteTimeoutSec    int    `yaml:"write_timeout_sec"`
		ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Assets []domain.AssetConfig `yaml:"assets"`

	Rates struct {
		URL                string `yaml:"url"`
		Anchor             string `yaml:"anchor"`
		RefreshIntervalSec int    `yaml:"refresh_interval_sec"`
	} `yaml:"rates"`

	Storage struct {
		Driver   string `yaml:"driver"` // none, sqlite, redis
		Path     string `yaml:"path"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"storage"`

	Exchanges struct {
		Binance struct {
			WSURL   string `yaml:"ws_url"`
			RestURL string `yaml:"rest_url"`
		} `yaml:"binance"`
		Coinbase struct {
			WSURL   string `yaml:"ws_url"`
			RestURL string `yaml:"rest_url"`
		} `yaml:"coinbase"`
		Yahoo struct {
			RestURL         string `yaml:"rest_url"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"yahoo"`
		Forex struct {
			RestURL         string `yaml:"rest_url"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"forex"`
		Metals struct {
			RestURL         string `yaml:"rest_url"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"metals"`
	} `yaml:"exchanges"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "assetwatch"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":9090"
	}
	if c.Logging.File == "" {
		c.Logging.File = "logs/assetwatch.log"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 10
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		c.Server.ShutdownTimeoutSec = 10
	}
	if c.Rates.URL == "" {
		c.Rates.URL = "https://open.er-api.com/v6/latest/USD"
	}
	if c.Rates.Anchor == "" {
		c.Rates.Anchor = "USD"
	}
	c.Rates.Anchor = strings.ToUpper(c.Rates.Anchor)
	if c.Rates.RefreshIntervalSec == 0 {
		c.Rates.RefreshIntervalSec = maxRateRefreshSec
	}
	if c.Rates.RefreshIntervalSec < minRateRefreshSec {
		c.Rates.RefreshIntervalSec = minRateRefreshSec
	}
	if c.Rates.RefreshIntervalSec > maxRateRefreshSec {
		c.Rates.RefreshIntervalSec = maxRateRefreshSec
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "none"
	}

	if c.Exchanges.Binance.WSURL == "" {
		c.Exchanges.Binance.WSURL = "wss://stream.binance.com:9443/ws"
	}
	if c.Exchanges.Coinbase.WSURL == "" {
		c.Exchanges.Coinbase.WSURL = "wss://ws-feed.exchange.coinbase.com"
	}
	if c.Exchanges.Coinbase.RestURL == "" {
		c.Exchanges.Coinbase.RestURL = "https://api.coinbase.com"
	}
	if c.Exchanges.Yahoo.RestURL == "" {
		c.Exchanges.Yahoo.RestURL = "https://query1.finance.yahoo.com"
	}
	if c.Exchanges.Forex.RestURL == "" {
		c.Exchanges.Forex.RestURL = "https://open.er-api.com"
	}
	if c.Exchanges.Metals.RestURL == "" {
		c.Exchanges.Metals.RestURL = "https://api.metalpriceapi.com"
	}
	if c.Exchanges.Yahoo.PollIntervalSec <= 0 {
		c.Exchanges.Yahoo.PollIntervalSec = 60
	}
	if c.Exchanges.Forex.PollIntervalSec <= 0 {
		c.Exchanges.Forex.PollIntervalSec = 300
	}
	if c.Exchanges.Metals.PollIntervalSec <= 0 {
		c.Exchanges.Metals.PollIntervalSec = 300
	}

	for i := range c.Assets {
		c.Assets[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Assets[i].Symbol))
		c.Assets[i].Currency = strings.ToUpper(strings.TrimSpace(c.Assets[i].Currency))
		c.Assets[i].Exchange = strings.ToLower(strings.TrimSpace(c.Assets[i].Exchange))
		if c.Assets[i].Owner == "" {
			c.Assets[i].Owner = "default"
		}
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return &domain.ConfigError{Field: "assets", Err: fmt.Errorf("at least one asset is required")}
	}
	for i, a := range c.Assets {
		if a.Symbol == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("assets[%d].symbol", i), Err: fmt.Errorf("symbol is required")}
		}
		if a.Exchange == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("assets[%d].exchange", i), Err: fmt.Errorf("exchange is required")}
		}
	}
	if !strings.HasPrefix(c.Exchanges.Binance.WSURL, "ws://") && !strings.HasPrefix(c.Exchanges.Binance.WSURL, "wss://") {
		return &domain.ConfigError{Field: "exchanges.binance.ws_url", Err: fmt.Errorf("invalid websocket URL: %s", c.Exchanges.Binance.WSURL)}
	}
	if !strings.HasPrefix(c.Exchanges.Coinbase.WSURL, "ws://") && !strings.HasPrefix(c.Exchanges.Coinbase.WSURL, "wss://") {
		return &domain.ConfigError{Field: "exchanges.coinbase.ws_url", Err: fmt.Errorf("invalid websocket URL: %s", c.Exchanges.Coinbase.WSURL)}
	}
	switch c.Storage.Driver {
	case "none", "sqlite", "redis":
	default:
		return &domain.ConfigError{Field: "storage.driver", Err: fmt.Errorf("unknown driver: %s", c.Storage.Driver)}
	}
	return nil
}

// overrideWithEnv replaces config values when environment variables exist.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("ASSETWATCH_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if url := os.Getenv("ASSETWATCH_RATES_URL"); url != "" {
		cfg.Rates.URL = url
	}
	if addr := os.Getenv("ASSETWATCH_REDIS_ADDR"); addr != "" {
		cfg.Storage.Addr = addr
	}
	if pass := os.Getenv("ASSETWATCH_REDIS_PASSWORD"); pass != "" {
		cfg.Storage.Password = pass
	}
}
