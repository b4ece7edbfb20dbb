package infra

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"mm_stats/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is sent with every outbound HTTP request
	DefaultUserAgent = "mm-stats/1.0 (+https://github.com/makerdao)"

	PriceSourceGDAX = "gdax"
	PriceSourceFile = "file"
	PriceSourceNone = "none"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Config는 분석 실행에 필요한 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수와 CLI 플래그로 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Oasis struct {
		RPCURL      string `yaml:"rpc_url"`
		Address     string `yaml:"address"`
		TimeoutSec  int    `yaml:"timeout_sec"`
		MaxRetries  int    `yaml:"max_retries"`
		ChunkBlocks uint64 `yaml:"chunk_blocks"`
	} `yaml:"oasis"`

	Market struct {
		Base        string `yaml:"base"`
		Quote       string `yaml:"quote"`
		MarketMaker string `yaml:"market_maker"`
	} `yaml:"market"`

	Window struct {
		PastBlocks uint64 `yaml:"past_blocks"`
		Past       string `yaml:"past"`
	} `yaml:"window"`

	Prices struct {
		Source          string `yaml:"source"`
		GDAXURL         string `yaml:"gdax_url"`
		GDAXProduct     string `yaml:"gdax_product"`
		GranularitySec  int    `yaml:"granularity_sec"`
		File            string `yaml:"file"`
		AlternativeFile string `yaml:"alternative_file"`
	} `yaml:"prices"`

	Chart struct {
		Output       string           `yaml:"output"`
		Timeline     string           `yaml:"timeline"`
		Width        int              `yaml:"width"`
		Height       int              `yaml:"height"`
		ShowFurthest bool             `yaml:"show_furthest"`
		MinPrice     *decimal.Decimal `yaml:"min_price"`
		MaxPrice     *decimal.Decimal `yaml:"max_price"`
	} `yaml:"chart"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the values used for anything the file leaves out.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "mm-stats"
	cfg.Oasis.RPCURL = "http://localhost:8545"
	cfg.Oasis.TimeoutSec = 60
	cfg.Oasis.MaxRetries = 3
	cfg.Oasis.ChunkBlocks = 5000
	cfg.Prices.Source = PriceSourceGDAX
	cfg.Prices.GDAXURL = "https://api.pro.coinbase.com"
	cfg.Prices.GDAXProduct = "ETH-USD"
	cfg.Prices.GranularitySec = 60
	cfg.Chart.Output = "mmstats.png"
	cfg.Chart.Width = 1280
	cfg.Chart.Height = 720
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Oasis
	if !hasAnyPrefix(c.Oasis.RPCURL, "http://", "https://", "ws://", "wss://") {
		return &domain.ConfigError{Field: "oasis.rpc_url", Err: fmt.Errorf("unsupported scheme: %q", c.Oasis.RPCURL)}
	}
	if !addressPattern.MatchString(c.Oasis.Address) {
		return &domain.ConfigError{Field: "oasis.address", Err: fmt.Errorf("not an address: %q", c.Oasis.Address)}
	}
	if c.Oasis.ChunkBlocks == 0 {
		return &domain.ConfigError{Field: "oasis.chunk_blocks", Err: errors.New("must be positive")}
	}

	// Market
	for field, v := range map[string]string{
		"market.base":         c.Market.Base,
		"market.quote":        c.Market.Quote,
		"market.market_maker": c.Market.MarketMaker,
	} {
		if !addressPattern.MatchString(v) {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("not an address: %q", v)}
		}
	}
	if strings.EqualFold(c.Market.Base, c.Market.Quote) {
		return &domain.ConfigError{Field: "market.quote", Err: errors.New("base and quote must differ")}
	}

	// Window
	if (c.Window.PastBlocks == 0) == (c.Window.Past == "") {
		return &domain.ConfigError{Field: "window", Err: errors.New("exactly one of past_blocks or past is required")}
	}
	if c.Window.Past != "" {
		if _, err := ParseLookback(c.Window.Past); err != nil {
			return &domain.ConfigError{Field: "window.past", Err: err}
		}
	}

	// Prices
	switch c.Prices.Source {
	case PriceSourceGDAX:
		if c.Prices.GDAXProduct == "" {
			return &domain.ConfigError{Field: "prices.gdax_product", Err: errors.New("required for gdax source")}
		}
	case PriceSourceFile:
		if c.Prices.File == "" {
			return &domain.ConfigError{Field: "prices.file", Err: errors.New("required for file source")}
		}
	case PriceSourceNone:
	default:
		return &domain.ConfigError{Field: "prices.source", Err: fmt.Errorf("unknown source %q", c.Prices.Source)}
	}

	// Chart
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return &domain.ConfigError{Field: "chart", Err: errors.New("width and height must be positive")}
	}
	if c.Chart.MinPrice != nil && c.Chart.MaxPrice != nil && !c.Chart.MinPrice.LessThan(*c.Chart.MaxPrice) {
		return &domain.ConfigError{Field: "chart.min_price", Err: errors.New("must be below max_price")}
	}

	return nil
}

// MarketMaker returns the tracked account in canonical form.
func (c *Config) MarketMaker() domain.Account {
	return domain.Account(c.Market.MarketMaker).Normalize()
}

// BaseAsset returns the base token in canonical form.
func (c *Config) BaseAsset() domain.AssetID {
	return domain.AssetID(c.Market.Base).Normalize()
}

// QuoteAsset returns the quote token in canonical form.
func (c *Config) QuoteAsset() domain.AssetID {
	return domain.AssetID(c.Market.Quote).Normalize()
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MMSTATS_RPC_URL"); url != "" {
		cfg.Oasis.RPCURL = url
	}
	if mm := os.Getenv("MMSTATS_MARKET_MAKER"); mm != "" {
		cfg.Market.MarketMaker = mm
	}
	if url := os.Getenv("MMSTATS_GDAX_URL"); url != "" {
		cfg.Prices.GDAXURL = url
	}
}
