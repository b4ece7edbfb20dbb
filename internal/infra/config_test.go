package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mm_stats/internal/domain"
)

const validYAML = `
app:
  name: mm-stats
oasis:
  rpc_url: http://localhost:8545
  address: "0x14FBCA95be7e99C15Cc2996c6C9d841e54B79425"
market:
  base: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
  quote: "0x89d24A6b4CcB1B6fAA2625fE562bDD9a23260359"
  market_maker: "0x00000000000000000000000000000000000000Aa"
window:
  past_blocks: 5000
prices:
  source: file
  file: prices.jsonl
chart:
  min_price: "250.5"
  max_price: "400"
logging:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	t.Run("defaults survive partial files", func(t *testing.T) {
		if cfg.Oasis.ChunkBlocks != 5000 || cfg.Chart.Width != 1280 {
			t.Errorf("Expected defaults, got chunk=%d width=%d", cfg.Oasis.ChunkBlocks, cfg.Chart.Width)
		}
	})

	t.Run("decimal bounds", func(t *testing.T) {
		if cfg.Chart.MinPrice == nil || cfg.Chart.MinPrice.String() != "250.5" {
			t.Errorf("Expected min price 250.5, got %v", cfg.Chart.MinPrice)
		}
	})

	t.Run("addresses are normalized", func(t *testing.T) {
		if cfg.MarketMaker() != "0x00000000000000000000000000000000000000aa" {
			t.Errorf("Expected lowercase market maker, got %s", cfg.MarketMaker())
		}
		if cfg.BaseAsset() != "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" {
			t.Errorf("Expected lowercase base, got %s", cfg.BaseAsset())
		}
	})
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MMSTATS_RPC_URL", "wss://node.example:8546")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Oasis.RPCURL != "wss://node.example:8546" {
		t.Errorf("Expected env override, got %s", cfg.Oasis.RPCURL)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(*Config)
	}{
		{"bad rpc scheme", "oasis.rpc_url", func(c *Config) { c.Oasis.RPCURL = "ftp://node" }},
		{"bad contract", "oasis.address", func(c *Config) { c.Oasis.Address = "0x123" }},
		{"same base and quote", "market.quote", func(c *Config) { c.Market.Quote = c.Market.Base }},
		{"both windows", "window", func(c *Config) { c.Window.Past = "3d" }},
		{"no window", "window", func(c *Config) { c.Window.PastBlocks = 0 }},
		{"bad duration", "window.past", func(c *Config) { c.Window.PastBlocks = 0; c.Window.Past = "3y" }},
		{"unknown price source", "prices.source", func(c *Config) { c.Prices.Source = "oracle" }},
		{"zero chart size", "chart", func(c *Config) { c.Chart.Height = 0 }},
		{"inverted bounds", "chart.min_price", func(c *Config) { *c.Chart.MinPrice = c.Chart.MaxPrice.Add(*c.Chart.MaxPrice) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			tt.edit(cfg)

			err = cfg.Validate()
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}
}
