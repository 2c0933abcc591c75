package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Ledger.LockMode != LockModeLocal {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Games.Blackjack.Decks != 6 || cfg.Games.Blackjack.StandOn != 17 || cfg.Games.Slots.Reels != 3 {
		t.Fatalf("game defaults: %+v", cfg.Games)
	}
	if cfg.Ledger.MaxSettleAttempts != 3 || cfg.Ledger.LockTTL != 10*time.Second {
		t.Fatalf("ledger defaults: %+v", cfg.Ledger)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
database:
  driver: mysql
  host: db
ledger:
  max_settle_attempts: 5
  lock_ttl: 2s
games:
  blackjack:
    stand_on: 16
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CASINO_SERVER_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Ledger.MaxSettleAttempts != 5 || cfg.Ledger.LockTTL != 2*time.Second {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Games.Blackjack.StandOn != 16 || cfg.Games.Blackjack.Decks != 6 {
		t.Errorf("blackjack = %+v", cfg.Games.Blackjack)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite"},
			Ledger:   LedgerConfig{MaxSettleAttempts: 3, LockMode: LockModeLocal},
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero attempts", func(c *Config) { c.Ledger.MaxSettleAttempts = 0 }},
		{"unknown lock mode", func(c *Config) { c.Ledger.LockMode = "etcd" }},
		{"redis lock without redis", func(c *Config) { c.Ledger.LockMode = LockModeRedis }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
	}
	if err := base().Validate(); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
