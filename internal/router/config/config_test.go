package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "SERVER_ADDRESS=127.0.0.1:9000\nPAYOUT_HOLD=72h\nREDIS_DB=3\n"
	if err := os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected server address: %q", cfg.ServerAddress)
	}
	if cfg.PayoutHold != 72*time.Hour {
		t.Fatalf("unexpected payout hold: %v", cfg.PayoutHold)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("unexpected redis db: %d", cfg.RedisDB)
	}
	if cfg.GatewayCurrency != "INR" {
		t.Fatalf("expected default currency, got %q", cfg.GatewayCurrency)
	}
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Setenv("NATS_URL", "nats://queue:4222")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PayoutHold != 48*time.Hour {
		t.Fatalf("expected 48h hold by default, got %v", cfg.PayoutHold)
	}
	if cfg.NatsURL != "nats://queue:4222" {
		t.Fatalf("expected env override, got %q", cfg.NatsURL)
	}
}

func TestLoadConfigRejectsNonPositiveSweepInterval(t *testing.T) {
	for _, value := range []string{"0s", "-1m"} {
		t.Setenv("PAYOUT_SWEEP_INTERVAL", value)
		if _, err := LoadConfig(t.TempDir()); err == nil {
			t.Fatalf("expected error for PAYOUT_SWEEP_INTERVAL=%s", value)
		}
	}
}
