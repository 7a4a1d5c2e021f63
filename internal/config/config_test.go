package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WSPort != 8090 || cfg.HTTPPort != 8091 {
		t.Fatalf("unexpected default ports: %d/%d", cfg.WSPort, cfg.HTTPPort)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Fatalf("unexpected default ping interval: %v", cfg.PingInterval)
	}
	if cfg.MaxMessageSize != 65536 {
		t.Fatalf("unexpected default max message size: %d", cfg.MaxMessageSize)
	}
	if cfg.RosterLimit != 100 {
		t.Fatalf("unexpected default roster limit: %d", cfg.RosterLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WS_PORT", "9999")
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WSPort != 9999 {
		t.Fatalf("WS_PORT override not applied: %d", cfg.WSPort)
	}
	if cfg.PingInterval != 5*time.Second {
		t.Fatalf("WS_PING_INTERVAL override not applied: %v", cfg.PingInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LOG_LEVEL override not applied: %s", cfg.LogLevel)
	}
}
