package main

import (
	"testing"

	"finsync/internal/shared/config"
)

func TestNewCache_MemoryWhenRedisUnconfigured(t *testing.T) {
	c := newCache(&config.Config{})
	if c.Name() != "memory" {
		t.Errorf("backend = %s, want memory", c.Name())
	}
}

func TestNewCache_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Addr = "127.0.0.1:1" // nothing listens here

	c := newCache(cfg)
	if c.Name() != "memory" {
		t.Errorf("backend = %s, want memory fallback", c.Name())
	}
}
