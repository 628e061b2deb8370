package config

import (
	"os"
	"testing"
)

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unset(t, "PORT", "SHOPS", "REDIS_DB")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Address())
	}
	shops := cfg.Shops()
	if len(shops) != 2 || shops[0] != "lazada" || shops[1] != "shopee" {
		t.Fatalf("expected default shops, got %v", shops)
	}
}

func TestShopsAreNormalised(t *testing.T) {
	t.Setenv("SHOPS", " Lazada ,SHOPEE,lazada,, tiktok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	shops := cfg.Shops()
	want := []string{"lazada", "shopee", "tiktok"}
	if len(shops) != len(want) {
		t.Fatalf("expected %v, got %v", want, shops)
	}
	for i := range want {
		if shops[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, shops)
		}
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric REDIS_DB")
	}

	t.Setenv("REDIS_DB", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative REDIS_DB")
	}
}
