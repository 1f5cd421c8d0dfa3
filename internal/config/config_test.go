package config

import (
	"testing"
	"time"
)

func TestLoadDerivesPushURLFromAPIBase(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "https://cms.example.com/")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.APIBaseURL != "https://cms.example.com" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.PushURL != "wss://cms.example.com/socket" {
		t.Fatalf("unexpected push url %q", cfg.PushURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("expected default poll interval, got %s", cfg.PollInterval)
	}
	if cfg.SearchDebounce != 500*time.Millisecond {
		t.Fatalf("expected default search debounce, got %s", cfg.SearchDebounce)
	}
	if cfg.LeadPageSize != 8 {
		t.Fatalf("expected default lead page size 8, got %d", cfg.LeadPageSize)
	}
	if cfg.MaxUploadFileBytes != 10<<20 {
		t.Fatalf("expected 10 MiB advisory file size, got %d", cfg.MaxUploadFileBytes)
	}
	if cfg.MaxSelectionBytes <= cfg.MaxUploadFileBytes {
		t.Fatalf("expected selection limit above the per-file advisory size, got %d", cfg.MaxSelectionBytes)
	}
}

func TestLoadRequiresAPIBaseURL(t *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		t.Fatalf("expected error for missing api.base_url")
	}

	configViper := NewViper()
	configViper.Set("api.base_url", "cms.example.com")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for relative api.base_url")
	}
}

func TestLoadKeepsExplicitPushURL(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "http://localhost:4000")
	configViper.Set("push.url", "ws://localhost:4001/ws")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.PushURL != "ws://localhost:4001/ws" {
		t.Fatalf("expected explicit push url, got %q", cfg.PushURL)
	}
}

func TestLoadRejectsNonPositivePollInterval(t *testing.T) {
	configViper := NewViper()
	configViper.Set("api.base_url", "http://localhost:4000")
	configViper.Set("notifications.poll_interval", "0s")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for zero poll interval")
	}
}
