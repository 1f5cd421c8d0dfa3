package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "FENTRO"
	defaultHTTPAddress        = "127.0.0.1:8088"
	defaultDatabasePath       = "fentro-console.db"
	defaultLogLevel           = "info"
	defaultPollInterval       = 30 * time.Second
	defaultSearchDebounce     = 500 * time.Millisecond
	defaultRequestTimeout     = 30 * time.Second
	defaultMaxUploadFileBytes = 10 << 20
	defaultMaxSelectionBytes  = 1 << 30
	defaultPreviewSize        = 256
	defaultLeadPageSize       = 8
	defaultPushPath           = "/socket"
)

// AppConfig captures runtime configuration for the console.
type AppConfig struct {
	HTTPAddress        string
	AllowedOrigins     []string
	APIBaseURL         string
	PushURL            string
	DatabasePath       string
	LogLevel           string
	LogFile            string
	PollInterval       time.Duration
	SearchDebounce     time.Duration
	RequestTimeout     time.Duration
	UploadDir          string
	MaxUploadFileBytes int64
	MaxSelectionBytes  int64
	PreviewSize        int
	LeadPageSize       int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.request_timeout", defaultRequestTimeout)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("notifications.poll_interval", defaultPollInterval)
	configViper.SetDefault("search.debounce", defaultSearchDebounce)
	configViper.SetDefault("uploads.max_file_bytes", defaultMaxUploadFileBytes)
	configViper.SetDefault("uploads.max_selection_bytes", defaultMaxSelectionBytes)
	configViper.SetDefault("uploads.preview_size", defaultPreviewSize)
	configViper.SetDefault("leads.page_size", defaultLeadPageSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		AllowedOrigins:     configViper.GetStringSlice("http.allowed_origins"),
		APIBaseURL:         strings.TrimRight(strings.TrimSpace(configViper.GetString("api.base_url")), "/"),
		PushURL:            strings.TrimSpace(configViper.GetString("push.url")),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		LogFile:            configViper.GetString("log.file"),
		PollInterval:       configViper.GetDuration("notifications.poll_interval"),
		SearchDebounce:     configViper.GetDuration("search.debounce"),
		RequestTimeout:     configViper.GetDuration("http.request_timeout"),
		UploadDir:          configViper.GetString("uploads.dir"),
		MaxUploadFileBytes: configViper.GetInt64("uploads.max_file_bytes"),
		MaxSelectionBytes:  configViper.GetInt64("uploads.max_selection_bytes"),
		PreviewSize:        configViper.GetInt("uploads.preview_size"),
		LeadPageSize:       configViper.GetInt("leads.page_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	if cfg.PushURL == "" {
		pushURL, err := derivePushURL(cfg.APIBaseURL)
		if err != nil {
			return AppConfig{}, err
		}
		cfg.PushURL = pushURL
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("api.base_url must be an absolute http(s) url")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("notifications.poll_interval must be positive")
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("search.debounce must not be negative")
	}
	if c.MaxUploadFileBytes <= 0 {
		return fmt.Errorf("uploads.max_file_bytes must be positive")
	}
	if c.MaxSelectionBytes <= 0 {
		return fmt.Errorf("uploads.max_selection_bytes must be positive")
	}
	if c.LeadPageSize <= 0 {
		return fmt.Errorf("leads.page_size must be positive")
	}
	return nil
}

func derivePushURL(apiBaseURL string) (string, error) {
	parsed, err := url.Parse(apiBaseURL)
	if err != nil {
		return "", fmt.Errorf("derive push url: %w", err)
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: parsed.Host, Path: defaultPushPath}).String(), nil
}
