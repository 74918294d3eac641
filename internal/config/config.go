package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by Load when no provider API key is configured.
// The server must not start without it.
var ErrMissingAPIKey = errors.New("serpapi api key is not configured")

type Config struct {
	HTTPAddr            string
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ShutdownTimeout     time.Duration
	LogLevel            string
	SerpAPIKey          string
	SerpAPIURL          string
	SerpAPITimeout      time.Duration
	SerpAPIRPS          float64
	SerpAPIBurst        int
	CalendarConcurrency int
	CalendarTimeout     time.Duration
	PartialResults      bool
	DefaultCurrency     string
	DefaultMarket       string
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	TracingEnabled      bool
	// ConfigFile is the file Load read, empty when only defaults and env were used.
	ConfigFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "90s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")

	v.SetDefault("serpapi.base_url", "https://serpapi.com/search")
	v.SetDefault("serpapi.timeout", "15s")
	v.SetDefault("serpapi.rps", 0)
	v.SetDefault("serpapi.burst", 5)

	v.SetDefault("calendar.concurrency", 5)
	v.SetDefault("calendar.timeout", "60s")
	v.SetDefault("calendar.partial_results", false)
	v.SetDefault("calendar.default_currency", "GBP")
	v.SetDefault("calendar.default_market", "uk")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "250ms")
	v.SetDefault("retry.max_backoff", "2s")

	v.SetDefault("tracing.enabled", false)
}

// Load reads configuration from an optional config file and the environment.
// Nested keys map to env vars with dots replaced by underscores
// (serpapi.api_key -> SERPAPI_API_KEY). SERPAPI_KEY and PORT are honoured as well.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CALENDAR_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/calendar")
	}

	// a missing file is fine: defaults and env vars still apply
	readErr := v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("serpapi.api_key", "SERPAPI_API_KEY", "SERPAPI_KEY")

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if readErr == nil {
		cfg.ConfigFile = v.ConfigFileUsed()
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	durations := map[string]*time.Duration{}
	cfg := &Config{
		HTTPAddr:            v.GetString("http.addr"),
		LogLevel:            v.GetString("log.level"),
		SerpAPIKey:          strings.TrimSpace(v.GetString("serpapi.api_key")),
		SerpAPIURL:          v.GetString("serpapi.base_url"),
		SerpAPIRPS:          v.GetFloat64("serpapi.rps"),
		SerpAPIBurst:        v.GetInt("serpapi.burst"),
		CalendarConcurrency: v.GetInt("calendar.concurrency"),
		PartialResults:      v.GetBool("calendar.partial_results"),
		DefaultCurrency:     v.GetString("calendar.default_currency"),
		DefaultMarket:       v.GetString("calendar.default_market"),
		RetryMaxAttempts:    v.GetInt("retry.max_attempts"),
		TracingEnabled:      v.GetBool("tracing.enabled"),
	}
	durations["http.read_timeout"] = &cfg.ReadTimeout
	durations["http.write_timeout"] = &cfg.WriteTimeout
	durations["http.shutdown_timeout"] = &cfg.ShutdownTimeout
	durations["serpapi.timeout"] = &cfg.SerpAPITimeout
	durations["calendar.timeout"] = &cfg.CalendarTimeout
	durations["retry.initial_backoff"] = &cfg.RetryInitialBackoff
	durations["retry.max_backoff"] = &cfg.RetryMaxBackoff

	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("bad %s: %w", key, err)
		}
		*dst = d
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":3000"
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		}
	}
	if cfg.CalendarConcurrency <= 0 {
		cfg.CalendarConcurrency = 5
	}

	if cfg.SerpAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}
