package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string

	// upstream exam API
	APIBaseURL string
	APITimeout time.Duration

	ExamDuration time.Duration
	TabIdleTTL   time.Duration

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// HMAC secret shared with the API that issues login tokens. Empty means
	// tokens are decoded without signature verification.
	AuthHMACSecret string

	CORSOriginsProd []string
	CORSOriginsDev  []string
}

// CORSOrigins returns the allowed origins for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeProd {
		return c.CORSOriginsProd
	}
	return c.CORSOriginsDev
}

// fileConfig mirrors Config in the optional YAML file. Durations are Go
// duration strings ("10s", "30m").
type fileConfig struct {
	Mode            string   `yaml:"mode"`
	HTTPAddr        string   `yaml:"http_addr"`
	LogMode         string   `yaml:"log_mode"`
	APIBaseURL      string   `yaml:"api_base_url"`
	APITimeout      string   `yaml:"api_timeout"`
	ExamDurationSec int      `yaml:"exam_duration_sec"`
	TabIdleTTL      string   `yaml:"tab_idle_ttl"`
	DBDriver        string   `yaml:"db_driver"`
	DBDSN           string   `yaml:"db_dsn"`
	RedisAddr       string   `yaml:"redis_addr"`
	RedisPassword   string   `yaml:"redis_password"`
	RedisDB         int      `yaml:"redis_db"`
	CacheTTL        string   `yaml:"cache_ttl"`
	AuthHMACSecret  string   `yaml:"auth_hmac_secret"`
	CORSOriginsProd []string `yaml:"cors_origins_prod"`
	CORSOriginsDev  []string `yaml:"cors_origins_dev"`
}

func defaults() Config {
	return Config{
		Mode:            ModeDev,
		HTTPAddr:        ":8080",
		LogMode:         "dev",
		APIBaseURL:      "http://localhost:4000",
		APITimeout:      10 * time.Second,
		ExamDuration:    3000 * time.Second,
		TabIdleTTL:      2 * time.Hour,
		DBDriver:        "sqlite",
		DBDSN:           "file:qknou.db?_pragma=busy_timeout(5000)",
		CacheTTL:        5 * time.Minute,
		CORSOriginsProd: []string{"https://qknou.kr"},
		CORSOriginsDev:  []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// FromEnv builds the config from defaults and the environment only.
func FromEnv() Config {
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

// Load reads the YAML file at path (CONFIG_FILE when path is empty, skipped
// when both are empty) and then applies the environment on top.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDur := func(dst *time.Duration, key, v string) error {
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	if fc.Mode != "" {
		cfg.Mode = Mode(fc.Mode)
	}
	setStr(&cfg.HTTPAddr, fc.HTTPAddr)
	setStr(&cfg.LogMode, fc.LogMode)
	setStr(&cfg.APIBaseURL, fc.APIBaseURL)
	setStr(&cfg.DBDriver, fc.DBDriver)
	setStr(&cfg.DBDSN, fc.DBDSN)
	setStr(&cfg.RedisAddr, fc.RedisAddr)
	setStr(&cfg.RedisPassword, fc.RedisPassword)
	setStr(&cfg.AuthHMACSecret, fc.AuthHMACSecret)
	if fc.RedisDB != 0 {
		cfg.RedisDB = fc.RedisDB
	}
	if fc.ExamDurationSec > 0 {
		cfg.ExamDuration = time.Duration(fc.ExamDurationSec) * time.Second
	}
	if len(fc.CORSOriginsProd) > 0 {
		cfg.CORSOriginsProd = fc.CORSOriginsProd
	}
	if len(fc.CORSOriginsDev) > 0 {
		cfg.CORSOriginsDev = fc.CORSOriginsDev
	}
	if err := setDur(&cfg.APITimeout, "api_timeout", fc.APITimeout); err != nil {
		return err
	}
	if err := setDur(&cfg.TabIdleTTL, "tab_idle_ttl", fc.TabIdleTTL); err != nil {
		return err
	}
	return setDur(&cfg.CacheTTL, "cache_ttl", fc.CacheTTL)
}

func applyEnv(cfg *Config) {
	cfg.Mode = Mode(envOr("MODE", string(cfg.Mode)))
	cfg.HTTPAddr = envOr("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogMode = envOr("LOG_MODE", cfg.LogMode)
	cfg.APIBaseURL = envOr("API_BASE_URL", cfg.APIBaseURL)
	cfg.APITimeout = envDuration("API_TIMEOUT", cfg.APITimeout)
	cfg.ExamDuration = time.Duration(envInt("EXAM_DURATION_SEC", int(cfg.ExamDuration/time.Second))) * time.Second
	cfg.TabIdleTTL = envDuration("TAB_IDLE_TTL", cfg.TabIdleTTL)
	cfg.DBDriver = envOr("DB_DRIVER", cfg.DBDriver)
	cfg.DBDSN = envOr("DB_DSN", cfg.DBDSN)
	cfg.RedisAddr = envOr("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.CacheTTL = envDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.AuthHMACSecret = envOr("AUTH_HMAC_SECRET", cfg.AuthHMACSecret)
	cfg.CORSOriginsProd = csvOr("CORS_ORIGINS_PROD", cfg.CORSOriginsProd)
	cfg.CORSOriginsDev = csvOr("CORS_ORIGINS_DEV", cfg.CORSOriginsDev)
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
