package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса схематик
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	RESTPort     int `yaml:"rest_port"`
	MetricsPort  int `yaml:"metrics_port"`
	MaxVolumeDim int `yaml:"max_volume_dim"`
}

type LoggingConfig struct {
	Component string `yaml:"component"`
	Level     string `yaml:"level"`
	ToFile    bool   `yaml:"to_file"`
}

// StorageConfig — хранилище закодированных схематик
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory | badger | file
	Path    string `yaml:"path"`
}

// CatalogConfig — индекс схематик для поиска
type CatalogConfig struct {
	Backend  string `yaml:"backend"` // memory | maria | mongo
	DSN      string `yaml:"dsn"`
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl_seconds"`
	NATSURL  string `yaml:"nats_url"`
}

type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | jetstream
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type AuthConfig struct {
	Secret        string `yaml:"secret"`
	TokenTTL      int    `yaml:"token_ttl_minutes"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKVERSE_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BLOCKVERSE_METRICS_PORT", 2112)
}

// TTLDuration возвращает время жизни записей кэша
func (c *CacheConfig) TTLDuration() time.Duration {
	if c.TTL <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TTL) * time.Second
}

// TokenDuration возвращает время жизни JWT
func (a *AuthConfig) TokenDuration() time.Duration {
	if a.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.TokenTTL) * time.Minute
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Default возвращает конфигурацию, работающую без внешних сервисов
func Default() *Config {
	return &Config{
		Server:  ServerConfig{MaxVolumeDim: 256},
		Logging: LoggingConfig{Component: "server", Level: "info"},
		Storage: StorageConfig{Backend: "memory", Path: "data/schematics"},
		Catalog: CatalogConfig{Backend: "memory", Database: "blockverse"},
		Cache:   CacheConfig{Addr: "localhost:6379"},
		EventBus: EventBusConfig{
			Backend:   "memory",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "BLOCKVERSE_EVENTS",
			Retention: 72,
		},
		Telemetry: TelemetryConfig{ServiceName: "blockverse", Endpoint: "localhost:4318"},
		Auth: AuthConfig{
			Secret:    "change-me",
			AdminUser: "admin",
		},
	}
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", берётся ENV BLOCKVERSE_CONFIG; без него возвращаются дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("BLOCKVERSE_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить дефолтом
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "badger", "file":
	default:
		return fmt.Errorf("storage.backend: неизвестный backend %q", c.Storage.Backend)
	}
	switch c.Catalog.Backend {
	case "memory":
	case "maria":
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn обязателен для maria")
		}
	case "mongo":
		if c.Catalog.MongoURI == "" {
			return fmt.Errorf("catalog.mongo_uri обязателен для mongo")
		}
	default:
		return fmt.Errorf("catalog.backend: неизвестный backend %q", c.Catalog.Backend)
	}
	switch c.EventBus.Backend {
	case "memory", "jetstream":
	default:
		return fmt.Errorf("eventbus.backend: неизвестный backend %q", c.EventBus.Backend)
	}
	if c.Server.MaxVolumeDim <= 0 {
		return fmt.Errorf("server.max_volume_dim должен быть больше 0")
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sample_ratio должен быть в [0, 1], получено %v", r)
	}
	return nil
}
