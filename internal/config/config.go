package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Name         string `yaml:"name"`
	Region       string `yaml:"region"`
	Host         string `yaml:"host"`
	TCPPort      int    `yaml:"tcp_port"`
	KCPPort      int    `yaml:"kcp_port"`
	EnableKCP    bool   `yaml:"enable_kcp"`
	RESTPort     int    `yaml:"rest_port"`
	MetricsPort  int    `yaml:"metrics_port"`
	HealthPort   int    `yaml:"health_port"`
	MaxPlayers   int    `yaml:"max_players"`
	TickRate     int    `yaml:"tick_rate"`
	WriteTimeout int    `yaml:"write_timeout_ms"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
}

type StorageConfig struct {
	// Backend: memory | redis | badger | maria
	Backend        string      `yaml:"backend"`
	BadgerPath     string      `yaml:"badger_path"`
	Redis          RedisConfig `yaml:"redis"`
	Maria          MariaConfig `yaml:"maria"`
	SaveEvery      int         `yaml:"save_every_seconds"`
	SaveBatchLimit int         `yaml:"save_batch_limit"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MariaConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type AuthConfig struct {
	// Backend: memory | mongo | maria
	Backend      string      `yaml:"backend"`
	JWTSecret    string      `yaml:"jwt_secret"`
	AutoRegister bool        `yaml:"auto_register"`
	MongoURI     string      `yaml:"mongo_uri"`
	MongoDB      string      `yaml:"mongo_database"`
	Maria        MariaConfig `yaml:"maria"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Endpoint host:port OTLP/HTTP коллектора, пусто - localhost:4318
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:         "World of Eldara Server",
			Region:       "NA-EAST",
			Host:         "0.0.0.0",
			MaxPlayers:   5000,
			TickRate:     20,
			WriteTimeout: 5000,
			IdleTimeout:  120,
		},
		Storage: StorageConfig{
			Backend:        "memory",
			BadgerPath:     "data/characters",
			Redis:          RedisConfig{Addr: "localhost:6379"},
			SaveEvery:      30,
			SaveBatchLimit: 256,
		},
		Auth: AuthConfig{
			Backend:      "memory",
			AutoRegister: true,
			MongoDB:      "eldara",
		},
		EventBus: EventBusConfig{
			Stream:    "ELDARA_EVENTS",
			Retention: 24,
			Capacity:  1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "eldara-server",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
	}
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "ELDARA_TCP_PORT", 7777)
}

// GetKCPPort возвращает порт KCP (UDP) с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "ELDARA_KCP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "ELDARA_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "ELDARA_METRICS_PORT", 2112)
}

// GetHealthPort возвращает порт gRPC health-check сервиса
func (s *ServerConfig) GetHealthPort() int {
	return getPortWithEnvFallback(s.HealthPort, "ELDARA_HEALTH_PORT", 7779)
}

// TickInterval возвращает длительность одного тика симуляции
func (s *ServerConfig) TickInterval() time.Duration {
	rate := s.TickRate
	if rate <= 0 {
		rate = 20
	}
	return time.Second / time.Duration(rate)
}

// WriteDeadline возвращает таймаут записи в соединение
func (s *ServerConfig) WriteDeadline() time.Duration {
	if s.WriteTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.WriteTimeout) * time.Millisecond
}

// IdleDeadline возвращает таймаут простоя соединения
func (s *ServerConfig) IdleDeadline() time.Duration {
	if s.IdleTimeout <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.IdleTimeout) * time.Second
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, без которых сервер не может стартовать.
func (c *Config) Validate() error {
	var errs []error

	if port := c.Server.GetTCPPort(); port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.tcp_port out of range: %d", port))
	}
	if c.Server.EnableKCP {
		if port := c.Server.GetKCPPort(); port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("server.kcp_port out of range: %d", port))
		}
	}
	if c.Server.MaxPlayers <= 0 {
		errs = append(errs, fmt.Errorf("server.max_players must be positive: %d", c.Server.MaxPlayers))
	}
	if c.Server.TickRate < 1 || c.Server.TickRate > 120 {
		errs = append(errs, fmt.Errorf("server.tick_rate must be within 1..120: %d", c.Server.TickRate))
	}

	switch c.Storage.Backend {
	case "memory", "redis", "badger", "maria":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	switch c.Auth.Backend {
	case "memory", "mongo", "maria":
	default:
		errs = append(errs, fmt.Errorf("unknown auth.backend %q", c.Auth.Backend))
	}

	return errors.Join(errs...)
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV ELDARA_CONFIG,
// а без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("ELDARA_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
