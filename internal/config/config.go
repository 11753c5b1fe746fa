// Package config загружает конфигурацию сервисов Sequencer.
//
// Источники в порядке приоритета:
//   - переменные окружения SEQUENCER_* (точка в ключе заменяется на "_")
//   - прежние имена переменных (DB_URL, RABBITMQ_URL, API_PORT, LOG_LEVEL, LOG_FORMAT)
//   - файл конфигурации (yaml, json или toml)
//   - значения по умолчанию
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid config")

// Config — конфигурация всех сервисов.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	LLM      LLMConfig      `mapstructure:"llm"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// LogConfig — параметры логирования.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig — HTTP сервер sequencer-api.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr возвращает адрес для http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

func (s ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%w: server.port must be in 1..65535, got %d", ErrInvalidConfig, s.Port)
	}
	return nil
}

// DatabaseConfig — PostgreSQL для истории runs.
type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// Enabled возвращает true, если БД настроена.
func (d DatabaseConfig) Enabled() bool { return strings.TrimSpace(d.URL) != "" }

// RabbitMQConfig — брокер для асинхронного выполнения.
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// Enabled возвращает true, если брокер настроен.
func (r RabbitMQConfig) Enabled() bool { return strings.TrimSpace(r.URL) != "" }

// LLM провайдеры.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// LLMConfig — языковая модель для планировщика и резюме.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled возвращает true, если провайдер выбран.
func (l LLMConfig) Enabled() bool {
	return l.Provider != "" && l.Provider != ProviderNone
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "", ProviderNone:
		return nil
	case ProviderOllama:
		if l.Model == "" {
			return fmt.Errorf("%w: llm.model is required for ollama", ErrInvalidConfig)
		}
	case ProviderOpenAI:
		if l.APIKey == "" {
			return fmt.Errorf("%w: llm.api_key is required for openai", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalidConfig, l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be in 0..2", ErrInvalidConfig)
	}
	return nil
}

// SMTPConfig — отправка писем функцией send_email.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled возвращает true, если SMTP настроен. Иначе письма только логируются.
func (s SMTPConfig) Enabled() bool { return strings.TrimSpace(s.Host) != "" }

func (s SMTPConfig) Validate() error {
	if !s.Enabled() {
		return nil
	}
	if s.Port <= 0 {
		return fmt.Errorf("%w: smtp.port must be > 0", ErrInvalidConfig)
	}
	if s.From == "" {
		return fmt.Errorf("%w: smtp.from is required", ErrInvalidConfig)
	}
	return nil
}

// Хранилища файлов.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// StorageConfig — хранилище для save_to_file, read_from_file, download_file.
type StorageConfig struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config — S3-совместимое хранилище (MinIO).
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case StorageLocal:
		if strings.TrimSpace(s.Dir) == "" {
			return fmt.Errorf("%w: storage.dir is required for local storage", ErrInvalidConfig)
		}
	case StorageS3:
		if s.S3.Endpoint == "" || s.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.endpoint and storage.s3.bucket are required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, s.Backend)
	}
	return nil
}

// LimitsConfig — ограничения выполнения.
type LimitsConfig struct {
	// RequestsPerSecond и Burst ограничивают запросы к /api/v1/query/*.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`

	// ExecutionTimeout — таймаут выполнения одного плана. 0 — без таймаута.
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`

	// MaxSteps — максимальное число шагов в плане. 0 — без ограничения.
	MaxSteps int `mapstructure:"max_steps"`

	// HTTPTimeout — таймаут исходящих HTTP запросов функций.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// MaxDownloadBytes — максимальный размер скачиваемого файла.
	MaxDownloadBytes int64 `mapstructure:"max_download_bytes"`
}

func (l LimitsConfig) Validate() error {
	if l.RequestsPerSecond < 0 || l.Burst < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	if l.RequestsPerSecond > 0 && l.Burst == 0 {
		return fmt.Errorf("%w: limits.burst must be > 0 when rate limiting is enabled", ErrInvalidConfig)
	}
	if l.MaxSteps < 0 || l.MaxDownloadBytes < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// WorkerConfig — параметры sequencer-worker.
type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	Concurrency  int           `mapstructure:"concurrency"`
}

func (w WorkerConfig) Validate() error {
	if w.Concurrency <= 0 {
		return fmt.Errorf("%w: worker.concurrency must be > 0", ErrInvalidConfig)
	}
	if w.BatchSize <= 0 {
		return fmt.Errorf("%w: worker.batch_size must be > 0", ErrInvalidConfig)
	}
	return nil
}

// Validate проверяет всю конфигурацию.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.Server, c.LLM, c.SMTP, c.Storage, c.Limits, c.Worker,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// legacyEnv — прежние имена переменных окружения.
var legacyEnv = map[string]string{
	"database.url": "DB_URL",
	"rabbitmq.url": "RABBITMQ_URL",
	"server.port":  "API_PORT",
	"log.level":    "LOG_LEVEL",
	"log.format":   "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("rabbitmq.url", "")

	v.SetDefault("llm.provider", ProviderNone)
	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")

	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.bucket", "sequencer")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.use_ssl", false)

	v.SetDefault("limits.requests_per_second", 2.0)
	v.SetDefault("limits.burst", 5)
	v.SetDefault("limits.execution_timeout", 5*time.Minute)
	v.SetDefault("limits.max_steps", 50)
	v.SetDefault("limits.http_timeout", 15*time.Second)
	v.SetDefault("limits.max_download_bytes", int64(20<<20))

	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.concurrency", 4)
}

// Load загружает конфигурацию.
//
// Если path пустой, файл sequencer.{yaml,json,toml} ищется в текущей
// директории и в ./config; отсутствие файла не является ошибкой.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("sequencer")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SEQUENCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		// Явная привязка отключает префикс, поэтому имя с префиксом указываем сами
		envName := "SEQUENCER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
