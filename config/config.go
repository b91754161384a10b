package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix é o prefixo das variáveis de ambiente que sobrescrevem o arquivo
const EnvPrefix = "SENDMYFILES"

// Config representa a configuração do sistema
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig representa a configuração do banco de dados
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // "sqlite" ou "postgres"
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // Para SQLite
}

// SMTPConfig representa a configuração de envio de notificações.
// Com Host vazio as notificações são apenas registradas no log.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	TLSMode  string        `mapstructure:"tls_mode"` // "starttls", "implicit" ou "none"
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig representa a configuração do armazenamento de objetos
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // "minio", "jetstream" ou "filesystem"
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	LocalPath string `mapstructure:"local_path"`
	NATSURL   string `mapstructure:"nats_url"`
}

// TransferConfig representa as regras de negócio das transferências
type TransferConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	FreeQuotaBytes   int64         `mapstructure:"free_quota_bytes"`
	LinkTTL          time.Duration `mapstructure:"link_ttl"`
	PresignTTL       time.Duration `mapstructure:"presign_ttl"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes"`
	TokenAttempts    int           `mapstructure:"token_attempts"`
}

// HTTPConfig representa a configuração do servidor HTTP
type HTTPConfig struct {
	Address        string        `mapstructure:"address"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// RateLimitConfig representa o limite de downloads por cliente
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Requests  int           `mapstructure:"requests"`
	Window    time.Duration `mapstructure:"window"`
}

// LogConfig representa a configuração de logs
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "sendmyfiles")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/sendmyfiles.db")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.tls_mode", "starttls")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.timeout", 30*time.Second)

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "sendmyfiles")
	v.SetDefault("storage.local_path", "data/uploads")
	v.SetDefault("storage.nats_url", "nats://localhost:4222")

	v.SetDefault("transfer.base_url", "http://localhost:8080")
	v.SetDefault("transfer.free_quota_bytes", 50*1024*1024)
	v.SetDefault("transfer.link_ttl", 7*24*time.Hour)
	v.SetDefault("transfer.presign_ttl", time.Hour)
	v.SetDefault("transfer.operation_timeout", 30*time.Second)
	v.SetDefault("transfer.max_upload_bytes", 0)
	v.SetDefault("transfer.token_attempts", 3)

	v.SetDefault("http.address", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", 5*time.Minute)
	v.SetDefault("http.write_timeout", 5*time.Minute)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.redis_addr", "localhost:6379")
	v.SetDefault("ratelimit.requests", 30)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig carrega configurações do arquivo config.yaml e das variáveis de ambiente.
// Sem caminho explícito, um config.yaml ausente no diretório atual não é erro.
func LoadConfig(configPath string) (*Config, error) {
	optional := false
	if configPath == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
		optional = true
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("erro ao ler arquivo de configuração: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("erro ao processar configuração: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifica combinações inválidas de configuração
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("tipo de banco de dados não suportado: %s", c.Database.Type)
	}

	switch c.Storage.Backend {
	case "minio", "jetstream", "filesystem":
	default:
		return fmt.Errorf("backend de armazenamento não suportado: %s", c.Storage.Backend)
	}

	switch c.SMTP.TLSMode {
	case "starttls", "implicit", "none":
	default:
		return fmt.Errorf("modo TLS do SMTP não suportado: %s", c.SMTP.TLSMode)
	}

	if c.Transfer.FreeQuotaBytes <= 0 {
		return fmt.Errorf("transfer.free_quota_bytes deve ser positivo")
	}
	if c.Transfer.LinkTTL <= 0 {
		return fmt.Errorf("transfer.link_ttl deve ser positivo")
	}
	if c.Transfer.BaseURL == "" {
		return fmt.Errorf("transfer.base_url é obrigatório")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("ratelimit.requests e ratelimit.window devem ser positivos")
	}

	return nil
}
