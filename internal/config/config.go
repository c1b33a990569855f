// Package config 讀取 yaml 設定檔並補上預設值。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath 預設設定檔路徑
	DefaultPath = "config/config.yaml"

	// EnvConfigPath 覆寫設定檔路徑
	EnvConfigPath = "LEDGER_CONFIG"
	// EnvJWTSecret 覆寫 auth.jwt_secret
	EnvJWTSecret = "LEDGER_JWT_SECRET"
)

// EngineType 帳戶儲存實作
type EngineType string

const (
	// EngineMutex 每個帳戶一把鎖
	EngineMutex EngineType = "mutex"
	// EngineLMAX 單一 goroutine 處理所有請求
	EngineLMAX EngineType = "lmax"
)

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	Auth    AuthConfig    `yaml:"auth"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
	// Reflection 方便 grpcurl 等工具列出服務
	Reflection bool `yaml:"reflection"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

type LedgerConfig struct {
	Engine     EngineType `yaml:"engine"`
	LMAXBuffer int        `yaml:"lmax_buffer"`
}

type JournalConfig struct {
	// Path 空字串代表不寫 journal
	Path string `yaml:"path"`
	// NoSync 不在每筆寫入後 fsync
	NoSync bool `yaml:"no_sync"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load 讀取設定檔
// path 為空字串時依序使用環境變數 LEDGER_CONFIG 與 DefaultPath
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 yaml 內容，補上預設值、套用環境變數後檢查
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if secret := os.Getenv(EnvJWTSecret); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Ledger.Engine == "" {
		c.Ledger.Engine = EngineMutex
	}
	if c.Ledger.LMAXBuffer == 0 {
		c.Ledger.LMAXBuffer = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 檢查必要欄位
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required (or set %s)", EnvJWTSecret))
	}
	if c.Auth.TokenTTL < 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.BcryptCost < 0 {
		errs = append(errs, errors.New("auth.bcrypt_cost must not be negative"))
	}
	switch c.Ledger.Engine {
	case EngineMutex, EngineLMAX:
	default:
		errs = append(errs, fmt.Errorf("ledger.engine must be %q or %q, got %q", EngineMutex, EngineLMAX, c.Ledger.Engine))
	}
	if c.Ledger.LMAXBuffer < 0 {
		errs = append(errs, errors.New("ledger.lmax_buffer must not be negative"))
	}
	return errors.Join(errs...)
}
