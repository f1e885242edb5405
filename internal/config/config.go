// Package config loads CineFree settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"cinefree.yaml",
	"cinefree.yml",
	"/etc/cinefree/config.yaml",
}

// MinSecretLength is the shortest accepted token signing secret.
const MinSecretLength = 16

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Auth     AuthConfig     `koanf:"auth"`
	Security SecurityConfig `koanf:"security"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Logging  LoggingConfig  `koanf:"logging"`
	Web      WebConfig      `koanf:"web"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type StorageConfig struct {
	DataFile       string `koanf:"data_file"`
	UploadDir      string `koanf:"upload_dir"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
	SeedDemo       bool   `koanf:"seed_demo"`
}

type AuthConfig struct {
	AdminUsername string        `koanf:"admin_username"`
	AdminPassword string        `koanf:"admin_password"`
	Secret        string        `koanf:"secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
}

type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	LoginRateLimit  int           `koanf:"login_rate_limit"`
	LoginRateWindow time.Duration `koanf:"login_rate_window"`
}

// CatalogConfig restricts accepted genres; an empty list accepts free text.
type CatalogConfig struct {
	AllowedGenres []string `koanf:"allowed_genres"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// WebConfig configures the UI host. APIURL is how the UI process reaches the
// API; PublicAPIURL is how browsers reach it for video playback.
type WebConfig struct {
	Port         int    `koanf:"port"`
	APIURL       string `koanf:"api_url"`
	PublicAPIURL string `koanf:"public_api_url"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            3001,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			DataFile:       "data/movies.json",
			UploadDir:      "data/uploads",
			MaxUploadBytes: 512 << 20,
			SeedDemo:       false,
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
			TokenTTL:      12 * time.Hour,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Web: WebConfig{
			Port:   8081,
			APIURL: "http://localhost:3001",
		},
	}
}

// Load builds the configuration: defaults, then the config file if one is
// found, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Web.PublicAPIURL == "" {
		cfg.Web.PublicAPIURL = cfg.Web.APIURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings shared by every binary.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port %d out of range", c.Web.Port))
	}
	if strings.TrimSpace(c.Storage.DataFile) == "" {
		errs = append(errs, errors.New("storage.data_file is required"))
	}
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		errs = append(errs, errors.New("storage.upload_dir is required"))
	}
	if err := c.checkUploadDir(); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("storage.max_upload_bytes must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// checkUploadDir rejects an upload dir that holds the catalog file, which
// would be served publicly and look like an orphaned upload.
func (c *Config) checkUploadDir() error {
	if strings.TrimSpace(c.Storage.DataFile) == "" || strings.TrimSpace(c.Storage.UploadDir) == "" {
		return nil
	}
	dir, err := filepath.Abs(c.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("storage.upload_dir: %w", err)
	}
	data, err := filepath.Abs(c.Storage.DataFile)
	if err != nil {
		return fmt.Errorf("storage.data_file: %w", err)
	}
	rel, err := filepath.Rel(dir, data)
	if err != nil {
		return nil
	}
	if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("storage.data_file %s must not be inside storage.upload_dir %s", c.Storage.DataFile, c.Storage.UploadDir)
	}
	return nil
}

// ValidateAPI checks the settings only the API server needs.
func (c *Config) ValidateAPI() error {
	var errs []error
	if strings.TrimSpace(c.Auth.AdminUsername) == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME is required"))
	}
	if c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required"))
	}
	if len(c.Auth.Secret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("APP_SECRET must be at least %d bytes", MinSecretLength))
	}
	return errors.Join(errs...)
}

// Addr is the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// WebAddr is the UI host listen address.
func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Web.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"catalog.allowed_genres",
}

// processSliceFields splits comma separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"port":              "server.port",
	"api_port":          "server.port",
	"host":              "server.host",
	"shutdown_timeout":  "server.shutdown_timeout",
	"data_file":         "storage.data_file",
	"upload_dir":        "storage.upload_dir",
	"max_upload_bytes":  "storage.max_upload_bytes",
	"seed_demo":         "storage.seed_demo",
	"admin_username":    "auth.admin_username",
	"admin_password":    "auth.admin_password",
	"app_secret":        "auth.secret",
	"token_ttl":         "auth.token_ttl",
	"cors_origins":      "security.cors_origins",
	"login_rate_limit":  "security.login_rate_limit",
	"login_rate_window": "security.login_rate_window",
	"allowed_genres":    "catalog.allowed_genres",
	"log_level":         "logging.level",
	"log_format":        "logging.format",
	"web_port":          "web.port",
	"api_url":           "web.api_url",
	"public_api_url":    "web.public_api_url",
}

// envTransformFunc maps known environment variables to config paths and
// drops everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
