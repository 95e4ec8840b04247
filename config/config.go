package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/karloscodes/httpwire/multipart"
)

// Environment constants.
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// Config provides common configuration for httpwire applications.
// Apps can embed this struct and add their own fields.
type Config struct {
	// AppName is the application name, used for the env var prefix and log file name.
	AppName string `mapstructure:"appname"`

	// Environment: development, production, or test.
	Environment string `mapstructure:"environment"`

	// Port for the HTTP server.
	Port string `mapstructure:"port"`

	// Debug enables debug mode.
	Debug bool `mapstructure:"debug"`

	// Logging configuration.
	LogLevel       string `mapstructure:"loglevel"`
	LogsDirectory  string `mapstructure:"logsdirectory"`
	LogsMaxSizeMB  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeDays int    `mapstructure:"logsmaxageindays"`

	// Server timeouts and request body cap.
	ReadTimeoutSeconds     int `mapstructure:"readtimeoutseconds"`
	WriteTimeoutSeconds    int `mapstructure:"writetimeoutseconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdowntimeoutseconds"`
	BodyLimitBytes         int `mapstructure:"bodylimitbytes"`

	// Multipart upload limits.
	UploadMaxMemory       int64  `mapstructure:"uploadmaxmemory"`
	UploadMaxFileSize     int64  `mapstructure:"uploadmaxfilesize"`
	UploadMaxFields       int    `mapstructure:"uploadmaxfields"`
	UploadMaxHeaderLength int    `mapstructure:"uploadmaxheaderlength"`
	UploadMaxHeaders      int    `mapstructure:"uploadmaxheaders"`
	UploadTempDir         string `mapstructure:"uploadtempdir"`

	// Internal: the env var prefix (derived from AppName).
	envPrefix string
}

// Load creates a new Config for the given app name.
// It reads from environment variables prefixed with the uppercase app name.
// Example: Load("uploads") reads UPLOADS_ENV, UPLOADS_PORT, UPLOADS_UPLOAD_MAX_MEMORY, etc.
func Load(appName string) (*Config, error) {
	v := viper.New()

	// Normalize app name
	appName = strings.ToLower(strings.TrimSpace(appName))
	if appName == "" {
		appName = "app"
	}
	prefix := strings.ToUpper(appName)

	// Read .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	setDefaults(v, appName)

	v.SetEnvPrefix(prefix)
	bindEnvVars(v, prefix)

	cfg := &Config{envPrefix: prefix}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ensureDirectories()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, appName string) {
	v.SetDefault("appname", appName)
	v.SetDefault("environment", Production)
	v.SetDefault("port", "8080")
	v.SetDefault("debug", false)

	v.SetDefault("loglevel", "error")
	v.SetDefault("logsdirectory", "storage/logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)

	v.SetDefault("readtimeoutseconds", 10)
	v.SetDefault("writetimeoutseconds", 10)
	v.SetDefault("shutdowntimeoutseconds", 10)
	v.SetDefault("bodylimitbytes", 64<<20)

	v.SetDefault("uploadmaxmemory", multipart.DefaultMaxMemory)
	v.SetDefault("uploadmaxfilesize", multipart.DefaultMaxFileSize)
	v.SetDefault("uploadmaxfields", multipart.DefaultMaxFieldsCount)
	v.SetDefault("uploadmaxheaderlength", multipart.DefaultMaxHeaderLength)
	v.SetDefault("uploadmaxheaders", multipart.DefaultMaxHeadersCount)
	v.SetDefault("uploadtempdir", os.TempDir())
}

func bindEnvVars(v *viper.Viper, prefix string) {
	// Core env vars: {PREFIX}_ENV, {PREFIX}_PORT, etc.
	v.BindEnv("environment", prefix+"_ENV")
	v.BindEnv("port", prefix+"_PORT")
	v.BindEnv("loglevel", prefix+"_LOG_LEVEL")
	v.BindEnv("logsdirectory", prefix+"_LOGS_DIR")
	v.BindEnv("debug", prefix+"_DEBUG")
	v.BindEnv("bodylimitbytes", prefix+"_BODY_LIMIT")

	v.BindEnv("uploadmaxmemory", prefix+"_UPLOAD_MAX_MEMORY")
	v.BindEnv("uploadmaxfilesize", prefix+"_UPLOAD_MAX_FILE_SIZE")
	v.BindEnv("uploadmaxfields", prefix+"_UPLOAD_MAX_FIELDS")
	v.BindEnv("uploadmaxheaderlength", prefix+"_UPLOAD_MAX_HEADER_LENGTH")
	v.BindEnv("uploadmaxheaders", prefix+"_UPLOAD_MAX_HEADERS")
	v.BindEnv("uploadtempdir", prefix+"_UPLOAD_TEMP_DIR")
}

func (c *Config) validate() error {
	var problems []string

	// Adjust log level for development
	if c.LogLevel == "" || c.LogLevel == "error" {
		if c.IsDevelopment() || c.IsTest() {
			c.LogLevel = "info"
		}
	}

	switch c.Environment {
	case Development, Production, Test:
	default:
		problems = append(problems, fmt.Sprintf("invalid %s_ENV value %q", c.envPrefix, c.Environment))
	}

	if c.UploadMaxMemory < 0 {
		problems = append(problems, fmt.Sprintf("%s_UPLOAD_MAX_MEMORY must not be negative", c.envPrefix))
	}
	if c.UploadMaxFileSize < 0 {
		problems = append(problems, fmt.Sprintf("%s_UPLOAD_MAX_FILE_SIZE must not be negative", c.envPrefix))
	}
	if c.UploadMaxFields < 0 {
		problems = append(problems, fmt.Sprintf("%s_UPLOAD_MAX_FIELDS must not be negative", c.envPrefix))
	}
	if c.UploadMaxHeaderLength < 0 || c.UploadMaxHeaders < 0 {
		problems = append(problems, "upload header limits must not be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) ensureDirectories() {
	dirs := []string{c.LogsDirectory, c.UploadTempDir}
	for _, dir := range dirs {
		if dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Printf("config: failed to create directory %q: %v", dir, err)
			}
		}
	}
}

// Environment checks.

func (c *Config) IsDevelopment() bool { return c.Environment == Development }
func (c *Config) IsProduction() bool  { return c.Environment == Production }
func (c *Config) IsTest() bool        { return c.Environment == Test }

// httpwire interface implementations.

func (c *Config) GetPort() string { return c.Port }

// LogConfigProvider implementation.

func (c *Config) GetLogLevel() string     { return c.LogLevel }
func (c *Config) GetLogDirectory() string { return c.LogsDirectory }
func (c *Config) GetLogMaxSizeMB() int    { return c.LogsMaxSizeMB }
func (c *Config) GetLogMaxBackups() int   { return c.LogsMaxBackups }
func (c *Config) GetLogMaxAgeDays() int   { return c.LogsMaxAgeDays }
func (c *Config) GetAppName() string      { return c.AppName }

// Server settings.

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// UploadLimits returns the multipart limits configured for form parsing.
func (c *Config) UploadLimits() multipart.Limits {
	return multipart.Limits{
		MaxMemory:         c.UploadMaxMemory,
		MaxFileUploadSize: c.UploadMaxFileSize,
		MaxFieldsCount:    c.UploadMaxFields,
		MaxHeaderLength:   c.UploadMaxHeaderLength,
		MaxHeadersCount:   c.UploadMaxHeaders,
	}
}

// GetUploadTempDir returns the directory large uploads are spooled to.
func (c *Config) GetUploadTempDir() string { return c.UploadTempDir }
