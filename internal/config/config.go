// Package config loads the service configuration from YAML over struct-tag
// defaults, with storage secrets taken from the environment.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/locs-review/internal/blob"
)

// Environment variables holding the S3 credentials. They never live in the
// YAML file.
const (
	EnvAccessKey = "LOCS_S3_ACCESS_KEY_ID"
	EnvSecretKey = "LOCS_S3_SECRET_ACCESS_KEY"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"locs.db"`
}

type StorageConfig struct {
	Driver          string `yaml:"driver" default:"file"`
	Bucket          string `yaml:"bucket" default:""`
	Endpoint        string `yaml:"endpoint" default:""`
	Region          string `yaml:"region" default:"auto"`
	PublicBaseURL   string `yaml:"public_base_url" default:""`
	PendingPrefix   string `yaml:"pending_prefix" default:"not_approved"`
	PublishedPrefix string `yaml:"published_prefix" default:"image"`
	Extension       string `yaml:"extension" default:".jpg"`
	BaseDir         string `yaml:"base_dir" default:"data/blobs"`

	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

func (s StorageConfig) Layout() blob.Layout {
	return blob.Layout{
		PendingPrefix:   s.PendingPrefix,
		PublishedPrefix: s.PublishedPrefix,
		Extension:       s.Extension,
	}
}

func (s StorageConfig) Blob() blob.Config {
	return blob.Config{
		Driver:        s.Driver,
		Bucket:        s.Bucket,
		Region:        s.Region,
		Endpoint:      s.Endpoint,
		AccessKey:     s.AccessKey,
		SecretKey:     s.SecretKey,
		BaseDir:       s.BaseDir,
		PublicBaseURL: s.PublicBaseURL,
	}
}

type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	File       string `yaml:"file" default:""`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
	MaxBackups int    `yaml:"max_backups" default:"3"`
}

var AppConfig *Config

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads path over the defaults and stores the result in AppConfig.
// A missing file is not an error.
func LoadConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Storage.AccessKey = os.Getenv(EnvAccessKey)
	config.Storage.SecretKey = os.Getenv(EnvSecretKey)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level %q: %w", c.Logging.Level, err)
	}
	if err := blob.Validate(c.Storage.Blob()); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}

// Example renders the default configuration as commented YAML.
func Example() ([]byte, error) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	header := "# locs-review configuration example\n" +
		"# Copy this file to config.yaml and customize as needed.\n" +
		"# S3 credentials are read from " + EnvAccessKey + " and " + EnvSecretKey + ".\n\n"
	return append([]byte(header), data...), nil
}
