package config

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

const (
	// EnvPrefix is the prefix for all environment variables
	EnvPrefix = "DPB_"
	// EnvStoragePrefix is the prefix for storage pool environment variables
	EnvStoragePrefix = EnvPrefix + "STORAGE_"
	// EnvNotifyPrefix is the prefix for notification provider environment variables
	EnvNotifyPrefix = EnvPrefix + "NOTIFY_"
)

// Placeholders understood in BackupLocation and FileTemplate
const (
	PlaceholderContainer = "{container}"
	PlaceholderDBName    = "{db_name}"
)

// Supported archive compressions
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Config holds the global application configuration
type Config struct {
	// Docker settings
	DockerHost  string   `yaml:"docker_host"`
	DBImageName string   `yaml:"db_image_name"`
	Containers  []string `yaml:"containers"`

	// Database settings
	DBNames []string `yaml:"db_names"`
	DBUser  string   `yaml:"db_user"`
	DBPass  string   `yaml:"db_pass"`
	DBHost  string   `yaml:"db_host"`

	// Archive layout
	BackupLocation string `yaml:"backup_location"`
	FileTemplate   string `yaml:"file_template"`
	Compression    string `yaml:"compression"`

	// Rotation settings
	Rotation   bool `yaml:"rotation"`
	DryRun     bool `yaml:"dry_run"`
	Diagnostic bool `yaml:"diagnostic"`

	// Daemon settings
	Schedule    string `yaml:"schedule"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Storage settings
	DefaultStorage string                  `yaml:"default_storage"`
	StorageArgs    []string                `yaml:"-"`
	StoragePools   map[string]*StoragePool `yaml:"storage"`

	// Notification settings
	NotifyArgs    []string                 `yaml:"-"`
	NotifyConfigs map[string]*NotifyConfig `yaml:"notify"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StoragePool represents a named storage pool configuration
type StoragePool struct {
	Name    string
	Type    string
	Options map[string]string
}

// NotifyConfig represents a named notification provider configuration
type NotifyConfig struct {
	Name    string
	Type    string
	Options map[string]string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		DockerHost:     "unix:///var/run/docker.sock",
		DBImageName:    "postgres",
		DBNames:        []string{"postgres"},
		DBUser:         "postgres",
		BackupLocation: PlaceholderContainer,
		FileTemplate:   "%Y/%m/%d_%H.%M.%S_" + PlaceholderDBName + ".tar",
		Compression:    CompressionNone,
		Rotation:       true,
		Schedule:       "0 * * * *",
		LogLevel:       "info",
		LogFormat:      "text",
		StoragePools:   make(map[string]*StoragePool),
		NotifyConfigs:  make(map[string]*NotifyConfig),
	}
}

// Validate checks settings that can be verified without external resources
func (c *Config) Validate() error {
	if len(c.DBNames) == 0 {
		return fmt.Errorf("at least one database name is required")
	}
	for _, name := range c.DBNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("database names must not be empty")
		}
	}

	if c.BackupLocation == "" {
		return fmt.Errorf("backup location must not be empty")
	}
	if c.FileTemplate == "" {
		return fmt.Errorf("file template must not be empty")
	}

	if !slices.Contains([]string{CompressionNone, CompressionZstd}, c.Compression) {
		return fmt.Errorf("unknown compression %q (expected %s or %s)", c.Compression, CompressionNone, CompressionZstd)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	if len(c.StoragePools) == 0 {
		return fmt.Errorf("no storage pools configured, use --storage or %s<POOL>_TYPE to configure at least one", EnvStoragePrefix)
	}

	return nil
}

// RotationFolder returns the folder, relative to the storage pool root,
// that holds every archive of the given container
func (c *Config) RotationFolder(container string) string {
	folder := strings.ReplaceAll(c.BackupLocation, PlaceholderContainer, container)
	return strings.Trim(path.Clean("/"+folder), "/")
}

// ArchiveKey returns the storage key of an archive of db taken at t.
// strftime directives are expanded before the placeholders so container and
// database names are never interpreted as directives.
func (c *Config) ArchiveKey(container, db string, t time.Time) string {
	name := strftime.Format(c.FileTemplate, t)
	name = strings.ReplaceAll(name, PlaceholderContainer, container)
	name = strings.ReplaceAll(name, PlaceholderDBName, db)

	if !strings.HasSuffix(name, ".tar") {
		name += ".tar"
	}
	if c.Compression == CompressionZstd {
		name += ".zst"
	}

	return strings.TrimPrefix(path.Join(c.RotationFolder(container), name), "/")
}

func (c *Config) ParseStoragePools() error {
	// First, parse environment variables
	c.parseStorageEnvVars()

	// Then parse CLI arguments (these override env vars)
	for _, arg := range c.StorageArgs {
		poolName, option, value, err := splitOptionArg(arg, "storage", "pool")
		if err != nil {
			return err
		}
		c.setStoragePoolOption(poolName, option, value)
	}

	// Validate all pools have a type
	for name, pool := range c.StoragePools {
		if pool.Type == "" {
			return fmt.Errorf("storage pool %q is missing required 'type' option", name)
		}
	}

	// Set default storage if not specified and only one pool exists
	if c.DefaultStorage == "" && len(c.StoragePools) == 1 {
		for name := range c.StoragePools {
			c.DefaultStorage = name
		}
	}

	// Validate default storage exists
	if c.DefaultStorage != "" {
		if _, exists := c.StoragePools[c.DefaultStorage]; !exists {
			return fmt.Errorf("default storage pool %q does not exist", c.DefaultStorage)
		}
	}

	return nil
}

// splitOptionArg parses "name.option=value"
func splitOptionArg(arg, kind, owner string) (name, option, value string, err error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok {
		return "", "", "", fmt.Errorf("invalid %s argument format: %s (expected %s.option=value)", kind, arg, owner)
	}

	name, option, ok = strings.Cut(key, ".")
	if !ok {
		return "", "", "", fmt.Errorf("invalid %s key format: %s (expected %s.option)", kind, key, owner)
	}

	return name, option, value, nil
}

// prefixedEnvOptions yields name/option/value triples from variables such as
// DPB_STORAGE_S3PROD_ACCESS_KEY (name "s3prod", option "access-key")
func prefixedEnvOptions(prefix string, fn func(name, option, value string)) {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		remainder := strings.TrimPrefix(key, prefix)
		name, option, ok := strings.Cut(remainder, "_")
		if !ok || name == "" || option == "" {
			continue // Invalid format
		}

		option = strings.ReplaceAll(strings.ToLower(option), "_", "-")
		fn(strings.ToLower(name), option, value)
	}
}

func (c *Config) parseStorageEnvVars() {
	prefixedEnvOptions(EnvStoragePrefix, c.setStoragePoolOption)
}

func (c *Config) setStoragePoolOption(poolName, option, value string) {
	pool, exists := c.StoragePools[poolName]
	if !exists {
		pool = &StoragePool{
			Name:    poolName,
			Options: make(map[string]string),
		}
		c.StoragePools[poolName] = pool
	}

	// Handle type specially
	if option == "type" {
		pool.Type = value
	} else {
		pool.Options[option] = value
	}
}

func (c *Config) ParseNotifyConfigs() error {
	// First, parse environment variables
	c.parseNotifyEnvVars()

	// Then parse CLI arguments (these override env vars)
	for _, arg := range c.NotifyArgs {
		providerName, option, value, err := splitOptionArg(arg, "notify", "provider")
		if err != nil {
			return err
		}
		c.setNotifyConfigOption(providerName, option, value)
	}

	// Validate all configs have a type
	for name, cfg := range c.NotifyConfigs {
		if cfg.Type == "" {
			return fmt.Errorf("notification provider %q is missing required 'type' option", name)
		}
	}

	return nil
}

func (c *Config) parseNotifyEnvVars() {
	prefixedEnvOptions(EnvNotifyPrefix, c.setNotifyConfigOption)
}

func (c *Config) setNotifyConfigOption(providerName, option, value string) {
	cfg, exists := c.NotifyConfigs[providerName]
	if !exists {
		cfg = &NotifyConfig{
			Name:    providerName,
			Options: make(map[string]string),
		}
		c.NotifyConfigs[providerName] = cfg
	}

	// Handle type specially
	if option == "type" {
		cfg.Type = value
	} else {
		cfg.Options[option] = value
	}
}
