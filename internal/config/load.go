package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// LoadFile merges a YAML config file into c. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("unmarshalling yaml: %w", err)
	}

	for name, pool := range c.StoragePools {
		pool.Name = name
	}
	for name, notify := range c.NotifyConfigs {
		notify.Name = name
	}

	return nil
}

// UnmarshalYAML reads a pool from a flat mapping of options plus "type"
func (p *StoragePool) UnmarshalYAML(value *yaml.Node) error {
	typ, opts, err := decodeOptions(value)
	if err != nil {
		return err
	}
	p.Type, p.Options = typ, opts
	return nil
}

// UnmarshalYAML reads a provider from a flat mapping of options plus "type"
func (n *NotifyConfig) UnmarshalYAML(value *yaml.Node) error {
	typ, opts, err := decodeOptions(value)
	if err != nil {
		return err
	}
	n.Type, n.Options = typ, opts
	return nil
}

func decodeOptions(value *yaml.Node) (string, map[string]string, error) {
	opts := make(map[string]string)
	if err := value.Decode(&opts); err != nil {
		return "", nil, err
	}

	typ := opts["type"]
	delete(opts, "type")

	return typ, opts, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables that are already set win. A missing file is ignored unless
// required is set.
func LoadDotEnv(path string, required bool) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", path, err)
}

// ApplyEnv overrides settings from DPB_* environment variables.
// Storage pools and notification providers are read by ParseStoragePools
// and ParseNotifyConfigs.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"DOCKER_HOST":     &c.DockerHost,
		"DB_IMAGE_NAME":   &c.DBImageName,
		"DB_USER":         &c.DBUser,
		"DB_PASS":         &c.DBPass,
		"DB_HOST":         &c.DBHost,
		"BACKUP_LOCATION": &c.BackupLocation,
		"FILE_TEMPLATE":   &c.FileTemplate,
		"COMPRESSION":     &c.Compression,
		"SCHEDULE":        &c.Schedule,
		"METRICS_ADDR":    &c.MetricsAddr,
		"DEFAULT_STORAGE": &c.DefaultStorage,
		"LOG_LEVEL":       &c.LogLevel,
		"LOG_FORMAT":      &c.LogFormat,
	}
	for name, dst := range strs {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = val
		}
	}

	lists := map[string]*[]string{
		"DB_NAMES":   &c.DBNames,
		"CONTAINERS": &c.Containers,
	}
	for name, dst := range lists {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = SplitList(val)
		}
	}

	bools := map[string]*bool{
		"ROTATION":   &c.Rotation,
		"DRY_RUN":    &c.DryRun,
		"DIAGNOSTIC": &c.Diagnostic,
	}
	for name, dst := range bools {
		val, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid value for %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
	}

	return nil
}

// SplitList parses a comma-separated list, dropping blank items
func SplitList(val string) []string {
	var items []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
