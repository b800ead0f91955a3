package config

import (
	"fmt"
	"strconv"
)

// LabelPrefix is the fixed prefix for all docker-pg-backup labels
const LabelPrefix = "docker-pg-backup"

// Label suffixes (appended to LabelPrefix)
const (
	LabelEnable  = "enable"
	LabelDBNames = "db-names"
)

// ContainerConfig holds per-container overrides read from container labels
type ContainerConfig struct {
	ContainerName string
	Enabled       bool
	DBNames       []string
}

// ParseLabels applies container label overrides on top of the global settings.
// Containers are enabled unless labelled docker-pg-backup.enable=false.
func (c *Config) ParseLabels(containerName string, labels map[string]string) (*ContainerConfig, error) {
	cc := &ContainerConfig{
		ContainerName: containerName,
		Enabled:       true,
		DBNames:       c.DBNames,
	}

	enableKey := LabelPrefix + "." + LabelEnable
	if val, ok := labels[enableKey]; ok {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", enableKey, err)
		}
		cc.Enabled = enabled
	}

	if val, ok := labels[LabelPrefix+"."+LabelDBNames]; ok {
		names := SplitList(val)
		if len(names) == 0 {
			return nil, fmt.Errorf("container %s has an empty %s.%s label", containerName, LabelPrefix, LabelDBNames)
		}
		cc.DBNames = names
	}

	return cc, nil
}
