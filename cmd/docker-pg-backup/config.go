package main

import (
	"fmt"
	"log/slog"

	"github.com/shyim/docker-pg-backup/internal/config"
	"github.com/shyim/docker-pg-backup/internal/notification"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// notifyMgr holds the providers configured for this invocation
var notifyMgr = notification.NewManager()

// loadConfig layers defaults, the config file, the env file, DPB_* variables
// and explicitly set flags, in that order, then sets up logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	changed := snapshotFlags(flags)

	*cfg = *config.New()

	if err := config.LoadDotEnv(envFile, flags.Changed("env-file")); err != nil {
		return err
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return fmt.Errorf("loading %s: %w", configFile, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := changed.restore(flags); err != nil {
		return err
	}

	if err := cfg.ParseStoragePools(); err != nil {
		return err
	}
	if err := cfg.ParseNotifyConfigs(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	providers := make(map[string]notification.ProviderConfig, len(cfg.NotifyConfigs))
	for name, n := range cfg.NotifyConfigs {
		providers[name] = notification.ProviderConfig{Type: n.Type, Options: n.Options}
	}
	mgr, err := notification.NewManagerFromConfig(providers)
	if err != nil {
		return err
	}
	notifyMgr = mgr
	setupLogging(notifyMgr)

	for name, pool := range cfg.StoragePools {
		slog.Debug("storage pool", "name", name, "type", pool.Type, "default", name == cfg.DefaultStorage)
	}

	return nil
}

// flagSnapshot keeps the values of flags set on the command line so they
// survive reloading the lower precedence sources
type flagSnapshot map[string][]string

func snapshotFlags(flags *pflag.FlagSet) flagSnapshot {
	snap := make(flagSnapshot)
	flags.Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			snap[f.Name] = sv.GetSlice()
			return
		}
		snap[f.Name] = []string{f.Value.String()}
	})
	return snap
}

func (s flagSnapshot) restore(flags *pflag.FlagSet) error {
	for name, values := range s {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}

		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if err := sv.Replace(values); err != nil {
				return fmt.Errorf("invalid value for --%s: %w", name, err)
			}
			continue
		}
		if err := f.Value.Set(values[0]); err != nil {
			return fmt.Errorf("invalid value for --%s: %w", name, err)
		}
	}
	return nil
}
