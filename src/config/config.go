// Package config loads the ManagerOptions from a YAML file, the
// VAULTCORE_-prefixed environment, and programmatic overrides:
// viper.New(), SetConfigName/SetConfigType, AddConfigPath(home then "."),
// SetEnvPrefix+AutomaticEnv, then Unmarshal into a typed struct.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ManagerOptions holds every recognized configuration option.
type ManagerOptions struct {
	MinPasswordLength         int  `mapstructure:"min_password_length"`
	BackupCount               int  `mapstructure:"backup_count"`
	AutoBackup                bool `mapstructure:"auto_backup"`
	FileLockTimeoutSeconds    int  `mapstructure:"file_lock_timeout_seconds"`
	CompressionLevel          int  `mapstructure:"compression_level"`
	SolidCompression          bool `mapstructure:"solid_compression"`
	MultiThreadedCompression  bool `mapstructure:"multi_threaded_compression"`
	DeepValidation            bool `mapstructure:"deep_validation"`
	AutoRepair                bool `mapstructure:"auto_repair"`
}

// Default returns the documented defaults. Neither Default nor Load ever
// substitutes a different archive path for the one the caller supplied.
func Default() ManagerOptions {
	return ManagerOptions{
		MinPasswordLength:        12,
		BackupCount:              3,
		AutoBackup:               true,
		FileLockTimeoutSeconds:   30,
		CompressionLevel:         5,
		SolidCompression:         true,
		MultiThreadedCompression: true,
		DeepValidation:           false,
		AutoRepair:               false,
	}
}

// Load resolves ManagerOptions from (in ascending priority): the compiled-in
// defaults, an optional "vaultcore.yaml"/"vaultcore.yml" config file found
// in the user's home directory or the current directory, and VAULTCORE_
// prefixed environment variables. A missing config file is not an error;
// defaults silently apply.
func Load() (ManagerOptions, error) {
	opts := Default()

	v := viper.New()
	v.SetConfigName("vaultcore")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("VAULTCORE")
	v.AutomaticEnv()

	setDefaults(v, opts)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return ManagerOptions{}, fmt.Errorf("vaultcore: reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&opts); err != nil {
		return ManagerOptions{}, fmt.Errorf("vaultcore: unmarshaling config: %w", err)
	}
	return opts, nil
}

func setDefaults(v *viper.Viper, opts ManagerOptions) {
	v.SetDefault("min_password_length", opts.MinPasswordLength)
	v.SetDefault("backup_count", opts.BackupCount)
	v.SetDefault("auto_backup", opts.AutoBackup)
	v.SetDefault("file_lock_timeout_seconds", opts.FileLockTimeoutSeconds)
	v.SetDefault("compression_level", opts.CompressionLevel)
	v.SetDefault("solid_compression", opts.SolidCompression)
	v.SetDefault("multi_threaded_compression", opts.MultiThreadedCompression)
	v.SetDefault("deep_validation", opts.DeepValidation)
	v.SetDefault("auto_repair", opts.AutoRepair)
}

// Save writes opts to "vaultcore.yaml" in the user's home directory, for a
// host that wants to persist programmatic overrides.
func Save(opts ManagerOptions) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("vaultcore: resolving home directory: %w", err)
	}
	v := viper.New()
	v.Set("min_password_length", opts.MinPasswordLength)
	v.Set("backup_count", opts.BackupCount)
	v.Set("auto_backup", opts.AutoBackup)
	v.Set("file_lock_timeout_seconds", opts.FileLockTimeoutSeconds)
	v.Set("compression_level", opts.CompressionLevel)
	v.Set("solid_compression", opts.SolidCompression)
	v.Set("multi_threaded_compression", opts.MultiThreadedCompression)
	v.Set("deep_validation", opts.DeepValidation)
	v.Set("auto_repair", opts.AutoRepair)

	return v.WriteConfigAs(filepath.Join(home, "vaultcore.yaml"))
}
