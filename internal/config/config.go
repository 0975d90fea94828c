// Package config loads configuration from a file with environment
// variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the file at path into cfg, which must be a pointer to a
// struct. Values already set on cfg act as defaults, and environment
// variables (dots replaced by underscores) override the file.
func Load(path string, cfg any) error {
	v := viper.New()

	defaults := make(map[string]any)
	if err := mapstructure.Decode(cfg, &defaults); err != nil {
		return fmt.Errorf("decode defaults: %v", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return fmt.Errorf("merge defaults: %v", err)
	}

	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %v", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}
