// Package config provides a reusable loader for the node's
// configuration file and environment variable overrides. Adapted from
// the teacher's pkg/config/config.go Config struct and viper-based
// Load/LoadFromEnv pair.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/raicore/raicore/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified node configuration, matching spec.md §6's
// configuration key list one-for-one.
type Config struct {
	Network struct {
		Address            string   `mapstructure:"address" json:"address"`
		Port               int      `mapstructure:"port" json:"port"`
		IOThreads          int      `mapstructure:"io_threads" json:"io_threads"`
		PreconfiguredPeers []string `mapstructure:"preconfigured_peers" json:"preconfigured_peers"`
	} `mapstructure:"network" json:"network"`

	Storage struct {
		DataPath string `mapstructure:"data_path" json:"data_path"`
	} `mapstructure:"storage" json:"storage"`

	Callback struct {
		URL string `mapstructure:"callback_url" json:"callback_url"`
	} `mapstructure:"callback" json:"callback"`

	Reward struct {
		ForwardTo         string `mapstructure:"forward_reward_to" json:"forward_reward_to"`
		DailyForwardTimes int    `mapstructure:"daily_forward_times" json:"daily_forward_times"`
	} `mapstructure:"reward" json:"reward"`

	Election struct {
		Concurrency int `mapstructure:"election_concurrency" json:"election_concurrency"`
	} `mapstructure:"election" json:"election"`

	RichList struct {
		Enabled          bool `mapstructure:"enable_rich_list" json:"enable_rich_list"`
		EnableDelegators bool `mapstructure:"enable_delegator_list" json:"enable_delegator_list"`
	} `mapstructure:"rich_list" json:"rich_list"`

	Validator struct {
		URL string `mapstructure:"validator_url" json:"validator_url"`
	} `mapstructure:"validator" json:"validator"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"log" json:"log"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the node's configuration file and merges any environment-
// specific overrides named by env. If env is empty, only the default
// configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RAI_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("RAI_ENV", ""))
}
