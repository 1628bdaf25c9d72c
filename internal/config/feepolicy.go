package config

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FeePolicyConfig controls how non-attended registrations are charged.
// Percentages are applied to the resolved brutto fees; 0 means no charge,
// which keeps the status out of settlements entirely.
type FeePolicyConfig struct {
	NoShowChargePercent     int `mapstructure:"noShowChargePercent"`
	LateCancelChargePercent int `mapstructure:"lateCancelChargePercent"`
}

func DefaultFeePolicyConfig() FeePolicyConfig {
	return FeePolicyConfig{
		NoShowChargePercent:     0,
		LateCancelChargePercent: 0,
	}
}

type FeePolicyConfigHolder struct {
	current atomic.Value // holds FeePolicyConfig
}

func NewFeePolicyConfigHolder() (*FeePolicyConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("feepolicy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kassza/config") // volume-mounted config
	v.AddConfigPath("/etc/kassza")            // system config
	v.AddConfigPath(".")                      // current directory (dev mode)

	v.SetEnvPrefix("KASSZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no config file, start from defaults
		defaults := DefaultFeePolicyConfig()
		v.SetDefault("feepolicy.noShowChargePercent", defaults.NoShowChargePercent)
		v.SetDefault("feepolicy.lateCancelChargePercent", defaults.LateCancelChargePercent)
	}

	var cfg FeePolicyConfig
	if err := v.UnmarshalKey("feepolicy", &cfg); err != nil {
		return nil, err
	}
	if err := validateFeePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &FeePolicyConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FeePolicyConfig
		if err := v.UnmarshalKey("feepolicy", &updated); err != nil {
			log.Printf("[feepolicy-config] reload failed: %v", err)
			return
		}
		if err := validateFeePolicyConfig(updated); err != nil {
			log.Printf("[feepolicy-config] invalid config ignored: %v", err)
			return
		}
		holder.Store(updated)
		log.Printf("[feepolicy-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *FeePolicyConfigHolder) Get() FeePolicyConfig {
	return h.current.Load().(FeePolicyConfig)
}

// Store swaps the active config. Callers outside the file watcher use it
// to pin behavior, mostly in tests.
func (h *FeePolicyConfigHolder) Store(cfg FeePolicyConfig) {
	h.current.Store(cfg)
}

// NewStaticFeePolicyHolder returns a holder pinned to the given config.
// Intended for tests and for callers that do not want file watching.
func NewStaticFeePolicyHolder(cfg FeePolicyConfig) *FeePolicyConfigHolder {
	holder := &FeePolicyConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateFeePolicyConfig(cfg FeePolicyConfig) error {
	if cfg.NoShowChargePercent < 0 || cfg.NoShowChargePercent > 100 {
		return fmt.Errorf("feepolicy.noShowChargePercent out of range: %d", cfg.NoShowChargePercent)
	}
	if cfg.LateCancelChargePercent < 0 || cfg.LateCancelChargePercent > 100 {
		return fmt.Errorf("feepolicy.lateCancelChargePercent out of range: %d", cfg.LateCancelChargePercent)
	}
	return nil
}
