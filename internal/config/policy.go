package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyHolder serves the forecasting policy with hot reload. Operators tune
// the statistical constants through a mounted forecast.yml without a restart;
// when no file exists the env-derived defaults apply.
type PolicyHolder struct {
	current atomic.Value // holds ForecastConfig
}

func NewPolicyHolder(cfg Config) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("forecast")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dolce/config") // volume-mounted config
	v.AddConfigPath("/etc/dolce")            // system config
	v.AddConfigPath(".")                     // current directory (dev mode)

	v.SetEnvPrefix("DOLCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := cfg.Forecast
	v.SetDefault("forecast.minHistoryDays", defaults.MinHistoryDays)
	v.SetDefault("forecast.lookbackDays", defaults.LookbackDays)
	v.SetDefault("forecast.bandK", defaults.BandK)
	v.SetDefault("forecast.bandZ", defaults.BandZ)
	v.SetDefault("forecast.degradedConfidenceCeiling", defaults.DegradedConfidenceCeiling)
	v.SetDefault("forecast.backtestTolerancePct", defaults.BacktestTolerancePct)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy ForecastConfig
	if err := v.UnmarshalKey("forecast", &policy); err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ForecastConfig
		if err := v.UnmarshalKey("forecast", &updated); err != nil {
			log.Printf("[forecast-config] reload failed: %v", err)
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Printf("[forecast-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[forecast-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPolicyHolder wraps a fixed policy without file watching, for
// callers that want holder semantics with a known set of constants.
func NewStaticPolicyHolder(policy ForecastConfig) (*PolicyHolder, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder, nil
}

func (h *PolicyHolder) Get() ForecastConfig {
	return h.current.Load().(ForecastConfig)
}

func validatePolicy(policy ForecastConfig) error {
	if policy.MinHistoryDays <= 0 {
		return errors.New("forecast.minHistoryDays must be positive")
	}
	if policy.LookbackDays < policy.MinHistoryDays {
		return errors.New("forecast.lookbackDays cannot be below forecast.minHistoryDays")
	}
	if policy.BandZ <= 0 {
		return errors.New("forecast.bandZ must be positive")
	}
	if policy.BacktestTolerancePct <= 0 {
		return errors.New("forecast.backtestTolerancePct must be positive")
	}
	return nil
}
