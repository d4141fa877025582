// Package config содержит логику чтения конфигурации стойки выезда.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress         = "localhost:8080"
	defaultPolicyFile         = "configs/policy.json"
	defaultPricingTimeout     = 2 * time.Second
	defaultPolicySyncInterval = 30 * time.Second
)

// Config содержит параметры конфигурации стойки выезда.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	BackendAddress     string        `env:"BACKEND_ADDRESS"`
	PricingAddress     string        `env:"PRICING_ADDRESS"`
	PolicyFile         string        `env:"POLICY_FILE"`
	RedisURL           string        `env:"REDIS_URL"`
	PricingTimeout     time.Duration `env:"PRICING_TIMEOUT"`
	PolicySyncInterval time.Duration `env:"POLICY_SYNC_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for the checkout journal and policy history")
	flag.StringVar(&cfg.BackendAddress, "b", "", "billing and reservations backend address")
	flag.StringVar(&cfg.PricingAddress, "p", "", "remote pricing service address")
	flag.StringVar(&cfg.PolicyFile, "f", defaultPolicyFile, "pricing policy file")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for idempotency keys")
	flag.DurationVar(&cfg.PricingTimeout, "pricing-timeout", defaultPricingTimeout, "remote pricing request timeout")
	flag.DurationVar(&cfg.PolicySyncInterval, "policy-sync-interval", defaultPolicySyncInterval, "interval between policy pushes to the pricing service")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.BackendAddress != "" {
		cfg.BackendAddress = fromEnv.BackendAddress
	}
	if fromEnv.PricingAddress != "" {
		cfg.PricingAddress = fromEnv.PricingAddress
	}
	if fromEnv.PolicyFile != "" {
		cfg.PolicyFile = fromEnv.PolicyFile
	}
	if fromEnv.RedisURL != "" {
		cfg.RedisURL = fromEnv.RedisURL
	}
	if fromEnv.PricingTimeout > 0 {
		cfg.PricingTimeout = fromEnv.PricingTimeout
	}
	if fromEnv.PolicySyncInterval > 0 {
		cfg.PolicySyncInterval = fromEnv.PolicySyncInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.PolicyFile == "" {
		cfg.PolicyFile = defaultPolicyFile
	}
	if cfg.PricingTimeout <= 0 {
		cfg.PricingTimeout = defaultPricingTimeout
	}
	if cfg.PolicySyncInterval <= 0 {
		cfg.PolicySyncInterval = defaultPolicySyncInterval
	}

	return cfg, nil
}
