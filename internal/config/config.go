// Package config содержит логику чтения конфигурации сервиса панели заказов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса панели заказов.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	PushGatewayAddress string `env:"PUSH_GATEWAY_ADDRESS"`
	AdminID            string `env:"ADMIN_ID"`
	AdminLogin         string `env:"ADMIN_LOGIN"`
	AdminPassword      string `env:"ADMIN_PASSWORD"`
	AuthSecret         string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPushAddress := cfg.PushGatewayAddress
	envAdminID := cfg.AdminID

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PushGatewayAddress, "p", "", "push gateway address")
	flag.StringVar(&cfg.AdminID, "i", "superAdmin01", "administrator identity for delivery tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPushAddress != "" {
		cfg.PushGatewayAddress = envPushAddress
	}
	if envAdminID != "" {
		cfg.AdminID = envAdminID
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AdminID == "" {
		cfg.AdminID = "superAdmin01"
	}
	if cfg.AdminLogin == "" {
		cfg.AdminLogin = "admin"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "order-alert-secret"
	}

	return cfg, nil
}
