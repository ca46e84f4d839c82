package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Pricing  PricingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	CreateDemoUsers bool
}

// ServerConfig holds webhook server settings
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// PricingConfig holds the pricing catalog location
type PricingConfig struct {
	CatalogFile string
}
