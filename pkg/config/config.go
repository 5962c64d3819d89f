/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads and validates the rabbitnut TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rabbitnut/rabbitnut/pkg/logger"
)

const maxPort = 65535

var (
	ErrInvalidPollInterval   = errors.New("poll_interval must be positive")
	ErrInvalidPort           = errors.New("port out of range")
	ErrInvalidGracePeriod    = errors.New("shutdown_grace_period must not be negative")
	ErrInvalidMetricsFormat  = errors.New("metrics format must be \"openmetrics\" or \"json\"")
	ErrEmptyHost             = errors.New("ups host must not be empty")
	ErrEmptyName             = errors.New("ups name must not be empty")
	ErrPartialUPSCredentials = errors.New("ups username and password must be set together")
)

// Config is the top-level rabbitnut configuration.
type Config struct {
	UPS        UPSConfig        `toml:"ups"`
	Monitoring MonitoringConfig `toml:"monitoring"`
	Shutdown   ShutdownConfig   `toml:"shutdown"`
	Logging    logger.Config    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// UPSConfig identifies the NUT daemon and device to poll.
type UPSConfig struct {
	Host     string `toml:"host"`
	Name     string `toml:"name"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// MonitoringConfig controls the poll cadence.
type MonitoringConfig struct {
	PollInterval int64 `toml:"poll_interval"` // seconds between cycles
}

// ShutdownConfig holds the trigger thresholds and the host shutdown command.
type ShutdownConfig struct {
	Enabled                 bool    `toml:"enabled"`
	OnBatterySeconds        int64   `toml:"on_battery_seconds"`
	BatteryPercentThreshold float64 `toml:"battery_percent_threshold"`
	RuntimeThreshold        int64   `toml:"runtime_threshold"` // seconds
	ShutdownCommand         string  `toml:"shutdown_command"`
	ShutdownGracePeriod     int64   `toml:"shutdown_grace_period"` // seconds
}

// MetricsConfig controls the HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Port        int    `toml:"port"`
	BearerToken string `toml:"bearer_token"`
	Format      string `toml:"format"` // "openmetrics" (default) or "json"
}

// Load reads and parses a TOML configuration file, applies validation and
// returns the populated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns a Config populated with defaults. Each call
// returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		UPS: UPSConfig{
			Host: "localhost",
			Name: "ups",
			Port: 3493,
		},
		Monitoring: MonitoringConfig{
			PollInterval: 5,
		},
		Shutdown: ShutdownConfig{
			Enabled:                 false,
			OnBatterySeconds:        300,
			BatteryPercentThreshold: 20.0,
			RuntimeThreshold:        180,
			ShutdownCommand:         "/sbin/shutdown -h +0",
			ShutdownGracePeriod:     30,
		},
		Logging: *logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    8089,
			Format:  "openmetrics",
		},
	}
}

// Validate checks the configuration for values the monitor cannot run with.
func (c *Config) Validate() error {
	if c.UPS.Host == "" {
		return ErrEmptyHost
	}

	if c.UPS.Name == "" {
		return ErrEmptyName
	}

	if c.UPS.Port <= 0 || c.UPS.Port > maxPort {
		return fmt.Errorf("%w: ups port %d", ErrInvalidPort, c.UPS.Port)
	}

	if (c.UPS.Username == "") != (c.UPS.Password == "") {
		return ErrPartialUPSCredentials
	}

	if c.Monitoring.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.Shutdown.ShutdownGracePeriod < 0 {
		return ErrInvalidGracePeriod
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > maxPort {
			return fmt.Errorf("%w: metrics port %d", ErrInvalidPort, c.Metrics.Port)
		}
	}

	switch c.Metrics.Format {
	case "", "openmetrics", "json":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidMetricsFormat, c.Metrics.Format)
	}

	return nil
}
