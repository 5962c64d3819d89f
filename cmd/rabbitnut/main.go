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

package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/rabbitnut/rabbitnut/pkg/config"
	"github.com/rabbitnut/rabbitnut/pkg/logger"
	"github.com/rabbitnut/rabbitnut/pkg/metrics"
	"github.com/rabbitnut/rabbitnut/pkg/monitor"
	"github.com/rabbitnut/rabbitnut/pkg/nut"
	"github.com/rabbitnut/rabbitnut/pkg/version"
)

const defaultConfigPath = "config.toml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var showVersion bool

	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&showVersion, "v", false, "Print version and exit (shorthand)")
	flag.Parse()

	if showVersion {
		fmt.Printf("rabbitnut v%s\n", version.GetVersion())
		return nil
	}

	configPath := flag.Arg(0)
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mainLogger, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mainLogger.Info().Str("config_path", configPath).Msg("UPS monitor started")

	var store *metrics.Store

	if cfg.Metrics.Enabled {
		mainLogger.Info().
			Int("port", cfg.Metrics.Port).
			Str("format", cfg.Metrics.Format).
			Bool("bearer_auth", cfg.Metrics.BearerToken != "").
			Msg("Metrics API enabled")

		store = metrics.NewStore()

		server := metrics.NewServer(cfg.Metrics, store, mainLogger)
		if err := server.Start(); err != nil {
			return err
		}
	}

	client := nut.NewClient(cfg.UPS.Host, cfg.UPS.Port, cfg.UPS.Name, cfg.UPS.Username, cfg.UPS.Password)

	monitor.New(cfg, client, store, mainLogger).Run()

	return nil
}
