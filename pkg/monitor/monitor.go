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

// Package monitor runs the UPS poll loop and the battery/shutdown state
// machine. One cycle at a time: read status over the NUT client, publish
// the reading to the metrics store, evaluate shutdown triggers, and on a
// trigger run the shutdown sequence and terminate.
package monitor

import (
	"os/exec"
	"time"

	"github.com/rabbitnut/rabbitnut/pkg/config"
	"github.com/rabbitnut/rabbitnut/pkg/logger"
	"github.com/rabbitnut/rabbitnut/pkg/metrics"
	"github.com/rabbitnut/rabbitnut/pkg/models"
)

// StatusClient is the slice of the NUT client the monitor needs.
type StatusClient interface {
	GetStatus() (models.UPSStatus, error)
	ListVariables() ([]models.Variable, error)
}

// Monitor owns the battery/shutdown state machine. It is driven from a
// single goroutine; state is never touched concurrently.
type Monitor struct {
	cfg    *config.Config
	client StatusClient
	store  *metrics.Store // nil when metrics are disabled
	logger logger.Logger

	// onBatterySince is set exactly while the most recent reading was
	// on-battery with no later on-line reading.
	onBatterySince *time.Time
	// shutdownScheduled is one-way: once true it is never reset.
	shutdownScheduled bool

	// Seams for tests; production values are set by New.
	now        func() time.Time
	sleep      func(time.Duration)
	runCommand func(name string, args ...string) ([]byte, error)
}

// New returns a Monitor wired to the real clock and command runner.
func New(cfg *config.Config, client StatusClient, store *metrics.Store, log logger.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: log,
		now:    time.Now,
		sleep:  time.Sleep,
		runCommand: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput() //nolint:gosec // command comes from operator config
		},
	}
}

// Run polls on the configured cadence until a shutdown sequence has
// completed. A failed cycle is logged and skipped; the loop always
// proceeds to the next scheduled poll.
func (m *Monitor) Run() {
	m.logger.Info().
		Str("ups_name", m.cfg.UPS.Name).
		Str("ups_host", m.cfg.UPS.Host).
		Msg("Starting UPS monitor")

	m.logVariables()

	for {
		if err := m.cycle(); err != nil {
			m.logger.Error().Err(err).Msg("Monitor cycle error")
		}

		if m.shutdownScheduled {
			break
		}

		m.sleep(time.Duration(m.cfg.Monitoring.PollInterval) * time.Second)
	}
}

// logVariables probes the daemon once at startup and logs the full
// variable listing at debug level. A failure here is only a warning; the
// poll loop starts regardless.
func (m *Monitor) logVariables() {
	m.logger.Info().Msg("Attempting to connect to UPS and retrieve variables")

	vars, err := m.client.ListVariables()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to list UPS variables")
		return
	}

	m.logger.Info().Msg("Connected successfully")

	for _, v := range vars {
		m.logger.Debug().Str("name", v.Name).Str("value", v.Value).Msg("UPS variable")
	}
}

// cycle performs one poll: read, publish, update state, evaluate triggers.
func (m *Monitor) cycle() error {
	status, err := m.client.GetStatus()
	if err != nil {
		return err
	}

	m.logger.Debug().Stringer("status", status).Msg("UPS status")

	// Publish before the state update so the duration reflects the state
	// as of the previous cycle, matching the reading it was captured with.
	if m.store != nil {
		m.store.Update(m.cfg.UPS.Name, m.cfg.UPS.Host, status, m.onBatteryDuration())
	}

	m.updateBatteryState(status)

	if m.shouldShutdown(status) {
		if err := m.executeShutdown(); err != nil {
			m.logger.Error().Err(err).Msg("Shutdown sequence failed")
		}
	}

	return nil
}

// onBatteryDuration returns elapsed whole seconds on battery, or nil when
// on line power.
func (m *Monitor) onBatteryDuration() *int64 {
	if m.onBatterySince == nil {
		return nil
	}

	elapsed := int64(m.now().Sub(*m.onBatterySince).Seconds())

	return &elapsed
}

// updateBatteryState tracks the on-battery-since timestamp across cycles.
func (m *Monitor) updateBatteryState(status models.UPSStatus) {
	if status.OnBattery {
		if m.onBatterySince == nil {
			since := m.now()
			m.onBatterySince = &since

			m.logger.Warn().Msg("UPS switched to battery power")
			m.logBatteryStatus(status)
		}

		return
	}

	if m.onBatterySince != nil {
		m.logger.Info().Msg("UPS back on line power")
		m.onBatterySince = nil
	}
}

// logBatteryStatus records the reading and the configured thresholds at
// the moment the UPS goes on battery.
func (m *Monitor) logBatteryStatus(status models.UPSStatus) {
	m.logger.Info().
		Float64("charge_percent", status.BatteryCharge).
		Int64("runtime_minutes", status.BatteryRuntime/60).
		Msg("Battery status")

	if m.cfg.Shutdown.Enabled {
		m.logger.Info().
			Int64("on_battery_seconds", m.cfg.Shutdown.OnBatterySeconds).
			Float64("battery_percent_threshold", m.cfg.Shutdown.BatteryPercentThreshold).
			Int64("runtime_threshold_seconds", m.cfg.Shutdown.RuntimeThreshold).
			Msg("Shutdown thresholds")
	}
}

// shouldShutdown evaluates the trigger conditions. Each condition is
// independently sufficient; they are checked in order (time on battery,
// charge, runtime) with a short-circuit on the first match.
func (m *Monitor) shouldShutdown(status models.UPSStatus) bool {
	if !m.cfg.Shutdown.Enabled || m.shutdownScheduled {
		return false
	}

	if !status.OnBattery {
		return false
	}

	if m.onBatterySince != nil {
		elapsed := int64(m.now().Sub(*m.onBatterySince).Seconds())

		if elapsed >= m.cfg.Shutdown.OnBatterySeconds {
			m.logger.Error().
				Int64("elapsed_seconds", elapsed).
				Int64("threshold_seconds", m.cfg.Shutdown.OnBatterySeconds).
				Msg("UPS on battery beyond time threshold, triggering shutdown")

			return true
		}

		remaining := m.cfg.Shutdown.OnBatterySeconds - elapsed
		if remaining%60 == 0 || remaining <= 30 {
			m.logger.Warn().Int64("remaining_seconds", remaining).Msg("Time until shutdown")
		}
	}

	if status.BatteryCharge <= m.cfg.Shutdown.BatteryPercentThreshold {
		m.logger.Error().
			Float64("charge_percent", status.BatteryCharge).
			Float64("threshold_percent", m.cfg.Shutdown.BatteryPercentThreshold).
			Msg("Battery charge below threshold, triggering shutdown")

		return true
	}

	if status.BatteryRuntime <= m.cfg.Shutdown.RuntimeThreshold {
		m.logger.Error().
			Int64("runtime_seconds", status.BatteryRuntime).
			Int64("threshold_seconds", m.cfg.Shutdown.RuntimeThreshold).
			Msg("Battery runtime below threshold, triggering shutdown")

		return true
	}

	return false
}
