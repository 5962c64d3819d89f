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

// Package models holds the shared data types passed between the NUT
// client, the monitor loop and the metrics exposition layer.
package models

import "fmt"

// UPSStatus is one poll cycle's reading from the UPS. It is built fresh
// each cycle and never mutated afterwards.
type UPSStatus struct {
	BatteryCharge  float64  `json:"battery_charge"`  // percent, 0-100
	BatteryRuntime int64    `json:"battery_runtime"` // estimated seconds remaining
	Status         string   `json:"status"`          // raw ups.status tokens, device-defined
	OnBattery      bool     `json:"on_battery"`      // derived from Status
	OutputPower    *float64 `json:"output_power,omitempty"`
}

// String renders the reading for log output.
func (s UPSStatus) String() string {
	return fmt.Sprintf("Charge: %v%%, Runtime: %ds, Status: %s, On Battery: %t",
		s.BatteryCharge, s.BatteryRuntime, s.Status, s.OnBattery)
}

// Variable is a single name/value pair from a LIST VAR response.
// Protocol order is preserved; duplicate names are kept as sent.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Metrics is the published record served by the metrics endpoint. One
// instance is replaced wholesale per poll cycle; readers never see a
// partial update.
type Metrics struct {
	UPSName                  string   `json:"ups_name"`
	UPSHost                  string   `json:"ups_host"`
	BatteryChargePercent     float64  `json:"battery_charge_percent"`
	BatteryRuntimeSeconds    int64    `json:"battery_runtime_seconds"`
	UPSStatus                string   `json:"ups_status"`
	OnBattery                bool     `json:"on_battery"`
	LastUpdate               int64    `json:"last_update"` // unix seconds of capture
	OnBatteryDurationSeconds *int64   `json:"on_battery_duration_seconds,omitempty"`
	OutputPowerWatts         *float64 `json:"output_power_watts,omitempty"`
}

// JSONMetricsResponse is the envelope returned when the metrics endpoint
// is configured for JSON output.
type JSONMetricsResponse struct {
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
	Metrics   Metrics `json:"metrics"`
}
