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

// Package metrics holds the latest published UPS reading and serves it
// over HTTP in OpenMetrics or JSON form.
package metrics

import (
	"sync"
	"time"

	"github.com/rabbitnut/rabbitnut/pkg/models"
)

// Store keeps at most one published metrics record, absent until the
// first successful poll. The single writer (the monitor loop) replaces
// the record wholesale each cycle; any number of HTTP readers may read
// concurrently.
type Store struct {
	mu      sync.RWMutex
	current *models.Metrics

	now func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Update publishes a new record built from the given reading, replacing
// any previous one (last-write-wins, no history).
func (s *Store) Update(upsName, upsHost string, status models.UPSStatus, onBatteryDuration *int64) {
	record := &models.Metrics{
		UPSName:                  upsName,
		UPSHost:                  upsHost,
		BatteryChargePercent:     status.BatteryCharge,
		BatteryRuntimeSeconds:    status.BatteryRuntime,
		UPSStatus:                status.Status,
		OnBattery:                status.OnBattery,
		LastUpdate:               s.now().Unix(),
		OnBatteryDurationSeconds: onBatteryDuration,
		OutputPowerWatts:         status.OutputPower,
	}

	s.mu.Lock()
	s.current = record
	s.mu.Unlock()
}

// Current returns a copy of the latest record, or false when nothing has
// been published yet.
func (s *Store) Current() (models.Metrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return models.Metrics{}, false
	}

	return *s.current, true
}
