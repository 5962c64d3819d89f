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

package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitnut/rabbitnut/pkg/models"
)

func fullRecord() *models.Metrics {
	duration := int64(45)
	power := 150.5

	return &models.Metrics{
		UPSName:                  "myups",
		UPSHost:                  "nut.example",
		BatteryChargePercent:     85.0,
		BatteryRuntimeSeconds:    1200,
		UPSStatus:                "OB DISCHRG",
		OnBattery:                true,
		LastUpdate:               1700000000,
		OnBatteryDurationSeconds: &duration,
		OutputPowerWatts:         &power,
	}
}

func TestFormatOpenMetrics(t *testing.T) {
	t.Run("renders all gauges with labels and EOF", func(t *testing.T) {
		out := FormatOpenMetrics(fullRecord())

		assert.Contains(t, out, "# TYPE ups_battery_charge_ratio gauge\n")
		assert.Contains(t, out, "# UNIT ups_battery_charge_ratio ratio\n")
		assert.Contains(t, out, `ups_battery_charge_ratio{ups_name="myups",ups_host="nut.example"} 0.85`+"\n")
		assert.Contains(t, out, `ups_battery_runtime_seconds{ups_name="myups",ups_host="nut.example"} 1200`+"\n")
		assert.Contains(t, out, `ups_on_battery{ups_name="myups",ups_host="nut.example"} 1`+"\n")
		assert.Contains(t, out, `ups_on_battery_duration_seconds{ups_name="myups",ups_host="nut.example"} 45`+"\n")
		assert.Contains(t, out, `ups_output_power_watts{ups_name="myups",ups_host="nut.example"} 150.5`+"\n")
		assert.Contains(t, out, `ups_last_update_timestamp_seconds{ups_name="myups",ups_host="nut.example"} 1700000000`+"\n")
		assert.Contains(t, out, `ups_status_info{ups_name="myups",ups_host="nut.example",status="OB DISCHRG"} 1`+"\n")
		assert.True(t, strings.HasSuffix(out, "# EOF\n"))
	})

	t.Run("omits output power when unknown", func(t *testing.T) {
		record := fullRecord()
		record.OutputPowerWatts = nil

		out := FormatOpenMetrics(record)

		assert.NotContains(t, out, "ups_output_power_watts")
	})

	t.Run("omits on-battery duration when not on battery", func(t *testing.T) {
		record := fullRecord()
		record.OnBattery = false
		record.OnBatteryDurationSeconds = nil

		out := FormatOpenMetrics(record)

		assert.NotContains(t, out, "ups_on_battery_duration_seconds")
		assert.Contains(t, out, `ups_on_battery{ups_name="myups",ups_host="nut.example"} 0`+"\n")
	})

	t.Run("escapes label values", func(t *testing.T) {
		record := fullRecord()
		record.UPSName = `u"ps`
		record.UPSHost = `h\ost`
		record.UPSStatus = "OB\nLB"

		out := FormatOpenMetrics(record)

		assert.Contains(t, out, `ups_name="u\"ps"`)
		assert.Contains(t, out, `ups_host="h\\ost"`)
		assert.Contains(t, out, `status="OB\nLB"`)
	})

	t.Run("each sample line follows its headers", func(t *testing.T) {
		out := FormatOpenMetrics(fullRecord())
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

		require.Greater(t, len(lines), 3)
		assert.Equal(t, "# EOF", lines[len(lines)-1])

		// A HELP header must directly precede the first sample of each family.
		for i, line := range lines {
			if strings.HasPrefix(line, "ups_battery_charge_ratio{") {
				assert.True(t, strings.HasPrefix(lines[i-1], "# HELP ups_battery_charge_ratio"))
			}
		}
	})
}
