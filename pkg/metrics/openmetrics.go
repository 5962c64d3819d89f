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
	"fmt"
	"strconv"
	"strings"

	"github.com/rabbitnut/rabbitnut/pkg/models"
)

// OpenMetricsContentType is the media type for the text exposition format.
const OpenMetricsContentType = "application/openmetrics-text; version=1.0.0; charset=utf-8"

const percentDivisor = 100.0

// FormatOpenMetrics renders a metrics record as an OpenMetrics text
// exposition. Gauges carrying unknown values (output power when the UPS
// does not report it, on-battery duration while on line power) are
// omitted entirely rather than rendered as zero.
func FormatOpenMetrics(m *models.Metrics) string {
	var b strings.Builder

	labels := fmt.Sprintf(`ups_name="%s",ups_host="%s"`, escapeLabel(m.UPSName), escapeLabel(m.UPSHost))

	b.WriteString("# TYPE ups_battery_charge_ratio gauge\n")
	b.WriteString("# UNIT ups_battery_charge_ratio ratio\n")
	b.WriteString("# HELP ups_battery_charge_ratio Battery charge level as a ratio (0.0 to 1.0).\n")
	fmt.Fprintf(&b, "ups_battery_charge_ratio{%s} %s\n",
		labels, formatFloat(m.BatteryChargePercent/percentDivisor))

	b.WriteString("# TYPE ups_battery_runtime_seconds gauge\n")
	b.WriteString("# UNIT ups_battery_runtime_seconds seconds\n")
	b.WriteString("# HELP ups_battery_runtime_seconds Estimated battery runtime in seconds.\n")
	fmt.Fprintf(&b, "ups_battery_runtime_seconds{%s} %d\n", labels, m.BatteryRuntimeSeconds)

	b.WriteString("# TYPE ups_on_battery gauge\n")
	b.WriteString("# HELP ups_on_battery Whether UPS is running on battery (1 = on battery, 0 = on line power).\n")
	fmt.Fprintf(&b, "ups_on_battery{%s} %d\n", labels, boolToInt(m.OnBattery))

	if m.OnBatteryDurationSeconds != nil {
		b.WriteString("# TYPE ups_on_battery_duration_seconds gauge\n")
		b.WriteString("# UNIT ups_on_battery_duration_seconds seconds\n")
		b.WriteString("# HELP ups_on_battery_duration_seconds Duration in seconds that UPS has been on battery.\n")
		fmt.Fprintf(&b, "ups_on_battery_duration_seconds{%s} %d\n", labels, *m.OnBatteryDurationSeconds)
	}

	if m.OutputPowerWatts != nil {
		b.WriteString("# TYPE ups_output_power_watts gauge\n")
		b.WriteString("# UNIT ups_output_power_watts watts\n")
		b.WriteString("# HELP ups_output_power_watts Current UPS output power in watts.\n")
		fmt.Fprintf(&b, "ups_output_power_watts{%s} %s\n", labels, formatFloat(*m.OutputPowerWatts))
	}

	b.WriteString("# TYPE ups_last_update_timestamp_seconds gauge\n")
	b.WriteString("# UNIT ups_last_update_timestamp_seconds seconds\n")
	b.WriteString("# HELP ups_last_update_timestamp_seconds Unix timestamp of last successful UPS status update.\n")
	fmt.Fprintf(&b, "ups_last_update_timestamp_seconds{%s} %d\n", labels, m.LastUpdate)

	b.WriteString("# TYPE ups_status_info info\n")
	b.WriteString("# HELP ups_status_info UPS status information.\n")
	fmt.Fprintf(&b, `ups_status_info{%s,status="%s"} 1`+"\n", labels, escapeLabel(m.UPSStatus))

	b.WriteString("# EOF\n")

	return b.String()
}

// escapeLabel escapes a label value per the OpenMetrics text format:
// backslash, double quote and newline must be escaped; everything else
// passes through.
func escapeLabel(value string) string {
	var b strings.Builder

	for _, r := range value {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}

	return 0
}
