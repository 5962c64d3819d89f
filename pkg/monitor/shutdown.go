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

package monitor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyShutdownCommand indicates a shutdown command that splits to
// nothing; the sequence completes without spawning anything.
var ErrEmptyShutdownCommand = errors.New("shutdown command is empty")

const countdownLogWindow = 10

// executeShutdown runs the at-most-once shutdown sequence: mark the
// scheduled flag before any blocking work, count down the grace period
// one second at a time, then split the configured command on whitespace
// and run it. The attempt is best-effort: a failed or missing command is
// reported but the monitor terminates either way.
//
// The command string gets no shell expansion or quoting support; a
// quoted argument containing spaces is not supported.
func (m *Monitor) executeShutdown() error {
	if m.shutdownScheduled {
		return nil
	}

	m.shutdownScheduled = true

	m.logger.Error().
		Int64("grace_period_seconds", m.cfg.Shutdown.ShutdownGracePeriod).
		Msg("Initiating system shutdown")

	for i := m.cfg.Shutdown.ShutdownGracePeriod; i >= 1; i-- {
		if i <= countdownLogWindow || i%10 == 0 {
			m.logger.Warn().Int64("seconds", i).Msg("Shutdown countdown")
		}

		m.sleep(time.Second)
	}

	parts := strings.Fields(m.cfg.Shutdown.ShutdownCommand)
	if len(parts) == 0 {
		return ErrEmptyShutdownCommand
	}

	m.logger.Info().Str("command", m.cfg.Shutdown.ShutdownCommand).Msg("Executing shutdown command")

	output, err := m.runCommand(parts[0], parts[1:]...)
	if err != nil {
		return fmt.Errorf("shutdown command failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	m.logger.Info().Msg("Shutdown command executed successfully")

	return nil
}
