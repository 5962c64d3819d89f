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

package nut

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeNUT runs a minimal NUT daemon on a loopback listener. For each
// received command line, respond is called; its reply (which may span
// multiple lines) is written back, and the connection is closed when
// closeAfter is true.
func startFakeNUT(t *testing.T, respond func(cmd string) (reply string, closeAfter bool)) (host string, port int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer c.Close()

				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
					reply, closeAfter := respond(scanner.Text())

					if reply != "" {
						if _, err := c.Write([]byte(reply)); err != nil {
							return
						}
					}

					if closeAfter {
						return
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)

	return "127.0.0.1", addr.Port
}

// respondVars answers GET VAR commands from a name->response-line map.
func respondVars(vars map[string]string) func(string) (string, bool) {
	return func(cmd string) (string, bool) {
		fields := strings.Fields(cmd)
		if len(fields) == 4 && fields[0] == "GET" && fields[1] == "VAR" {
			if line, ok := vars[fields[3]]; ok {
				return line + "\n", false
			}

			return "ERR VAR-NOT-SUPPORTED\n", false
		}

		return "ERR UNKNOWN-COMMAND\n", false
	}
}

func TestGetStatus(t *testing.T) {
	t.Run("assembles a full reading", func(t *testing.T) {
		host, port := startFakeNUT(t, respondVars(map[string]string{
			"battery.charge":  `VAR myups battery.charge "85.5"`,
			"battery.runtime": `VAR myups battery.runtime "1200"`,
			"ups.status":      `VAR myups ups.status "OL"`,
			"output.power":    `VAR myups output.power "150.5"`,
		}))

		client := NewClient(host, port, "myups", "", "")

		status, err := client.GetStatus()
		require.NoError(t, err)

		assert.InDelta(t, 85.5, status.BatteryCharge, 0.001)
		assert.Equal(t, int64(1200), status.BatteryRuntime)
		assert.Equal(t, "OL", status.Status)
		assert.False(t, status.OnBattery)
		require.NotNil(t, status.OutputPower)
		assert.InDelta(t, 150.5, *status.OutputPower, 0.001)
	})

	t.Run("derives on-battery from OB token", func(t *testing.T) {
		host, port := startFakeNUT(t, respondVars(map[string]string{
			"battery.charge":  `VAR myups battery.charge "42"`,
			"battery.runtime": `VAR myups battery.runtime "600"`,
			"ups.status":      `VAR myups ups.status "OB LB"`,
			"output.power":    `VAR myups output.power "90"`,
		}))

		client := NewClient(host, port, "myups", "", "")

		status, err := client.GetStatus()
		require.NoError(t, err)
		assert.True(t, status.OnBattery)
	})

	t.Run("derives on-battery from DISCHRG token", func(t *testing.T) {
		host, port := startFakeNUT(t, respondVars(map[string]string{
			"battery.charge":  `VAR myups battery.charge "42"`,
			"battery.runtime": `VAR myups battery.runtime "600"`,
			"ups.status":      `VAR myups ups.status "OL DISCHRG"`,
			"output.power":    `VAR myups output.power "90"`,
		}))

		client := NewClient(host, port, "myups", "", "")

		status, err := client.GetStatus()
		require.NoError(t, err)
		assert.True(t, status.OnBattery)
	})

	t.Run("unparsable charge and runtime fall back to zero", func(t *testing.T) {
		host, port := startFakeNUT(t, respondVars(map[string]string{
			"battery.charge":  `VAR myups battery.charge "garbage"`,
			"battery.runtime": `VAR myups battery.runtime "n/a"`,
			"ups.status":      `VAR myups ups.status "OL"`,
			"output.power":    `VAR myups output.power "90"`,
		}))

		client := NewClient(host, port, "myups", "", "")

		status, err := client.GetStatus()
		require.NoError(t, err)
		assert.Zero(t, status.BatteryCharge)
		assert.Zero(t, status.BatteryRuntime)
	})

	t.Run("missing output power is tolerated as absent", func(t *testing.T) {
		host, port := startFakeNUT(t, respondVars(map[string]string{
			"battery.charge":  `VAR myups battery.charge "85"`,
			"battery.runtime": `VAR myups battery.runtime "1200"`,
			"ups.status":      `VAR myups ups.status "OL"`,
		}))

		client := NewClient(host, port, "myups", "", "")

		status, err := client.GetStatus()
		require.NoError(t, err)
		assert.Nil(t, status.OutputPower)
	})

	t.Run("ERR response fails the read with a protocol error", func(t *testing.T) {
		host, port := startFakeNUT(t, func(string) (string, bool) {
			return "ERR UNKNOWN-UPS\n", false
		})

		client := NewClient(host, port, "myups", "", "")

		_, err := client.GetStatus()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("malformed response fails the read with a protocol error", func(t *testing.T) {
		host, port := startFakeNUT(t, func(string) (string, bool) {
			return "WHAT\n", false
		})

		client := NewClient(host, port, "myups", "", "")

		_, err := client.GetStatus()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("premature stream end is a protocol error", func(t *testing.T) {
		host, port := startFakeNUT(t, func(string) (string, bool) {
			return "", true // close without answering
		})

		client := NewClient(host, port, "myups", "", "")

		_, err := client.GetStatus()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("connect failure is a connection error", func(t *testing.T) {
		// Bind and immediately close to get a port nothing listens on.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		client := NewClient("127.0.0.1", port, "myups", "", "")

		_, err = client.GetStatus()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestAuthentication(t *testing.T) {
	vars := map[string]string{
		"battery.charge":  `VAR myups battery.charge "85"`,
		"battery.runtime": `VAR myups battery.runtime "1200"`,
		"ups.status":      `VAR myups ups.status "OL"`,
		"output.power":    `VAR myups output.power "90"`,
	}

	t.Run("handshake precedes variable reads", func(t *testing.T) {
		var gotUser, gotPass string

		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			switch {
			case strings.HasPrefix(cmd, "USERNAME "):
				gotUser = strings.TrimPrefix(cmd, "USERNAME ")
				return "OK\n", false
			case strings.HasPrefix(cmd, "PASSWORD "):
				gotPass = strings.TrimPrefix(cmd, "PASSWORD ")
				return "OK\n", false
			default:
				return respondVars(vars)(cmd)
			}
		})

		client := NewClient(host, port, "myups", "admin", "secret")

		_, err := client.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "admin", gotUser)
		assert.Equal(t, "secret", gotPass)
	})

	t.Run("OK match is case-insensitive", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			if strings.HasPrefix(cmd, "USERNAME ") || strings.HasPrefix(cmd, "PASSWORD ") {
				return "ok\n", false
			}

			return respondVars(vars)(cmd)
		})

		client := NewClient(host, port, "myups", "admin", "secret")

		_, err := client.GetStatus()
		require.NoError(t, err)
	})

	t.Run("rejected username fails the whole operation", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			if strings.HasPrefix(cmd, "USERNAME ") {
				return "ERR ACCESS-DENIED\n", false
			}

			return respondVars(vars)(cmd)
		})

		client := NewClient(host, port, "myups", "admin", "wrong")

		_, err := client.GetStatus()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("rejected password fails the whole operation", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			switch {
			case strings.HasPrefix(cmd, "USERNAME "):
				return "OK\n", false
			case strings.HasPrefix(cmd, "PASSWORD "):
				return "ERR ACCESS-DENIED\n", false
			default:
				return respondVars(vars)(cmd)
			}
		})

		client := NewClient(host, port, "myups", "admin", "wrong")

		_, err := client.GetStatus()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("no handshake without credentials", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			if strings.HasPrefix(cmd, "USERNAME ") || strings.HasPrefix(cmd, "PASSWORD ") {
				return "ERR UNEXPECTED-AUTH\n", false
			}

			return respondVars(vars)(cmd)
		})

		client := NewClient(host, port, "myups", "", "")

		_, err := client.GetStatus()
		require.NoError(t, err)
	})
}

func TestListVariables(t *testing.T) {
	t.Run("preserves protocol order and duplicates, stops at END LIST", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			if !strings.HasPrefix(cmd, "LIST VAR ") {
				return "ERR UNKNOWN-COMMAND\n", false
			}

			return strings.Join([]string{
				"BEGIN LIST VAR myups",
				`VAR myups battery.charge "85"`,
				`VAR myups ups.status "OL CHRG"`,
				`VAR myups battery.charge "86"`,
				"END LIST VAR myups",
				`VAR myups ghost.var "should be ignored"`,
				"",
			}, "\n"), false
		})

		client := NewClient(host, port, "myups", "", "")

		vars, err := client.ListVariables()
		require.NoError(t, err)
		require.Len(t, vars, 3)

		assert.Equal(t, "battery.charge", vars[0].Name)
		assert.Equal(t, "85", vars[0].Value)
		assert.Equal(t, "ups.status", vars[1].Name)
		assert.Equal(t, "OL CHRG", vars[1].Value)
		assert.Equal(t, "battery.charge", vars[2].Name)
		assert.Equal(t, "86", vars[2].Value)
	})

	t.Run("stream end without END LIST terminates the listing", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			if !strings.HasPrefix(cmd, "LIST VAR ") {
				return "ERR UNKNOWN-COMMAND\n", false
			}

			// Connection closes after this write; no END LIST ever arrives.
			return `VAR myups battery.charge "85"` + "\n", true
		})

		client := NewClient(host, port, "myups", "", "")

		vars, err := client.ListVariables()
		require.NoError(t, err)
		require.Len(t, vars, 1)
		assert.Equal(t, "battery.charge", vars[0].Name)
	})

	t.Run("short VAR lines are skipped", func(t *testing.T) {
		host, port := startFakeNUT(t, func(cmd string) (string, bool) {
			if !strings.HasPrefix(cmd, "LIST VAR ") {
				return "ERR UNKNOWN-COMMAND\n", false
			}

			return strings.Join([]string{
				"VAR myups",
				`VAR myups battery.charge "85"`,
				"END LIST VAR myups",
				"",
			}, "\n"), false
		})

		client := NewClient(host, port, "myups", "", "")

		vars, err := client.ListVariables()
		require.NoError(t, err)
		require.Len(t, vars, 1)
	})
}

func TestGetVariableParsing(t *testing.T) {
	t.Run("multi-token values are space-joined and quote-stripped", func(t *testing.T) {
		host, port := startFakeNUT(t, respondVars(map[string]string{
			"battery.charge":  `VAR myups battery.charge "85"`,
			"battery.runtime": `VAR myups battery.runtime "1200"`,
			"ups.status":      `VAR myups ups.status "OB LB DISCHRG"`,
			"output.power":    `VAR myups output.power "90"`,
		}))

		client := NewClient(host, port, "myups", "", "")

		status, err := client.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "OB LB DISCHRG", status.Status)
	})
}
