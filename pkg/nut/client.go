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

// Package nut implements a client for the Network UPS Tools (NUT) line
// protocol. Every logical operation opens a fresh TCP connection to the
// management daemon; connections are never reused, trading a small
// handshake cost per cycle for the absence of stale-connection bugs.
package nut

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/rabbitnut/rabbitnut/pkg/models"
)

// Client speaks the NUT protocol to a single UPS device on a single
// management daemon.
type Client struct {
	host     string
	port     int
	name     string
	username string
	password string
}

// NewClient returns a Client for the named device. Username and password
// are optional; authentication is performed only when both are set.
func NewClient(host string, port int, name, username, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		name:     name,
		username: username,
		password: password,
	}
}

// conn bundles a TCP connection with its buffered reader so response
// lines are consumed from a single buffer.
type conn struct {
	raw    net.Conn
	reader *bufio.Reader
}

func (c *conn) close() {
	_ = c.raw.Close()
}

// sendLine writes a single newline-terminated command.
func (c *conn) sendLine(line string) error {
	if _, err := c.raw.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("%w: write command: %w", ErrConnection, err)
	}

	return nil
}

// readLine reads one newline-terminated response line, trimmed.
func (c *conn) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", fmt.Errorf("%w: unexpected end of stream", ErrProtocol)
		}

		if err != io.EOF {
			return "", fmt.Errorf("%w: read response: %w", ErrConnection, err)
		}
	}

	return strings.TrimSpace(line), nil
}

// connect opens a fresh connection and, when credentials are configured,
// authenticates before returning it.
func (c *Client) connect() (*conn, error) {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, addr, err)
	}

	nc := &conn{raw: raw, reader: bufio.NewReader(raw)}

	if c.username != "" && c.password != "" {
		if err := c.authenticate(nc); err != nil {
			nc.close()
			return nil, err
		}
	}

	return nc, nil
}

// authenticate runs the USERNAME/PASSWORD handshake. Each step must be
// answered with a line containing "OK" (case-insensitive); any deviation
// fails the whole operation.
func (c *Client) authenticate(nc *conn) error {
	steps := []struct {
		command, stage string
	}{
		{fmt.Sprintf("USERNAME %s", c.username), "USERNAME"},
		{fmt.Sprintf("PASSWORD %s", c.password), "PASSWORD"},
	}

	for _, step := range steps {
		if err := nc.sendLine(step.command); err != nil {
			return err
		}

		response, err := nc.readLine()
		if err != nil {
			return err
		}

		if !strings.Contains(strings.ToUpper(response), "OK") {
			return fmt.Errorf("%w: at %s: %q", ErrAuthentication, step.stage, response)
		}
	}

	return nil
}

// getVariable issues GET VAR on an established connection and returns the
// quote-stripped value.
func (c *Client) getVariable(nc *conn, variable string) (string, error) {
	if err := nc.sendLine(fmt.Sprintf("GET VAR %s %s", c.name, variable)); err != nil {
		return "", err
	}

	response, err := nc.readLine()
	if err != nil {
		return "", err
	}

	parts := strings.Fields(response)

	switch {
	case len(parts) >= 4 && parts[0] == "VAR":
		return strings.Trim(strings.Join(parts[3:], " "), `"`), nil
	case strings.Contains(response, "ERR"):
		return "", fmt.Errorf("%w: daemon error response: %q", ErrProtocol, response)
	default:
		return "", fmt.Errorf("%w: invalid response: %q", ErrProtocol, response)
	}
}

// GetStatus reads battery.charge, battery.runtime, ups.status and
// output.power over a single fresh connection and assembles a status
// reading.
//
// Charge and runtime values that fail numeric parsing fall back to zero
// rather than failing the read; a missing or unreadable output.power is
// tolerated as absent. The on-battery flag is derived from the raw status
// string containing OB or DISCHRG (the vendor convention, case-sensitive).
func (c *Client) GetStatus() (models.UPSStatus, error) {
	nc, err := c.connect()
	if err != nil {
		return models.UPSStatus{}, err
	}
	defer nc.close()

	chargeRaw, err := c.getVariable(nc, "battery.charge")
	if err != nil {
		return models.UPSStatus{}, err
	}

	charge, err := strconv.ParseFloat(chargeRaw, 64)
	if err != nil {
		charge = 0
	}

	runtimeRaw, err := c.getVariable(nc, "battery.runtime")
	if err != nil {
		return models.UPSStatus{}, err
	}

	runtime, err := strconv.ParseInt(runtimeRaw, 10, 64)
	if err != nil {
		runtime = 0
	}

	status, err := c.getVariable(nc, "ups.status")
	if err != nil {
		return models.UPSStatus{}, err
	}

	onBattery := strings.Contains(status, "OB") || strings.Contains(status, "DISCHRG")

	var outputPower *float64

	if powerRaw, err := c.getVariable(nc, "output.power"); err == nil {
		if power, err := strconv.ParseFloat(powerRaw, 64); err == nil {
			outputPower = &power
		}
	}

	return models.UPSStatus{
		BatteryCharge:  charge,
		BatteryRuntime: runtime,
		Status:         status,
		OnBattery:      onBattery,
		OutputPower:    outputPower,
	}, nil
}

// ListVariables issues LIST VAR and returns the variables in protocol
// order, duplicates preserved. Reading stops at the first line starting
// with "END LIST"; a stream that ends early terminates the listing
// without error.
func (c *Client) ListVariables() ([]models.Variable, error) {
	nc, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer nc.close()

	if err := nc.sendLine(fmt.Sprintf("LIST VAR %s", c.name)); err != nil {
		return nil, err
	}

	vars := make([]models.Variable, 0)

	for {
		line, err := nc.reader.ReadString('\n')
		if err != nil && line == "" {
			break
		}

		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "END LIST") {
			break
		}

		if strings.HasPrefix(line, "VAR") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				vars = append(vars, models.Variable{
					Name:  parts[2],
					Value: strings.Trim(strings.Join(parts[3:], " "), `"`),
				})
			}
		}

		if err != nil {
			break
		}
	}

	return vars, nil
}
