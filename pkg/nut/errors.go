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

import "errors"

// The client reports failures as one of a closed set of error kinds so
// callers can branch with errors.Is instead of matching message text.
var (
	// ErrConnection wraps TCP connect and I/O failures.
	ErrConnection = errors.New("nut: connection error")
	// ErrAuthentication wraps USERNAME/PASSWORD handshake rejections.
	ErrAuthentication = errors.New("nut: authentication failed")
	// ErrProtocol wraps malformed lines, explicit ERR responses and
	// premature stream ends.
	ErrProtocol = errors.New("nut: protocol error")
)
