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
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rabbitnut/rabbitnut/pkg/config"
	srhttp "github.com/rabbitnut/rabbitnut/pkg/http"
	"github.com/rabbitnut/rabbitnut/pkg/logger"
	"github.com/rabbitnut/rabbitnut/pkg/models"
)

const readHeaderTimeout = 10 * time.Second

// Server exposes the latest published record over HTTP. It runs
// concurrently with the monitor loop and keeps answering requests with
// the last snapshot even while a shutdown countdown blocks polling.
type Server struct {
	cfg    config.MetricsConfig
	store  *Store
	logger logger.Logger
}

// NewServer returns a metrics Server reading from the given store.
func NewServer(cfg config.MetricsConfig, store *Store, log logger.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		logger: log,
	}
}

// Handler builds the route table. Bearer authentication applies to
// /metrics only; /health always answers 200.
func (s *Server) Handler() http.Handler {
	auth := srhttp.BearerAuthMiddleware(s.cfg.BearerToken)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", auth(http.HandlerFunc(s.handleMetrics)))

	return srhttp.RequestLoggingMiddleware(s.logger)(mux)
}

// Start binds the listener and begins serving in the background. A bind
// failure is returned to the caller, which treats it as startup-fatal;
// later serve errors are only logged.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind metrics listener on %s: %w", addr, err)
	}

	s.logger.Info().Str("addr", addr).Msg("Starting metrics server")

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	record, ok := s.store.Current()
	if !ok {
		http.Error(w, "No metrics available", http.StatusServiceUnavailable)
		return
	}

	if s.cfg.Format == "json" {
		s.writeJSON(w, record)
		return
	}

	w.Header().Set("Content-Type", OpenMetricsContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(FormatOpenMetrics(&record)))
}

func (s *Server) writeJSON(w http.ResponseWriter, record models.Metrics) {
	response := models.JSONMetricsResponse{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
		Metrics:   record,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode metrics response")
	}
}
