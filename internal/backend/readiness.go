// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonmartin721/living-story-world/internal/config"
)

const (
	HealthPath = "/api/health"

	healthStatusOK = "ok"
)

// Probe checks once whether the backend is accepting requests.
type Probe interface {
	Probe(ctx context.Context) error
	Name() string
}

// NewProbe builds the readiness probe named by kind. The none probe is represented by a nil Probe, the
// supervisor then falls back to the fixed warm-up delay.
func NewProbe(kind, address string, timeout time.Duration) (Probe, error) {
	switch kind {
	case config.ProbeHTTP:
		return NewHTTPProbe("http://"+address, timeout), nil
	case config.ProbeTCP:
		return NewTCPProbe(address, timeout), nil
	case config.ProbeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown readiness probe %q", kind)
	}
}

// TCPProbe considers the backend ready once its port accepts connections.
type TCPProbe struct {
	dialer  *net.Dialer
	address string
}

var _ Probe = (*TCPProbe)(nil)

func NewTCPProbe(address string, timeout time.Duration) *TCPProbe {
	return &TCPProbe{
		dialer:  &net.Dialer{Timeout: timeout},
		address: address,
	}
}

func (p *TCPProbe) Probe(ctx context.Context) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return err
	}

	return conn.Close()
}

func (*TCPProbe) Name() string {
	return config.ProbeTCP
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HTTPProbe considers the backend ready once its health endpoint reports ok.
type HTTPProbe struct {
	client *resty.Client
}

var _ Probe = (*HTTPProbe)(nil)

func NewHTTPProbe(baseURL string, timeout time.Duration) *HTTPProbe {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetCloseConnection(true).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{})

	return &HTTPProbe{client: client}
}

func (p *HTTPProbe) Probe(ctx context.Context) error {
	response, err := p.client.R().
		SetContext(ctx).
		SetResult(&healthResponse{}).
		Get(HealthPath)
	if err != nil {
		return err
	}

	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check returned %s", response.Status())
	}

	health, ok := response.Result().(*healthResponse)
	if !ok || health.Status != healthStatusOK {
		return fmt.Errorf("health check reported %q", response.String())
	}

	return nil
}

func (*HTTPProbe) Name() string {
	return config.ProbeHTTP
}

// restyLogger routes resty's own logging to slog at debug level, failed probes are expected while the
// backend boots.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) {
	slog.Debug("Health check client error", "message", fmt.Sprintf(format, v...))
}

func (restyLogger) Warnf(format string, v ...any) {
	slog.Debug("Health check client warning", "message", fmt.Sprintf(format, v...))
}

func (restyLogger) Debugf(format string, v ...any) {
	slog.Debug("Health check client", "message", fmt.Sprintf(format, v...))
}
