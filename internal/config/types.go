// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	ProbeHTTP = "http"
	ProbeTCP  = "tcp"
	ProbeNone = "none"
)

type (
	Config struct {
		Version     string     `yaml:"-"`
		Path        string     `yaml:"-"`
		UUID        string     `yaml:"-"`
		Log         *Log       `yaml:"-" mapstructure:"log"`
		Backend     *Backend   `yaml:"-" mapstructure:"backend"`
		Readiness   *Readiness `yaml:"-" mapstructure:"readiness"`
		Shutdown    *Shutdown  `yaml:"-" mapstructure:"shutdown"`
		Monitor     *Monitor   `yaml:"-" mapstructure:"monitor"`
		Headless    bool       `yaml:"-" mapstructure:"headless"`
		OpenBrowser bool       `yaml:"-" mapstructure:"open_browser"`
		QueueSize   int        `yaml:"-" mapstructure:"queue_size"`
	}

	Log struct {
		Level string `yaml:"-" mapstructure:"level"`
		Path  string `yaml:"-" mapstructure:"path"`
	}

	// Backend describes where the supervised backend can be reached and where its output goes.
	// The launch command is not part of the configuration.
	Backend struct {
		Host       string `yaml:"-" mapstructure:"host"`
		WorkingDir string `yaml:"-" mapstructure:"working_dir"`
		LogPath    string `yaml:"-" mapstructure:"log_path"`
		Port       int    `yaml:"-" mapstructure:"port"`
	}

	Readiness struct {
		Probe               string        `yaml:"-" mapstructure:"probe"`
		WarmUp              time.Duration `yaml:"-" mapstructure:"warm_up"`
		Timeout             time.Duration `yaml:"-" mapstructure:"timeout"`
		InitialInterval     time.Duration `yaml:"-" mapstructure:"initial_interval"`
		MaxInterval         time.Duration `yaml:"-" mapstructure:"max_interval"`
		MaxElapsedTime      time.Duration `yaml:"-" mapstructure:"max_elapsed_time"`
		Multiplier          float64       `yaml:"-" mapstructure:"multiplier"`
		RandomizationFactor float64       `yaml:"-" mapstructure:"randomization_factor"`
	}

	Shutdown struct {
		GracePeriod time.Duration `yaml:"-" mapstructure:"grace_period"`
		KillTimeout time.Duration `yaml:"-" mapstructure:"kill_timeout"`
	}

	Monitor struct {
		Frequency time.Duration `yaml:"-" mapstructure:"frequency"`
	}
)

// Address returns the host:port the backend listens on.
func (b *Backend) Address() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// URL returns the base URL of the backend web interface.
func (b *Backend) URL() string {
	return "http://" + b.Address()
}

// Timeout bounds a whole shutdown: the grace period, the kill timeout and a second for bookkeeping.
func (s *Shutdown) Timeout() time.Duration {
	return s.GracePeriod + s.KillTimeout + time.Second
}

func (c *Config) Validate() error {
	var err error

	if c.Backend == nil || c.Readiness == nil || c.Shutdown == nil || c.Monitor == nil {
		return errors.New("incomplete configuration")
	}

	if c.Backend.Host == "" {
		err = errors.Join(err, errors.New("backend host must not be empty"))
	}

	if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
		err = errors.Join(err, fmt.Errorf("backend port %d is out of range", c.Backend.Port))
	}

	switch c.Readiness.Probe {
	case ProbeHTTP, ProbeTCP, ProbeNone:
	default:
		err = errors.Join(err, fmt.Errorf("unknown readiness probe %q, expected one of %s, %s, %s",
			c.Readiness.Probe, ProbeHTTP, ProbeTCP, ProbeNone))
	}

	if c.Readiness.Probe != ProbeNone && c.Readiness.MaxElapsedTime <= 0 {
		err = errors.Join(err, errors.New("readiness max elapsed time must be positive"))
	}

	if c.Shutdown.GracePeriod < 0 || c.Shutdown.KillTimeout < 0 {
		err = errors.Join(err, errors.New("shutdown timeouts must not be negative"))
	}

	if c.Monitor.Frequency <= 0 {
		err = errors.Join(err, errors.New("monitor frequency must be positive"))
	}

	if c.QueueSize <= 0 {
		err = errors.Join(err, errors.New("queue size must be positive"))
	}

	return err
}
