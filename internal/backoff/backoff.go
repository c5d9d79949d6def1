// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonmartin721/living-story-world/internal/config"
)

const (
	RandomizationFactor = 0.10
	Multiplier          = backoff.DefaultMultiplier
)

type Settings struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// FromReadiness converts the readiness configuration into backoff settings.
func FromReadiness(readiness *config.Readiness) *Settings {
	return &Settings{
		InitialInterval:     readiness.InitialInterval,
		MaxInterval:         readiness.MaxInterval,
		MaxElapsedTime:      readiness.MaxElapsedTime,
		Multiplier:          readiness.Multiplier,
		RandomizationFactor: readiness.RandomizationFactor,
	}
}

// WaitUntil retries operation until it succeeds, returns a backoff.Permanent error, the context is done or
// MaxElapsedTime has passed. It returns the number of attempts made alongside the last error.
func WaitUntil(
	ctx context.Context,
	backoffSettings *Settings,
	operation backoff.Operation,
) (int, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = backoffSettings.InitialInterval
	eb.MaxInterval = backoffSettings.MaxInterval
	eb.MaxElapsedTime = backoffSettings.MaxElapsedTime
	eb.RandomizationFactor = backoffSettings.RandomizationFactor
	eb.Multiplier = backoffSettings.Multiplier

	backoffWithContext := backoff.WithContext(eb, ctx)

	attempts := 0
	counted := func() error {
		attempts++
		return operation()
	}

	notify := func(err error, next time.Duration) {
		slog.DebugContext(ctx, "Operation failed, retrying", "attempt", attempts, "retry_in", next, "error", err)
	}

	err := backoff.RetryNotify(counted, backoffWithContext, notify)

	return attempts, err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
