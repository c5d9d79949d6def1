// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package id

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UUIDGenerator defines a function type for generating UUIDs.
type UUIDGenerator func() (uuid.UUID, error)

var defaultUUIDGenerator UUIDGenerator = uuid.NewV7

// GenerateMessageID generates a unique ID for a bus message or a lifecycle operation, falling back to a
// hash of the current time if a UUIDv7 cannot be generated.
func GenerateMessageID() string {
	uuidv7, err := defaultUUIDGenerator()
	if err != nil {
		slog.Debug("Issue generating uuidv7, using sha256 and timestamp instead", "error", err)
		return Generate("%s", time.Now().String())
	}

	return uuidv7.String()
}
