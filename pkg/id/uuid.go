// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Generate creates a stable UUID from the formatted input. The same input always yields the same ID, which
// is how a shell instance is identified across restarts (executable path plus backend address).
func Generate(format string, a ...any) string {
	f := ""
	if format != "" {
		f = format
	}

	h := sha256.New()
	_, _ = h.Write([]byte(fmt.Sprintf(f, a...)))
	sum := hex.EncodeToString(h.Sum(nil))

	return uuid.NewMD5(uuid.Nil, []byte(sum)).String()
}
