// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package window

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonmartin721/living-story-world/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailer(t *testing.T) {
	logFile := helpers.WriteFileWithErrorCheck(t, t.TempDir(), "backend.log", "INFO: before the tailer started\n")
	logLine := "INFO:     Application startup complete."

	tailer, err := NewTailer(logFile)
	require.NoError(t, err)
	defer tailer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data := make(chan string, 100)
	go tailer.Tail(ctx, data)

	time.Sleep(100 * time.Millisecond)
	file, err := os.OpenFile(logFile, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = file.WriteString(logLine + "\r\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	select {
	case line := <-data:
		assert.Equal(t, logLine, line)
	case <-ctx.Done():
		t.Fatal("no log line received")
	}
}

func TestTailer_MissingFile(t *testing.T) {
	tailer, err := NewTailer(filepath.Join(t.TempDir(), "not-yet.log"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tailer.Tail(ctx, make(chan string))
		close(done)
	}()

	cancel()
	<-done
	tailer.Stop()
}
