// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	filePermission = 0o700
)

func CreateDirWithErrorCheck(t testing.TB, dirName string) {
	t.Helper()

	err := os.MkdirAll(dirName, filePermission)

	require.NoError(t, err)
}

func WriteFileWithErrorCheck(t testing.TB, dir, fileName, content string) string {
	t.Helper()

	path := filepath.Join(dir, fileName)
	err := os.WriteFile(path, []byte(content), filePermission)
	require.NoError(t, err)

	return path
}

func ReadFileWithErrorCheck(t testing.TB, fileName string) string {
	t.Helper()

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)

	return string(content)
}
