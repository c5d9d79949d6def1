// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

//go:build unix && !linux

package backend

import "syscall"

func setParentDeathSignal(*syscall.SysProcAttr) {}
