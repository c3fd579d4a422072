// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel helpers for tests of asynchronous
// code. Each helper encapsulates the select-with-timeout safety valve
// so individual tests never hang on a channel that will not deliver.
package testutil
