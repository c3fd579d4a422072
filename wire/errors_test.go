// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsKind(t *testing.T) {
	err := NewError(KindUnknownClass, "class %q is not registered", "Widget")

	if !IsKind(err, KindUnknownClass) {
		t.Error("IsKind should match the error's own kind")
	}
	if IsKind(err, KindObjectNotFound) {
		t.Error("IsKind should not match a different kind")
	}
	if IsKind(errors.New("plain"), KindUnknownClass) {
		t.Error("IsKind should not match a plain error")
	}
	if IsKind(nil, KindUnknownClass) {
		t.Error("IsKind should not match nil")
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := NewError(KindMethodNotFound, "no method %q", "Frobnicate")
	outer := fmt.Errorf("calling object 7: %w", inner)

	if !IsKind(outer, KindMethodNotFound) {
		t.Error("IsKind should see through fmt.Errorf wrapping")
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("division by zero")
	err := WrapError(KindMethodInvocationFailed, cause, "method %q failed", "Divide")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("message should carry the cause text, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), string(KindMethodInvocationFailed)) {
		t.Errorf("message should carry the kind, got %q", err.Error())
	}
}
