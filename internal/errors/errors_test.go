// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindInvalidArgument, "invalid input")
	if err.Error() != "InvalidArgument: invalid input" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := Wrap(err, KindBug, "failed to validate")
	want := "Bug: failed to validate: InvalidArgument: invalid input"
	if wrapped.Error() != want {
		t.Errorf("expected %q, got %q", want, wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindInvalidArgument, "invalid input")
	if GetKind(err) != KindInvalidArgument {
		t.Errorf("expected KindInvalidArgument, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindBug, "failed")
	if GetKind(wrapped) != KindBug {
		t.Errorf("expected KindBug, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindVerification, "mismatch")
	err = Attr(err, "interface", "eth0")
	err = Attr(err, "path", "ipv4.address[0]")

	attrs := GetAttributes(err)
	if attrs["interface"] != "eth0" {
		t.Errorf("expected eth0, got %v", attrs["interface"])
	}
	if attrs["path"] != "ipv4.address[0]" {
		t.Errorf("expected path, got %v", attrs["path"])
	}

	wrapped := Wrap(err, KindBug, "retry exhausted")
	wrapped = Attr(wrapped, "attempts", 60)

	allAttrs := GetAttributes(wrapped)
	if allAttrs["interface"] != "eth0" || allAttrs["attempts"] != 60 {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}
