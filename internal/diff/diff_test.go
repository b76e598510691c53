// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package diff

import "testing"

func TestDifference_NoMismatch(t *testing.T) {
	desired := map[string]any{"name": "eth0", "state": "up"}
	current := map[string]any{"name": "eth0", "state": "up", "extra": "ignored"}

	if d := Difference("iface", desired, current); d != nil {
		t.Fatalf("expected no diff, got %s", d.String())
	}
}

func TestDifference_MissingKey(t *testing.T) {
	desired := map[string]any{"name": "eth0", "state": "up"}
	current := map[string]any{"name": "eth0"}

	d := Difference("iface", desired, current)
	if d == nil {
		t.Fatal("expected a diff")
	}
	if d.Path != "iface.state" {
		t.Fatalf("expected path iface.state, got %s", d.Path)
	}
}

func TestDifference_ValueMismatch(t *testing.T) {
	desired := map[string]any{"state": "up"}
	current := map[string]any{"state": "down"}

	d := Difference("iface", desired, current)
	if d == nil {
		t.Fatal("expected a diff")
	}
	if d.Reason != "value mismatch" {
		t.Fatalf("expected value mismatch, got %s", d.Reason)
	}
}

func TestDifference_NestedObjects(t *testing.T) {
	desired := map[string]any{
		"bridge": map[string]any{"options": map[string]any{"stp": map[string]any{"enabled": true}}},
	}
	current := map[string]any{
		"bridge": map[string]any{"options": map[string]any{"stp": map[string]any{"enabled": false}}},
	}

	d := Difference("br0", desired, current)
	if d == nil {
		t.Fatal("expected a diff")
	}
	if d.Path != "br0.bridge.options.stp.enabled" {
		t.Fatalf("unexpected path: %s", d.Path)
	}
}

func TestDifference_ArrayLengthMismatch(t *testing.T) {
	desired := map[string]any{"address": []any{"10.0.0.1"}}
	current := map[string]any{"address": []any{}}

	d := Difference("eth0", desired, current)
	if d == nil {
		t.Fatal("expected a diff")
	}
	if d.Reason != "array length mismatch" {
		t.Fatalf("expected array length mismatch, got %s", d.Reason)
	}
}

func TestDifference_ExtraKeysInCurrentIgnored(t *testing.T) {
	desired := map[string]any{"name": "br0"}
	current := map[string]any{"name": "br0", "mtu": float64(1500), "driver": "bridge"}

	if d := Difference("br0", desired, current); d != nil {
		t.Fatalf("extra current-only keys must not produce a diff: %s", d.String())
	}
}

func TestDifference_MissingInCurrentEntirely(t *testing.T) {
	d := Difference("eth0", map[string]any{"name": "eth0"}, nil)
	if d == nil {
		t.Fatal("expected a diff when current is nil")
	}
	if d.Reason != "missing in current state" {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}
