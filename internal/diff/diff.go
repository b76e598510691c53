// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package diff implements the canonical JSON-tree diff used to verify
// applied network state against the kernel's reported state. Two decoded
// JSON values (maps, slices, and scalars as produced by encoding/json) are
// walked depth-first in lexicographic key order; the desired side is the
// contract, so a key present in desired but absent in current is a
// mismatch, while extra keys on the current side alone are ignored.
package diff

import (
	"fmt"
	"sort"
)

// Diff is a single point of disagreement between a desired and a current
// JSON value, located by its dotted Path.
type Diff struct {
	Path    string
	Desired any
	Current any
	Reason  string
}

// String renders a Diff for inclusion in a verification error message.
func (d *Diff) String() string {
	return fmt.Sprintf("%s: %s (desired=%#v, current=%#v)", d.Path, d.Reason, d.Desired, d.Current)
}

// Difference walks desired and current depth-first and returns the first
// mismatch found under path, or nil if desired's contract is fully
// satisfied by current. Maps are visited in sorted key order so that the
// result is deterministic across runs.
func Difference(path string, desired, current any) *Diff {
	if desired == nil {
		return nil
	}
	if current == nil {
		return &Diff{Path: path, Desired: desired, Current: current, Reason: "missing in current state"}
	}

	switch dv := desired.(type) {
	case map[string]any:
		cv, ok := current.(map[string]any)
		if !ok {
			return &Diff{Path: path, Desired: desired, Current: current, Reason: "type mismatch: expected object"}
		}
		keys := make([]string, 0, len(dv))
		for k := range dv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			cchild, present := cv[k]
			if !present {
				return &Diff{Path: childPath, Desired: dv[k], Current: nil, Reason: "missing in current state"}
			}
			if d := Difference(childPath, dv[k], cchild); d != nil {
				return d
			}
		}
		return nil

	case []any:
		cv, ok := current.([]any)
		if !ok {
			return &Diff{Path: path, Desired: desired, Current: current, Reason: "type mismatch: expected array"}
		}
		if len(dv) != len(cv) {
			return &Diff{Path: path, Desired: desired, Current: current, Reason: "array length mismatch"}
		}
		for idx, dItem := range dv {
			childPath := fmt.Sprintf("%s[%d]", path, idx)
			if d := Difference(childPath, dItem, cv[idx]); d != nil {
				return d
			}
		}
		return nil

	default:
		if desired != current {
			return &Diff{Path: path, Desired: desired, Current: current, Reason: "value mismatch"}
		}
		return nil
	}
}
