// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

import (
	"fmt"
	"sort"

	netconferrors "github.com/netconfd/netconfd/internal/errors"
)

// ifaceKey is the Collection's primary key: Go's lack of pattern-match
// guards over tagged unions means "same name, different kind" has to be
// caught explicitly at insert/lookup time rather than falling out of a
// match expression, so Collection keys on (name, kind) rather than name
// alone.
type ifaceKey struct {
	name string
	kind InterfaceKind
}

// Collection is an interface set keyed by (name, kind), with at most one
// entry per key.
type Collection struct {
	byKey map[ifaceKey]*Interface
}

// NewCollection returns an empty Collection.
func NewCollection() Collection {
	return Collection{byKey: map[ifaceKey]*Interface{}}
}

// Insert adds iface, overwriting any existing entry with the same
// (name, kind).
func (c *Collection) Insert(iface Interface) {
	if c.byKey == nil {
		c.byKey = map[ifaceKey]*Interface{}
	}
	ifaceCopy := iface
	c.byKey[ifaceKey{name: iface.Base.Name, kind: iface.Base.Kind}] = &ifaceCopy
}

// Delete removes the entry keyed by (name, kind), if any.
func (c *Collection) Delete(name string, kind InterfaceKind) {
	delete(c.byKey, ifaceKey{name: name, kind: kind})
}

// Get is the secondary, name-only lookup: it succeeds iff exactly one
// entry bears that name, regardless of kind. Ambiguous or absent names
// both report not-found; callers that need to distinguish "ambiguous"
// from "absent" should use GetMut with KindUnknown instead.
func (c *Collection) Get(name string) (*Interface, bool) {
	iface, ok, err := c.GetMut(name, KindUnknown)
	if err != nil {
		return nil, false
	}
	return iface, ok
}

// GetMut looks up an interface by (name, kind). If kind is anything but
// KindUnknown, it is an exact-match lookup on the key. If kind is
// KindUnknown, it falls back to scanning by name alone: it returns the
// unique match if there is exactly one, and fails with InvalidArgument
// if the name is ambiguous (e.g. two OVS entries sharing a name but
// differing in kind).
func (c *Collection) GetMut(name string, kind InterfaceKind) (*Interface, bool, error) {
	if kind != KindUnknown {
		iface, ok := c.byKey[ifaceKey{name: name, kind: kind}]
		return iface, ok, nil
	}

	var match *Interface
	count := 0
	for k, iface := range c.byKey {
		if k.name != name {
			continue
		}
		match = iface
		count++
	}
	switch count {
	case 0:
		return nil, false, nil
	case 1:
		return match, true, nil
	default:
		return nil, false, netconferrors.Errorf(netconferrors.KindInvalidArgument,
			"%q: ambiguous unknown-kind lookup matches %d interfaces with different kinds", name, count)
	}
}

// Len reports the number of interfaces in the collection.
func (c *Collection) Len() int { return len(c.byKey) }

// Sorted returns the collection's interfaces ordered by (name, kind), for
// deterministic iteration (serialization, logging, test assertions).
func (c *Collection) Sorted() []Interface {
	keys := make([]ifaceKey, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].kind < keys[j].kind
	})
	out := make([]Interface, 0, len(keys))
	for _, k := range keys {
		out = append(out, *c.byKey[k])
	}
	return out
}

// Update merges other on top of c: entries present in both (same
// (name, kind)) merge via Interface.Update (other wins), entries present
// only in other are inserted as-is. Warnings from individual merges are
// concatenated.
func (c *Collection) Update(other Collection) []string {
	var warnings []string
	for _, o := range other.Sorted() {
		key := ifaceKey{name: o.Base.Name, kind: o.Base.Kind}
		if existing, ok := c.byKey[key]; ok {
			warnings = append(warnings, existing.Update(o)...)
		} else {
			oCopy := o
			if c.byKey == nil {
				c.byKey = map[ifaceKey]*Interface{}
			}
			c.byKey[key] = &oCopy
		}
	}
	return warnings
}

// Diff partitions the differences between desired (c) and current into
// three collections: interfaces to add (present in desired, absent in
// current), interfaces to change (present in both but the merged overlay
// desired ⊕ current is not equal to current under pre-verify cleanup —
// the "change" entry carries that merged form, not the raw desired one),
// and interfaces to delete (desired.State==Absent and present in
// current). Lookups join on (name, kind), falling back to the unknown-
// kind name scan when the desired entry's kind is unknown.
func (c *Collection) Diff(current Collection) (add, change, remove Collection, err error) {
	add, change, remove = NewCollection(), NewCollection(), NewCollection()

	for _, d := range c.Sorted() {
		cur, exists, lookupErr := current.GetMut(d.Base.Name, d.Base.Kind)
		if lookupErr != nil {
			return Collection{}, Collection{}, Collection{}, lookupErr
		}

		if d.IsAbsent() {
			if exists {
				remove.Insert(*cur)
			}
			continue
		}

		if !exists {
			add.Insert(d)
			continue
		}

		merged := cur.Clone()
		merged.Update(d)

		eq, cmpErr := equalUnderCleanup(merged, *cur)
		if cmpErr != nil {
			return Collection{}, Collection{}, Collection{}, netconferrors.Wrap(cmpErr, netconferrors.KindBug,
				fmt.Sprintf("compare desired and current state for %q", d.Base.Name))
		}
		if !eq {
			change.Insert(merged)
		}
	}

	return add, change, remove, nil
}

// DependencyOrder returns the collection's interfaces ordered so that
// controllers precede their ports (reverse=false, the order apply must
// use so bridges exist before their ports reference them) or ports
// precede their controllers (reverse=true, the order teardown must use so
// a bridge is never deleted while ports still reference it).
func (c *Collection) DependencyOrder(reverse bool) []Interface {
	all := c.Sorted()

	childOf := map[string]string{}
	for _, iface := range all {
		for _, port := range iface.Ports() {
			childOf[port] = iface.Base.Name
		}
	}

	depth := make(map[string]int, len(all))
	var depthOf func(name string, seen map[string]bool) int
	depthOf = func(name string, seen map[string]bool) int {
		if d, ok := depth[name]; ok {
			return d
		}
		parent, hasParent := childOf[name]
		if !hasParent || seen[name] {
			depth[name] = 0
			return 0
		}
		seen[name] = true
		d := depthOf(parent, seen) + 1
		depth[name] = d
		return d
	}
	for _, iface := range all {
		depthOf(iface.Base.Name, map[string]bool{})
	}

	sort.SliceStable(all, func(i, j int) bool {
		di, dj := depth[all[i].Base.Name], depth[all[j].Base.Name]
		if reverse {
			return di > dj
		}
		return di < dj
	})
	return all
}
