// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

// NetworkState is the top-level document: a named collection of
// interfaces plus the capture-time flag recording whether it reflects
// only kernel-visible state (no NetworkManager profiles consulted).
type NetworkState struct {
	Interfaces Collection
	KernelOnly bool
}

// NewNetworkState returns an empty NetworkState.
func NewNetworkState() NetworkState {
	return NetworkState{Interfaces: NewCollection()}
}

// TidyUp normalizes every interface in the state; see Interface.TidyUp.
// TidyUp can change an interface's Base.Kind (Veth relabels to Ethernet),
// which changes its (name, kind) key, so the stale key is removed before
// the tidied copy is reinserted under its new one.
func (s *NetworkState) TidyUp() {
	for _, iface := range s.Interfaces.Sorted() {
		name, oldKind := iface.Base.Name, iface.Base.Kind
		iface.TidyUp()
		if iface.Base.Kind != oldKind {
			s.Interfaces.Delete(name, oldKind)
		}
		s.Interfaces.Insert(iface)
	}
}

// Merge layers other on top of s, other taking priority; it is the
// state-level counterpart of Collection.Update.
func (s *NetworkState) Merge(other NetworkState) []string {
	warnings := s.Interfaces.Update(other.Interfaces)
	s.KernelOnly = s.KernelOnly || other.KernelOnly
	return warnings
}
