// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package model implements the polymorphic interface model: the variant
// type over interface kinds, the keyed interface collection, and the
// top-level network state document that the reconciler and orchestrator
// operate on.
package model

// InterfaceKind is a closed enumeration with an open escape: any
// kebab-case string not in the recognized set is accepted and carried
// through as-is ("other").
type InterfaceKind string

const (
	KindBond         InterfaceKind = "bond"
	KindLinuxBridge  InterfaceKind = "linux-bridge"
	KindDummy        InterfaceKind = "dummy"
	KindEthernet     InterfaceKind = "ethernet"
	KindLoopback     InterfaceKind = "loopback"
	KindMacVlan      InterfaceKind = "macvlan"
	KindMacVtap      InterfaceKind = "macvtap"
	KindOvsInterface InterfaceKind = "ovs-interface"
	KindTun          InterfaceKind = "tun"
	KindVeth         InterfaceKind = "veth"
	KindVlan         InterfaceKind = "vlan"
	KindVrf          InterfaceKind = "vrf"
	KindVxlan        InterfaceKind = "vxlan"
	KindUnknown      InterfaceKind = "unknown"
)

var recognizedKinds = map[InterfaceKind]bool{
	KindBond: true, KindLinuxBridge: true, KindDummy: true, KindEthernet: true,
	KindLoopback: true, KindMacVlan: true, KindMacVtap: true, KindOvsInterface: true,
	KindTun: true, KindVeth: true, KindVlan: true, KindVrf: true, KindVxlan: true,
	KindUnknown: true,
}

// IsRecognized reports whether k is one of the named kinds rather than an
// "other" escape value.
func (k InterfaceKind) IsRecognized() bool {
	return recognizedKinds[k]
}

// String returns the canonical kebab-case form.
func (k InterfaceKind) String() string {
	if k == "" {
		return string(KindUnknown)
	}
	return string(k)
}

// InterfaceState is the desired or observed administrative state of an
// interface.
type InterfaceState string

const (
	StateUp      InterfaceState = "up"
	StateDown    InterfaceState = "down"
	StateAbsent  InterfaceState = "absent"
	StateUnknown InterfaceState = "unknown"
)

func (s InterfaceState) String() string {
	if s == "" {
		return string(StateUnknown)
	}
	return string(s)
}
