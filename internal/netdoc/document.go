// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netdoc is the wire codec: it converts between the YAML/JSON
// document shape described by the external interface contract and
// model.NetworkState. Field order in the wire structs below is
// significant for YAML output — gopkg.in/yaml.v3 preserves struct
// declaration order, so Name and Kind are declared first to satisfy the
// "name and type print first" requirement without a custom encoder.
package netdoc

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	netconferrors "github.com/netconfd/netconfd/internal/errors"
	"github.com/netconfd/netconfd/internal/model"
)

// document is the top-level wire shape: a single "interfaces" list.
type document struct {
	Interfaces []wireInterface `yaml:"interfaces" json:"interfaces"`
}

type wireInterface struct {
	Name           string          `yaml:"name" json:"name"`
	Kind           string          `yaml:"type" json:"type"`
	State          string          `yaml:"state,omitempty" json:"state,omitempty"`
	MAC            string          `yaml:"mac-address,omitempty" json:"mac-address,omitempty"`
	IPv4           *wireIPConfig   `yaml:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6           *wireIPConfig   `yaml:"ipv6,omitempty" json:"ipv6,omitempty"`
	ControllerName string          `yaml:"controller,omitempty" json:"controller,omitempty"`
	Bridge         *wireBridge     `yaml:"bridge,omitempty" json:"bridge,omitempty"`
	Veth           *wireVeth       `yaml:"veth,omitempty" json:"veth,omitempty"`
}

type wireIPConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	DHCP      bool          `yaml:"dhcp" json:"dhcp"`
	Autoconf  bool          `yaml:"autoconf,omitempty" json:"autoconf,omitempty"`
	Addresses []wireAddress `yaml:"address,omitempty" json:"address,omitempty"`
}

type wireAddress struct {
	IP           string `yaml:"ip" json:"ip"`
	PrefixLength int    `yaml:"prefix-length" json:"prefix-length"`
}

type wireBridge struct {
	Options wireBridgeOptions `yaml:"options" json:"options"`
	Ports   []wireBridgePort  `yaml:"port,omitempty" json:"port,omitempty"`
}

type wireBridgeOptions struct {
	STP wireSTPOptions `yaml:"stp" json:"stp"`
}

type wireSTPOptions struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

type wireBridgePort struct {
	Name           string  `yaml:"name" json:"name"`
	STPHairpinMode *bool   `yaml:"stp-hairpin-mode,omitempty" json:"stp-hairpin-mode,omitempty"`
	STPPathCost    *uint32 `yaml:"stp-path-cost,omitempty" json:"stp-path-cost,omitempty"`
	STPPriority    *uint16 `yaml:"stp-priority,omitempty" json:"stp-priority,omitempty"`
}

type wireVeth struct {
	Peer string `yaml:"peer" json:"peer"`
}

// DecodeYAML parses a YAML document into a NetworkState.
func DecodeYAML(data []byte) (model.NetworkState, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.NetworkState{}, netconferrors.Wrap(err, netconferrors.KindInvalidArgument, "parse YAML document")
	}
	return fromDocument(doc)
}

// DecodeJSON parses a JSON document into a NetworkState.
func DecodeJSON(data []byte) (model.NetworkState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.NetworkState{}, netconferrors.Wrap(err, netconferrors.KindInvalidArgument, "parse JSON document")
	}
	return fromDocument(doc)
}

// EncodeYAML renders state as YAML, interfaces sorted by name with name
// and type printed first.
func EncodeYAML(state model.NetworkState) ([]byte, error) {
	doc := toDocument(state)
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, netconferrors.Wrap(err, netconferrors.KindBug, "render YAML document")
	}
	return out, nil
}

// EncodeJSON renders state as pretty-printed JSON, interfaces sorted by
// name.
func EncodeJSON(state model.NetworkState) ([]byte, error) {
	doc := toDocument(state)
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, netconferrors.Wrap(err, netconferrors.KindBug, "render JSON document")
	}
	return out, nil
}

func fromDocument(doc document) (model.NetworkState, error) {
	state := model.NewNetworkState()
	for _, w := range doc.Interfaces {
		iface, err := fromWireInterface(w)
		if err != nil {
			return model.NetworkState{}, err
		}
		state.Interfaces.Insert(iface)
	}
	return state, nil
}

func fromWireInterface(w wireInterface) (model.Interface, error) {
	base := model.BaseInterface{
		Name:           w.Name,
		Kind:           model.InterfaceKind(w.Kind),
		MAC:            w.MAC,
		ControllerName: w.ControllerName,
	}
	if w.State != "" {
		base.State = model.InterfaceState(w.State)
		base.Presence |= model.PresenceState
	}
	if w.MAC != "" {
		base.Presence |= model.PresenceMAC
	}
	if w.ControllerName != "" {
		base.Presence |= model.PresenceControllerName
	}
	if w.IPv4 != nil {
		base.IPv4 = fromWireIP(w.IPv4)
		base.Presence |= model.PresenceIPv4
	}
	if w.IPv6 != nil {
		base.IPv6 = fromWireIP(w.IPv6)
		base.Presence |= model.PresenceIPv6
	}

	if err := base.Validate(); err != nil {
		return model.Interface{}, netconferrors.Wrap(err, netconferrors.KindInvalidArgument, "validate interface")
	}

	switch {
	case w.Bridge != nil:
		return model.NewLinuxBridge(base, fromWireBridge(w.Bridge)), nil
	case w.Veth != nil:
		return model.NewVeth(base, w.Veth.Peer), nil
	case model.InterfaceKind(w.Kind) == model.KindEthernet || w.Kind == "":
		return model.NewEthernet(base), nil
	default:
		return model.NewUnknown(base, nil), nil
	}
}

func fromWireIP(w *wireIPConfig) *model.IPConfig {
	cfg := &model.IPConfig{
		Enabled:  w.Enabled,
		DHCP:     w.DHCP,
		Autoconf: w.Autoconf,
	}
	cfg.Presence = model.IPPresenceEnabled | model.IPPresenceDHCP
	if w.Autoconf {
		cfg.Presence |= model.IPPresenceAutoconf
	}
	if len(w.Addresses) > 0 {
		cfg.Presence |= model.IPPresenceAddresses
		for _, a := range w.Addresses {
			cfg.Addresses = append(cfg.Addresses, model.IPAddress{IP: a.IP, PrefixLength: a.PrefixLength})
		}
	}
	return cfg
}

func fromWireBridge(w *wireBridge) model.LinuxBridgeConfig {
	cfg := model.LinuxBridgeConfig{
		Options: model.LinuxBridgeOptions{STP: model.LinuxBridgeSTPOptions{Enabled: w.Options.STP.Enabled}},
	}
	for _, p := range w.Ports {
		cfg.Ports = append(cfg.Ports, model.LinuxBridgePort{
			Name:           p.Name,
			STPHairpinMode: p.STPHairpinMode,
			STPPathCost:    p.STPPathCost,
			STPPriority:    p.STPPriority,
		})
	}
	return cfg
}

func toDocument(state model.NetworkState) document {
	doc := document{}
	for _, iface := range state.Interfaces.Sorted() {
		doc.Interfaces = append(doc.Interfaces, toWireInterface(iface))
	}
	return doc
}

func toWireInterface(iface model.Interface) wireInterface {
	w := wireInterface{
		Name:           iface.Base.Name,
		Kind:           string(iface.Base.Kind),
		State:          string(iface.Base.State),
		MAC:            iface.Base.MAC,
		ControllerName: iface.Base.ControllerName,
	}
	if iface.Base.IPv4 != nil {
		w.IPv4 = toWireIP(iface.Base.IPv4)
	}
	if iface.Base.IPv6 != nil {
		w.IPv6 = toWireIP(iface.Base.IPv6)
	}
	if iface.Bridge != nil {
		w.Bridge = toWireBridge(iface.Bridge)
	}
	if iface.Veth != nil {
		w.Veth = &wireVeth{Peer: iface.Veth.Peer}
	}
	return w
}

func toWireIP(cfg *model.IPConfig) *wireIPConfig {
	w := &wireIPConfig{Enabled: cfg.Enabled, DHCP: cfg.DHCP, Autoconf: cfg.Autoconf}
	for _, a := range cfg.Addresses {
		w.Addresses = append(w.Addresses, wireAddress{IP: a.IP, PrefixLength: a.PrefixLength})
	}
	return w
}

func toWireBridge(cfg *model.LinuxBridgeConfig) *wireBridge {
	w := &wireBridge{Options: wireBridgeOptions{STP: wireSTPOptions{Enabled: cfg.Options.STP.Enabled}}}
	for _, p := range cfg.Ports {
		w.Ports = append(w.Ports, wireBridgePort{
			Name:           p.Name,
			STPHairpinMode: p.STPHairpinMode,
			STPPathCost:    p.STPPathCost,
			STPPriority:    p.STPPriority,
		})
	}
	return w
}
