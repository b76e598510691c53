// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernelnet is the kernel backend adapter: it reads and writes
// link-layer state through the vishvananda/netlink library, mapping
// between kernel link records and the model's interface collection. A
// LinkSource abstraction separates the real netlink-backed provider from
// an in-memory fake used by tests, mirroring the split the rest of the
// codebase uses for its own kernel-facing subsystems.
package kernelnet

import (
	"fmt"
	"net"
	"runtime"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	netconferrors "github.com/netconfd/netconfd/internal/errors"
	"github.com/netconfd/netconfd/internal/model"
)

// link is the minimal per-interface record LinkSource hands back; it
// stays decoupled from netlink.Link so the fake provider doesn't need to
// construct real kernel types.
type link struct {
	name       string
	kind       string
	operUp     bool
	mac        string
	controller string
	addrs4     []addr
	addrs6     []addr
	dhcp4      bool
	dhcp6      bool
}

type addr struct {
	ip           string
	prefixLength int
	permanent    bool
}

// LinkSource abstracts link enumeration and mutation so Adapter can run
// against the real kernel or an in-memory fake.
type LinkSource interface {
	List() ([]link, error)
	Apply(l link) error
	Delete(name string) error
}

// Adapter implements the kernel backend described by the interface
// model: Retrieve builds a model.NetworkState from whatever the
// LinkSource currently reports, and Apply pushes add/change/delete state
// through it in the required order.
type Adapter struct {
	source LinkSource
}

// NewAdapter wraps source in an Adapter.
func NewAdapter(source LinkSource) *Adapter {
	return &Adapter{source: source}
}

// NewRealAdapter returns an Adapter backed by the host's netlink socket,
// optionally scoped to a non-default network namespace.
func NewRealAdapter(opts ...RealAdapterOption) *Adapter {
	s := &netlinkSource{}
	for _, opt := range opts {
		opt(s)
	}
	return NewAdapter(s)
}

// RealAdapterOption configures the real, netlink-backed LinkSource.
type RealAdapterOption func(*netlinkSource)

// WithNetns scopes every netlink call the adapter makes to the named
// network namespace (as found under /var/run/netns) instead of the
// caller's default namespace.
func WithNetns(name string) RealAdapterOption {
	return func(s *netlinkSource) { s.netnsName = name }
}

// Retrieve builds the current NetworkState as seen by the kernel. Loopback
// and tun links are dropped (unrepresented by the model); veth links are
// folded into Ethernet, matching the model's "veth surfaces as ethernet"
// normalization. A controlled port never reports its own IP config.
func (a *Adapter) Retrieve() (model.NetworkState, error) {
	links, err := a.source.List()
	if err != nil {
		return model.NetworkState{}, netconferrors.Wrap(err, netconferrors.KindPluginFailure, "list kernel links")
	}

	state := model.NewNetworkState()
	state.KernelOnly = true

	for _, l := range links {
		kind := mapLinkKind(l.kind)
		if kind == "" {
			continue
		}

		base := model.BaseInterface{
			Name: l.name,
			Kind: kind,
			MAC:  l.mac,
		}
		if l.operUp {
			base.State = model.StateUp
		} else {
			base.State = model.StateDown
		}
		if l.controller != "" {
			base.ControllerName = l.controller
		} else {
			base.IPv4 = toIPConfig(l.addrs4, l.dhcp4)
			base.IPv6 = toIPConfig(l.addrs6, l.dhcp6)
		}

		var iface model.Interface
		switch kind {
		case model.KindLinuxBridge:
			iface = model.NewLinuxBridge(base, model.LinuxBridgeConfig{})
		default:
			iface = model.NewEthernet(base)
		}
		state.Interfaces.Insert(iface)
	}

	return state, nil
}

// Apply pushes add, then change, then delete through the LinkSource,
// skipping unknown-kind and down interfaces as the model specifies.
// Errors from the collaborator are wrapped as PluginFailure.
func (a *Adapter) Apply(add, change, remove model.NetworkState) error {
	for _, iface := range add.Interfaces.Sorted() {
		if err := a.applyOne(iface); err != nil {
			return err
		}
	}
	for _, iface := range change.Interfaces.Sorted() {
		if err := a.applyOne(iface); err != nil {
			return err
		}
	}
	for _, iface := range remove.Interfaces.Sorted() {
		if err := a.source.Delete(iface.Base.Name); err != nil {
			return netconferrors.Wrap(err, netconferrors.KindPluginFailure,
				fmt.Sprintf("delete link %q", iface.Base.Name))
		}
	}
	return nil
}

func (a *Adapter) applyOne(iface model.Interface) error {
	if iface.Base.Kind == model.KindUnknown || iface.Base.State == model.StateDown {
		return nil
	}
	l := link{
		name:   iface.Base.Name,
		kind:   string(iface.Base.Kind),
		operUp: iface.Base.State == model.StateUp,
		mac:    iface.Base.MAC,
	}
	if iface.Base.IPv4 != nil {
		l.dhcp4 = iface.Base.IPv4.DHCP
		for _, a := range iface.Base.IPv4.Addresses {
			l.addrs4 = append(l.addrs4, addr{ip: a.IP, prefixLength: a.PrefixLength})
		}
	}
	if iface.Base.IPv6 != nil {
		l.dhcp6 = iface.Base.IPv6.DHCP
		for _, a := range iface.Base.IPv6.Addresses {
			l.addrs6 = append(l.addrs6, addr{ip: a.IP, prefixLength: a.PrefixLength})
		}
	}
	if err := a.source.Apply(l); err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure,
			fmt.Sprintf("apply link %q", iface.Base.Name))
	}
	return nil
}

// mapLinkKind maps a kernel link-type string to a model.InterfaceKind,
// returning "" for kinds the model does not represent.
func mapLinkKind(kernelType string) model.InterfaceKind {
	switch kernelType {
	case "bridge":
		return model.KindLinuxBridge
	case "veth", "device", "ethernet":
		return model.KindEthernet
	case "bond":
		return model.KindBond
	case "vlan":
		return model.KindVlan
	case "vxlan":
		return model.KindVxlan
	case "loopback", "tun", "tuntap":
		return ""
	default:
		return model.KindUnknown
	}
}

// toIPConfig converts a list of kernel addresses into an IPConfig. dhcp is
// the link's leased flag as computed by the LinkSource (true when any
// address has a bounded valid lifetime) and is copied to the model's
// "dhcp" field.
func toIPConfig(addrs []addr, dhcp bool) *model.IPConfig {
	if len(addrs) == 0 && !dhcp {
		return nil
	}
	cfg := &model.IPConfig{Enabled: true, DHCP: dhcp}
	for _, a := range addrs {
		cfg.Addresses = append(cfg.Addresses, model.IPAddress{IP: a.ip, PrefixLength: a.prefixLength})
	}
	return cfg
}

// netlinkSource is the real LinkSource, backed by vishvananda/netlink. When
// netnsName is set, every call runs with the calling goroutine's thread
// switched into that namespace for the call's duration.
type netlinkSource struct {
	netnsName string
}

// withNetns locks the calling goroutine to its OS thread and switches that
// thread into s.netnsName for the duration of fn, restoring the original
// namespace afterward. It is a no-op when netnsName is empty.
func (s *netlinkSource) withNetns(fn func() error) error {
	if s.netnsName == "" {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure, "capture current network namespace")
	}
	defer orig.Close()

	target, err := netns.GetFromName(s.netnsName)
	if err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure,
			fmt.Sprintf("open network namespace %q", s.netnsName))
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure,
			fmt.Sprintf("enter network namespace %q", s.netnsName))
	}
	defer netns.Set(orig)

	return fn()
}

func (s *netlinkSource) List() ([]link, error) {
	var out []link
	err := s.withNetns(func() error {
		links, err := s.list()
		out = links
		return err
	})
	return out, err
}

func (s *netlinkSource) list() ([]link, error) {
	kernelLinks, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}

	out := make([]link, 0, len(kernelLinks))
	for _, kl := range kernelLinks {
		attrs := kl.Attrs()

		var controller string
		if attrs.MasterIndex != 0 {
			if master, err := netlink.LinkByIndex(attrs.MasterIndex); err == nil {
				controller = master.Attrs().Name
			}
		}

		// netlink reports the loopback device with the generic "device"
		// type, so it is recognized by its interface flag instead.
		kind := kl.Type()
		if attrs.Flags&net.FlagLoopback != 0 {
			kind = "loopback"
		}

		l := link{
			name:       attrs.Name,
			kind:       kind,
			operUp:     attrs.OperState == netlink.OperUp,
			mac:        attrs.HardwareAddr.String(),
			controller: controller,
		}

		if a4, err := netlink.AddrList(kl, unix.AF_INET); err == nil {
			l.addrs4 = toAddrs(a4)
			l.dhcp4 = hasLeasedAddr(l.addrs4)
		}
		if a6, err := netlink.AddrList(kl, unix.AF_INET6); err == nil {
			l.addrs6 = toAddrs(a6)
			l.dhcp6 = hasLeasedAddr(l.addrs6)
		}

		out = append(out, l)
	}
	return out, nil
}

// lftForever is the kernel's sentinel value for "this address's valid
// lifetime never expires" (INFINITY_LIFE_TIME); anything else is a bounded
// lease, which per spec.md §4.5 surfaces as dhcp=true.
const lftForever = 0xFFFFFFFF

func toAddrs(nlAddrs []netlink.Addr) []addr {
	out := make([]addr, 0, len(nlAddrs))
	for _, a := range nlAddrs {
		ones, _ := a.IPNet.Mask.Size()
		out = append(out, addr{ip: a.IP.String(), prefixLength: ones, permanent: a.ValidLft == lftForever})
	}
	return out
}

// hasLeasedAddr reports whether any address in addrs carries a bounded
// (non-permanent) lifetime, the signal that the address was handed out by
// DHCP rather than configured statically.
func hasLeasedAddr(addrs []addr) bool {
	for _, a := range addrs {
		if !a.permanent {
			return true
		}
	}
	return false
}

func (s *netlinkSource) Apply(l link) error {
	return s.withNetns(func() error { return s.apply(l) })
}

func (s *netlinkSource) apply(l link) error {
	kl, err := netlink.LinkByName(l.name)
	if err != nil {
		return fmt.Errorf("look up link %q: %w", l.name, err)
	}

	if err := reconcileAddrs(kl, unix.AF_INET, l.addrs4); err != nil {
		return err
	}
	if err := reconcileAddrs(kl, unix.AF_INET6, l.addrs6); err != nil {
		return err
	}

	if l.operUp {
		return netlink.LinkSetUp(kl)
	}
	return netlink.LinkSetDown(kl)
}

func reconcileAddrs(kl netlink.Link, family int, desired []addr) error {
	existing, err := netlink.AddrList(kl, family)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if err := netlink.AddrDel(kl, &a); err != nil {
			return err
		}
	}
	for _, a := range desired {
		parsed, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", a.ip, a.prefixLength))
		if err != nil {
			return fmt.Errorf("parse address %q: %w", a.ip, err)
		}
		if err := netlink.AddrAdd(kl, parsed); err != nil {
			return err
		}
	}
	return nil
}

func (s *netlinkSource) Delete(name string) error {
	return s.withNetns(func() error { return s.delete(name) })
}

func (s *netlinkSource) delete(name string) error {
	kl, err := netlink.LinkByName(name)
	if err != nil {
		if _, ok := err.(netlink.LinkNotFoundError); ok {
			return nil
		}
		return err
	}
	return netlink.LinkDel(kl)
}
