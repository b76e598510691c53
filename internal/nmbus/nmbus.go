// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nmbus is the user-space backend adapter: it drives
// NetworkManager over its D-Bus API through a Connector collaborator,
// translating the model's interface collection to/from NetworkManager
// connection profiles and checkpoints. A real Connector speaks D-Bus via
// github.com/godbus/dbus/v5; a fake Connector records calls in memory for
// tests, the same collaborator split used throughout the rest of the
// codebase for its kernel-facing adapters.
package nmbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	netconferrors "github.com/netconfd/netconfd/internal/errors"
	"github.com/netconfd/netconfd/internal/model"
)

const (
	nmBusName     = "org.freedesktop.NetworkManager"
	nmObjectPath  = "/org/freedesktop/NetworkManager"
	nmSettingsPath = "/org/freedesktop/NetworkManager/Settings"
)

// Profile is a minimal NetworkManager connection profile, covering only
// the settings blocks the model needs to round-trip.
type Profile struct {
	UUID           string
	Name           string
	ExternalType   string
	ControllerName string
	ControllerType string
	IPv4           IPSetting
	IPv6           IPSetting
	Bridge         *BridgeSetting
	Active         bool
}

// IPSetting is the NetworkManager-shaped IP configuration of a profile.
type IPSetting struct {
	Method    string // "disabled", "auto", "manual"
	Addresses []string
}

// BridgeSetting is the NetworkManager-shaped bridge configuration.
type BridgeSetting struct {
	STP bool
}

// Connector abstracts the D-Bus operations the adapter needs: profile
// CRUD, activation, UUID generation, and checkpoint lifecycle.
type Connector interface {
	ListProfiles() ([]Profile, error)
	ListActiveProfiles() ([]string, error)
	CreateProfile(p Profile) error
	UpdateProfile(p Profile) error
	DeleteProfile(uuid string) error
	ActivateProfile(uuid string) error
	GenerateUUID() string

	CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error)
	CheckpointDestroy(handle string) error
	CheckpointRollback(handle string) error
	CheckpointExtend(handle string, addSeconds uint32) error
}

// kindToExternalType maps a model kind to the NetworkManager connection
// type string, per the adapter's identity contract.
func kindToExternalType(kind model.InterfaceKind) (string, error) {
	switch kind {
	case model.KindLinuxBridge:
		return "bridge", nil
	case model.KindEthernet, model.KindVeth:
		return "802-3-ethernet", nil
	default:
		return "", netconferrors.Errorf(netconferrors.KindBug, "BUG: NetworkManager does not support interface kind %q", kind)
	}
}

// Adapter implements the user-space backend described by the interface
// model, driving a Connector.
type Adapter struct {
	conn Connector
}

// NewAdapter wraps conn in an Adapter.
func NewAdapter(conn Connector) *Adapter {
	return &Adapter{conn: conn}
}

// CheckpointCreate creates a checkpoint with the given rollback timeout.
// A conflict with an already-live checkpoint is reported as
// CheckpointConflict rather than a generic PluginFailure, per the
// adapter's checkpoint contract.
func (a *Adapter) CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error) {
	handle, err := a.conn.CheckpointCreate(rollbackTimeoutSeconds)
	if err != nil {
		if isCheckpointConflict(err) {
			return "", netconferrors.Wrap(err, netconferrors.KindCheckpointConflict, "a checkpoint is already active")
		}
		return "", netconferrors.Wrap(err, netconferrors.KindPluginFailure, "create checkpoint")
	}
	return handle, nil
}

// CheckpointDestroy destroys the checkpoint identified by handle.
func (a *Adapter) CheckpointDestroy(handle string) error {
	if err := a.conn.CheckpointDestroy(handle); err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure, "destroy checkpoint")
	}
	return nil
}

// CheckpointRollback rolls back the checkpoint identified by handle.
func (a *Adapter) CheckpointRollback(handle string) error {
	if err := a.conn.CheckpointRollback(handle); err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure, "roll back checkpoint")
	}
	return nil
}

// CheckpointExtend extends the checkpoint's rollback timeout by addSeconds.
func (a *Adapter) CheckpointExtend(handle string, addSeconds uint32) error {
	if err := a.conn.CheckpointExtend(handle, addSeconds); err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure, "extend checkpoint timeout")
	}
	return nil
}

// isCheckpointConflict reports whether err is NetworkManager's
// "CheckpointExists" D-Bus error.
func isCheckpointConflict(err error) bool {
	dbusErr, ok := err.(dbus.Error)
	if !ok {
		return false
	}
	return dbusErr.Name == "org.freedesktop.NetworkManager.CheckpointExists"
}

// NewRealAdapter returns an Adapter backed by the system D-Bus.
func NewRealAdapter() (*Adapter, error) {
	conn, err := newDBusConnector()
	if err != nil {
		return nil, netconferrors.Wrap(err, netconferrors.KindPluginFailure, "connect to system D-Bus")
	}
	return NewAdapter(conn), nil
}

// Apply deletes the profiles of every interface in remove first (so port
// reassignment never collides with a stale profile), then creates-or-updates
// a profile for every interface in add, then change, sweeping stale profiles
// per interface, then activates every resulting profile. Port-to-controller
// references are collected up front from add and change combined.
func (a *Adapter) Apply(add, change, remove model.NetworkState) error {
	ports := collectPorts(add, change)

	var toDelete []model.Interface
	for _, iface := range remove.Interfaces.Sorted() {
		toDelete = append(toDelete, iface)
	}
	for _, iface := range toDelete {
		if err := a.deleteInterfaceProfiles(iface); err != nil {
			return err
		}
	}

	var uuids []string
	for _, batch := range []model.NetworkState{add, change} {
		for _, iface := range batch.Interfaces.Sorted() {
			if iface.Base.Kind == model.KindUnknown {
				continue
			}
			uuid, err := a.createOrUpdate(iface, ports)
			if err != nil {
				return err
			}
			uuids = append(uuids, uuid)
		}
	}

	for _, id := range uuids {
		if err := a.activateWithRetry(id, 3); err != nil {
			return err
		}
	}
	return nil
}

// collectPorts builds a portName -> (controllerName, controllerKind) map
// from every interface with a Ports() list, across both supplied states.
func collectPorts(states ...model.NetworkState) map[string]portRef {
	ports := map[string]portRef{}
	for _, s := range states {
		for _, iface := range s.Interfaces.Sorted() {
			for _, port := range iface.Ports() {
				ports[port] = portRef{name: iface.Base.Name, kind: iface.Base.Kind}
			}
		}
	}
	return ports
}

type portRef struct {
	name string
	kind model.InterfaceKind
}

// createOrUpdate builds the NetworkManager profile for iface, reusing an
// existing UUID if a matching profile exists, then sweeps any other
// stale profile matching the same (name, external type).
func (a *Adapter) createOrUpdate(iface model.Interface, ports map[string]portRef) (string, error) {
	externalType, err := kindToExternalType(iface.Base.Kind)
	if err != nil {
		return "", err
	}

	existing, err := a.findMatching(iface.Base.Name, externalType)
	if err != nil {
		return "", err
	}

	id := a.conn.GenerateUUID()
	isNew := true
	if len(existing) > 0 {
		id = chooseProfile(existing).UUID
		isNew = false
	}

	profile := Profile{
		UUID:         id,
		Name:         iface.Base.Name,
		ExternalType: externalType,
	}
	if port, ok := ports[iface.Base.Name]; ok {
		controllerType, err := kindToExternalType(port.kind)
		if err != nil {
			return "", err
		}
		profile.ControllerName = port.name
		profile.ControllerType = controllerType
	}
	if iface.Base.IPv4 != nil {
		setting, err := toIPSetting(iface.Base.IPv4)
		if err != nil {
			return "", err
		}
		profile.IPv4 = setting
	}
	if iface.Base.IPv6 != nil {
		setting, err := toIPSetting(iface.Base.IPv6)
		if err != nil {
			return "", err
		}
		profile.IPv6 = setting
	}
	if iface.Bridge != nil {
		profile.Bridge = &BridgeSetting{}
		if iface.Bridge.Options.STP.Enabled != nil {
			profile.Bridge.STP = *iface.Bridge.Options.STP.Enabled
		}
	}

	if isNew {
		if err := a.conn.CreateProfile(profile); err != nil {
			return "", netconferrors.Wrap(err, netconferrors.KindPluginFailure, fmt.Sprintf("create profile for %q", iface.Base.Name))
		}
	} else {
		if err := a.conn.UpdateProfile(profile); err != nil {
			return "", netconferrors.Wrap(err, netconferrors.KindPluginFailure, fmt.Sprintf("update profile for %q", iface.Base.Name))
		}
	}

	for _, stale := range existing {
		if stale.UUID == id {
			continue
		}
		if err := a.conn.DeleteProfile(stale.UUID); err != nil {
			return "", netconferrors.Wrap(err, netconferrors.KindPluginFailure, fmt.Sprintf("sweep stale profile for %q", iface.Base.Name))
		}
	}

	return id, nil
}

func (a *Adapter) deleteInterfaceProfiles(iface model.Interface) error {
	externalType, err := kindToExternalType(iface.Base.Kind)
	if err != nil {
		return err
	}
	existing, err := a.findMatching(iface.Base.Name, externalType)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if err := a.conn.DeleteProfile(p.UUID); err != nil {
			return netconferrors.Wrap(err, netconferrors.KindPluginFailure, fmt.Sprintf("delete profile for %q", iface.Base.Name))
		}
	}
	return nil
}

// findMatching returns every profile whose identity (name, external
// type) matches, since stale profiles from prior applies can coexist
// with the live one until the sweep removes them.
func (a *Adapter) findMatching(name, externalType string) ([]Profile, error) {
	all, err := a.conn.ListProfiles()
	if err != nil {
		return nil, netconferrors.Wrap(err, netconferrors.KindPluginFailure, "list NetworkManager profiles")
	}
	var out []Profile
	for _, p := range all {
		if p.Name == name && p.ExternalType == externalType {
			out = append(out, p)
		}
	}
	return out, nil
}

// chooseProfile picks the active profile among candidates, or the first
// one if none are active.
func chooseProfile(candidates []Profile) Profile {
	for _, p := range candidates {
		if p.Active {
			return p
		}
	}
	return candidates[0]
}

// activateWithRetry activates uuid, retrying up to attempts times since
// activation can race a just-created profile becoming visible.
func (a *Adapter) activateWithRetry(uuid string, attempts int) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := a.conn.ActivateProfile(uuid); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return netconferrors.Wrap(lastErr, netconferrors.KindPluginFailure, fmt.Sprintf("activate profile %q", uuid))
}

// toIPSetting maps the model's IPConfig to NetworkManager's method enum
// per the adapter's IP-mapping rule.
func toIPSetting(cfg *model.IPConfig) (IPSetting, error) {
	switch {
	case !cfg.Enabled:
		return IPSetting{Method: "disabled"}, nil
	case cfg.DHCP:
		return IPSetting{Method: "auto"}, nil
	case len(cfg.Addresses) > 0:
		addrs := make([]string, 0, len(cfg.Addresses))
		for _, a := range cfg.Addresses {
			addrs = append(addrs, fmt.Sprintf("%s/%d", a.IP, a.PrefixLength))
		}
		return IPSetting{Method: "manual", Addresses: addrs}, nil
	case cfg.Autoconf && !cfg.DHCP:
		return IPSetting{}, netconferrors.New(netconferrors.KindNotImplemented, "IPv6 autoconf without DHCP is not implemented")
	default:
		return IPSetting{Method: "disabled"}, nil
	}
}

// dbusConnector is the real Connector, backed by github.com/godbus/dbus/v5
// against the org.freedesktop.NetworkManager bus contract.
type dbusConnector struct {
	conn *dbus.Conn
}

func newDBusConnector() (*dbusConnector, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &dbusConnector{conn: conn}, nil
}

func (c *dbusConnector) nmObject() dbus.BusObject {
	return c.conn.Object(nmBusName, dbus.ObjectPath(nmObjectPath))
}

func (c *dbusConnector) settingsObject() dbus.BusObject {
	return c.conn.Object(nmBusName, dbus.ObjectPath(nmSettingsPath))
}

func (c *dbusConnector) ListProfiles() ([]Profile, error) {
	var paths []dbus.ObjectPath
	if err := c.settingsObject().Call("org.freedesktop.NetworkManager.Settings.ListConnections", 0).Store(&paths); err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(paths))
	for _, p := range paths {
		var settings map[string]map[string]dbus.Variant
		if err := c.conn.Object(nmBusName, p).Call("org.freedesktop.NetworkManager.Settings.Connection.GetSettings", 0).Store(&settings); err != nil {
			return nil, err
		}
		profiles = append(profiles, profileFromSettings(settings))
	}
	return profiles, nil
}

func (c *dbusConnector) ListActiveProfiles() ([]string, error) {
	var paths []dbus.ObjectPath
	if err := c.nmObject().Call("org.freedesktop.DBus.Properties.Get", 0,
		nmBusName, "ActiveConnections").Store(&paths); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, string(p))
	}
	return ids, nil
}

func (c *dbusConnector) CreateProfile(p Profile) error {
	settings := profileToSettings(p)
	var path dbus.ObjectPath
	return c.settingsObject().Call("org.freedesktop.NetworkManager.Settings.AddConnection", 0, settings).Store(&path)
}

func (c *dbusConnector) UpdateProfile(p Profile) error {
	settings := profileToSettings(p)
	path, err := c.profilePath(p.UUID)
	if err != nil {
		return err
	}
	return c.conn.Object(nmBusName, path).Call("org.freedesktop.NetworkManager.Settings.Connection.Update", 0, settings).Store()
}

func (c *dbusConnector) DeleteProfile(uuid string) error {
	path, err := c.profilePath(uuid)
	if err != nil {
		return err
	}
	return c.conn.Object(nmBusName, path).Call("org.freedesktop.NetworkManager.Settings.Connection.Delete", 0).Store()
}

func (c *dbusConnector) ActivateProfile(uuid string) error {
	path, err := c.profilePath(uuid)
	if err != nil {
		return err
	}
	var activePath dbus.ObjectPath
	return c.nmObject().Call("org.freedesktop.NetworkManager.ActivateConnection", 0,
		path, dbus.ObjectPath("/"), dbus.ObjectPath("/")).Store(&activePath)
}

func (c *dbusConnector) profilePath(uuid string) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	if err := c.settingsObject().Call("org.freedesktop.NetworkManager.Settings.GetConnectionByUuid", 0, uuid).Store(&path); err != nil {
		return "", err
	}
	return path, nil
}

func (c *dbusConnector) GenerateUUID() string {
	return uuid.NewString()
}

func (c *dbusConnector) CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error) {
	var path dbus.ObjectPath
	flags := uint32(0x01 | 0x02) // delete-new-connections | disconnect-new-devices
	err := c.nmObject().Call("org.freedesktop.NetworkManager.CheckpointCreate", 0,
		[]dbus.ObjectPath{}, rollbackTimeoutSeconds, flags).Store(&path)
	return string(path), err
}

func (c *dbusConnector) CheckpointDestroy(handle string) error {
	return c.nmObject().Call("org.freedesktop.NetworkManager.CheckpointDestroy", 0, dbus.ObjectPath(handle)).Store()
}

func (c *dbusConnector) CheckpointRollback(handle string) error {
	var result map[string]uint32
	return c.nmObject().Call("org.freedesktop.NetworkManager.CheckpointRollback", 0, dbus.ObjectPath(handle)).Store(&result)
}

func (c *dbusConnector) CheckpointExtend(handle string, addSeconds uint32) error {
	return c.nmObject().Call("org.freedesktop.NetworkManager.CheckpointAdjustRollbackTimeout", 0,
		dbus.ObjectPath(handle), addSeconds).Store()
}

func profileToSettings(p Profile) map[string]map[string]dbus.Variant {
	conn := map[string]dbus.Variant{
		"id":       dbus.MakeVariant(p.Name),
		"uuid":     dbus.MakeVariant(p.UUID),
		"type":     dbus.MakeVariant(p.ExternalType),
		"iface-name": dbus.MakeVariant(p.Name),
	}
	if p.ControllerName != "" {
		conn["master"] = dbus.MakeVariant(p.ControllerName)
		conn["slave-type"] = dbus.MakeVariant(p.ControllerType)
	}
	settings := map[string]map[string]dbus.Variant{
		"connection": conn,
		"ipv4":       ipSettingToVariant(p.IPv4),
		"ipv6":       ipSettingToVariant(p.IPv6),
	}
	if p.Bridge != nil {
		settings["bridge"] = map[string]dbus.Variant{"stp": dbus.MakeVariant(p.Bridge.STP)}
	}
	return settings
}

func ipSettingToVariant(s IPSetting) map[string]dbus.Variant {
	v := map[string]dbus.Variant{"method": dbus.MakeVariant(s.Method)}
	if len(s.Addresses) > 0 {
		v["address-data"] = dbus.MakeVariant(s.Addresses)
	}
	return v
}

func profileFromSettings(settings map[string]map[string]dbus.Variant) Profile {
	p := Profile{}
	if conn, ok := settings["connection"]; ok {
		if v, ok := conn["id"]; ok {
			_ = v.Store(&p.Name)
		}
		if v, ok := conn["uuid"]; ok {
			_ = v.Store(&p.UUID)
		}
		if v, ok := conn["type"]; ok {
			_ = v.Store(&p.ExternalType)
		}
		if v, ok := conn["master"]; ok {
			_ = v.Store(&p.ControllerName)
		}
	}
	return p
}
