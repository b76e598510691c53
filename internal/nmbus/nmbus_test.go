// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmbus

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	netconferrors "github.com/netconfd/netconfd/internal/errors"
	"github.com/netconfd/netconfd/internal/model"
)

func TestAdapter_CheckpointCreate_MapsConflict(t *testing.T) {
	conn := &conflictingConnector{fakeConnector: *NewFakeConnector()}
	adapter := NewAdapter(conn)

	_, err := adapter.CheckpointCreate(30)
	require.Error(t, err)
	assert.Equal(t, netconferrors.KindCheckpointConflict, netconferrors.GetKind(err))
}

type conflictingConnector struct {
	fakeConnector
}

func (c *conflictingConnector) CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error) {
	return "", dbus.Error{Name: "org.freedesktop.NetworkManager.CheckpointExists"}
}

func TestKindToExternalType(t *testing.T) {
	tests := []struct {
		kind    model.InterfaceKind
		want    string
		wantErr bool
	}{
		{model.KindLinuxBridge, "bridge", false},
		{model.KindEthernet, "802-3-ethernet", false},
		{model.KindVeth, "802-3-ethernet", false},
		{model.KindBond, "", true},
	}
	for _, tt := range tests {
		got, err := kindToExternalType(tt.kind)
		if tt.wantErr {
			require.Error(t, err)
			assert.Equal(t, netconferrors.KindBug, netconferrors.GetKind(err))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestToIPSetting(t *testing.T) {
	disabled, err := toIPSetting(&model.IPConfig{Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, "disabled", disabled.Method)

	dhcp, err := toIPSetting(&model.IPConfig{Enabled: true, DHCP: true})
	require.NoError(t, err)
	assert.Equal(t, "auto", dhcp.Method)

	manual, err := toIPSetting(&model.IPConfig{
		Enabled:   true,
		Addresses: []model.IPAddress{{IP: "10.0.0.1", PrefixLength: 24}},
	})
	require.NoError(t, err)
	assert.Equal(t, "manual", manual.Method)
	assert.Equal(t, []string{"10.0.0.1/24"}, manual.Addresses)

	_, err = toIPSetting(&model.IPConfig{Enabled: true, Autoconf: true})
	require.Error(t, err)
	assert.Equal(t, netconferrors.KindNotImplemented, netconferrors.GetKind(err))
}

func TestAdapter_Apply_CreatesAndActivates(t *testing.T) {
	conn := NewFakeConnector()
	adapter := NewAdapter(conn)

	add := model.NewNetworkState()
	add.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	err := adapter.Apply(add, model.NewNetworkState(), model.NewNetworkState())
	require.NoError(t, err)

	require.Len(t, conn.Calls, 2)
	assert.Equal(t, "create:eth0", conn.Calls[0])
	assert.Contains(t, conn.Calls[1], "activate:")
}

func TestAdapter_Apply_SweepsStaleProfiles(t *testing.T) {
	conn := NewFakeConnector()
	conn.SeedProfile(Profile{UUID: "live-1", Name: "eth0", ExternalType: "802-3-ethernet", Active: true})
	conn.SeedProfile(Profile{UUID: "stale-1", Name: "eth0", ExternalType: "802-3-ethernet"})
	adapter := NewAdapter(conn)

	add := model.NewNetworkState()
	add.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	err := adapter.Apply(add, model.NewNetworkState(), model.NewNetworkState())
	require.NoError(t, err)

	profiles, _ := conn.ListProfiles()
	require.Len(t, profiles, 1)
	assert.NotEqual(t, "stale-1", profiles[0].UUID)
	assert.Equal(t, "live-1", profiles[0].UUID)
}

func TestAdapter_Apply_DeletesBeforeAdding(t *testing.T) {
	conn := NewFakeConnector()
	conn.SeedProfile(Profile{UUID: "old-eth0", Name: "eth0", ExternalType: "802-3-ethernet"})
	adapter := NewAdapter(conn)

	remove := model.NewNetworkState()
	remove.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateAbsent}))

	add := model.NewNetworkState()
	add.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "br0", State: model.StateUp}))

	err := adapter.Apply(add, model.NewNetworkState(), remove)
	require.NoError(t, err)

	require.True(t, len(conn.Calls) >= 2)
	assert.Equal(t, "delete:old-eth0", conn.Calls[0])
}
