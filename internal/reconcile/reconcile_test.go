// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netconfd/netconfd/internal/model"
)

func state(ifaces ...model.Interface) model.NetworkState {
	s := model.NewNetworkState()
	for _, i := range ifaces {
		s.Interfaces.Insert(i)
	}
	return s
}

func TestGenerateStateForApply_ControllerPrecedesPortOnAdd(t *testing.T) {
	desired := state(
		model.NewEthernet(model.BaseInterface{
			Name: "eth0", State: model.StateUp,
			ControllerName: "br0", Presence: model.PresenceControllerName,
		}),
		model.NewLinuxBridge(model.BaseInterface{Name: "br0", State: model.StateUp}, model.LinuxBridgeConfig{
			Ports: []model.LinuxBridgePort{{Name: "eth0"}},
		}),
	)
	current := model.NewNetworkState()

	add, change, remove, err := GenerateStateForApply(desired, current)
	require.NoError(t, err)

	assert.Equal(t, 2, add.Interfaces.Len())
	assert.Equal(t, 0, change.Interfaces.Len())
	assert.Equal(t, 0, remove.Interfaces.Len())

	ordered := add.Interfaces.DependencyOrder(false)
	names := []string{ordered[0].Base.Name, ordered[1].Base.Name}
	assert.Equal(t, []string{"br0", "eth0"}, names)
}

func TestGenerateStateForApply_AbsentGoesToDelete(t *testing.T) {
	desired := state(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateAbsent}))
	current := state(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	add, change, remove, err := GenerateStateForApply(desired, current)
	require.NoError(t, err)

	assert.Equal(t, 0, add.Interfaces.Len())
	assert.Equal(t, 0, change.Interfaces.Len())
	require.Equal(t, 1, remove.Interfaces.Len())
	_, ok := remove.Interfaces.Get("eth0")
	assert.True(t, ok)
}

func TestGenerateStateForApply_MissingControllerIsInvalidArgument(t *testing.T) {
	desired := state(model.NewEthernet(model.BaseInterface{
		Name: "eth0", State: model.StateUp,
		ControllerName: "br0", Presence: model.PresenceControllerName,
	}))
	current := model.NewNetworkState()

	_, _, _, err := GenerateStateForApply(desired, current)
	require.Error(t, err)
}

func TestGenerateStateForApply_NoOpWhenUnchanged(t *testing.T) {
	desired := state(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))
	current := state(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	add, change, remove, err := GenerateStateForApply(desired, current)
	require.NoError(t, err)
	assert.Equal(t, 0, add.Interfaces.Len())
	assert.Equal(t, 0, change.Interfaces.Len())
	assert.Equal(t, 0, remove.Interfaces.Len())
}
