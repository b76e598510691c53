// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_Diff_AddChangeDelete(t *testing.T) {
	desired := NewCollection()
	desired.Insert(NewEthernet(BaseInterface{Name: "eth0", State: StateUp}))
	desired.Insert(NewEthernet(BaseInterface{Name: "eth1", State: StateAbsent}))
	desired.Insert(NewEthernet(BaseInterface{Name: "eth2", State: StateUp, Presence: PresenceState}))

	current := NewCollection()
	current.Insert(NewEthernet(BaseInterface{Name: "eth1", State: StateUp}))
	current.Insert(NewEthernet(BaseInterface{Name: "eth2", State: StateDown}))

	add, change, remove, err := desired.Diff(current)
	require.NoError(t, err)

	assert.Equal(t, 1, add.Len())
	_, ok := add.Get("eth0")
	assert.True(t, ok)

	require.Equal(t, 1, change.Len())
	changed, ok := change.Get("eth2")
	require.True(t, ok)
	assert.Equal(t, StateUp, changed.Base.State, "change entry must carry the merged overlay, not the raw current state")

	assert.Equal(t, 1, remove.Len())
	_, ok = remove.Get("eth1")
	assert.True(t, ok)
}

func TestCollection_Diff_NoOpWhenEqual(t *testing.T) {
	desired := NewCollection()
	desired.Insert(NewEthernet(BaseInterface{Name: "eth0", State: StateUp}))

	current := NewCollection()
	current.Insert(NewEthernet(BaseInterface{Name: "eth0", State: StateUp}))

	add, change, remove, err := desired.Diff(current)
	require.NoError(t, err)
	assert.Equal(t, 0, add.Len())
	assert.Equal(t, 0, change.Len())
	assert.Equal(t, 0, remove.Len())
}

func TestCollection_DependencyOrder_ControllerBeforePort(t *testing.T) {
	c := NewCollection()
	c.Insert(NewEthernet(BaseInterface{Name: "eth0", ControllerName: "br0", Presence: PresenceControllerName}))
	c.Insert(NewLinuxBridge(BaseInterface{Name: "br0"}, LinuxBridgeConfig{
		Ports: []LinuxBridgePort{{Name: "eth0"}},
	}))

	ordered := c.DependencyOrder(false)
	require.Len(t, ordered, 2)
	assert.Equal(t, "br0", ordered[0].Base.Name)
	assert.Equal(t, "eth0", ordered[1].Base.Name)
}

func TestCollection_DependencyOrder_ReversedPortBeforeController(t *testing.T) {
	c := NewCollection()
	c.Insert(NewEthernet(BaseInterface{Name: "eth0", ControllerName: "br0", Presence: PresenceControllerName}))
	c.Insert(NewLinuxBridge(BaseInterface{Name: "br0"}, LinuxBridgeConfig{
		Ports: []LinuxBridgePort{{Name: "eth0"}},
	}))

	ordered := c.DependencyOrder(true)
	require.Len(t, ordered, 2)
	assert.Equal(t, "eth0", ordered[0].Base.Name)
	assert.Equal(t, "br0", ordered[1].Base.Name)
}

func TestCollection_Update_MergesAndInserts(t *testing.T) {
	c := NewCollection()
	c.Insert(NewEthernet(BaseInterface{Name: "eth0", State: StateDown, Presence: PresenceState}))

	other := NewCollection()
	other.Insert(NewEthernet(BaseInterface{Name: "eth0", State: StateUp, Presence: PresenceState}))
	other.Insert(NewEthernet(BaseInterface{Name: "eth1", State: StateUp}))

	warnings := c.Update(other)
	assert.Empty(t, warnings)
	assert.Equal(t, 2, c.Len())

	eth0, _ := c.Get("eth0")
	assert.Equal(t, StateUp, eth0.Base.State)
}

func TestCollection_Sorted_IsDeterministic(t *testing.T) {
	c := NewCollection()
	c.Insert(NewEthernet(BaseInterface{Name: "z0", State: StateUp}))
	c.Insert(NewEthernet(BaseInterface{Name: "a0", State: StateUp}))

	first := c.Sorted()
	second := c.Sorted()

	diff := cmp.Diff(first, second)
	assert.Empty(t, diff, "Sorted() must be deterministic across calls")
	require.Len(t, first, 2)
	assert.Equal(t, "a0", first[0].Base.Name)
}
