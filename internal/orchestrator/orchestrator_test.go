// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netconfd/netconfd/internal/model"
)

type fakeKernel struct {
	state    model.NetworkState
	applyErr error
}

func (k *fakeKernel) Retrieve() (model.NetworkState, error) {
	return k.state, nil
}

func (k *fakeKernel) Apply(add, change, remove model.NetworkState) error {
	if k.applyErr != nil {
		return k.applyErr
	}
	k.state.Interfaces.Update(add.Interfaces)
	k.state.Interfaces.Update(change.Interfaces)

	removedNames := map[string]bool{}
	for _, iface := range remove.Interfaces.Sorted() {
		removedNames[iface.Base.Name] = true
	}
	if len(removedNames) > 0 {
		remaining := model.NewCollection()
		for _, iface := range k.state.Interfaces.Sorted() {
			if !removedNames[iface.Base.Name] {
				remaining.Insert(iface)
			}
		}
		k.state.Interfaces = remaining
	}
	return nil
}

type fakeUserspace struct {
	applyCalls       int
	applyErr         error
	checkpointCreated bool
	rolledBack        bool
	destroyed         bool
	extendCount       int
}

func (u *fakeUserspace) Apply(add, change, remove model.NetworkState) error {
	u.applyCalls++
	return u.applyErr
}

func (u *fakeUserspace) CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error) {
	u.checkpointCreated = true
	return "handle-1", nil
}

func (u *fakeUserspace) CheckpointDestroy(handle string) error {
	u.destroyed = true
	return nil
}

func (u *fakeUserspace) CheckpointRollback(handle string) error {
	u.rolledBack = true
	return nil
}

func (u *fakeUserspace) CheckpointExtend(handle string, addSeconds uint32) error {
	u.extendCount++
	return nil
}

func TestOrchestrator_KernelOnly_Commits(t *testing.T) {
	desired := model.NewNetworkState()
	desired.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	kernel := &fakeKernel{state: desired}
	userspace := &fakeUserspace{}
	o := New(kernel, userspace)

	err := o.Apply(desired, true)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, o.Phase())
	assert.False(t, userspace.checkpointCreated)
}

func TestOrchestrator_Userspace_CommitsOnSuccess(t *testing.T) {
	desired := model.NewNetworkState()
	desired.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	kernel := &fakeKernel{state: desired}
	userspace := &fakeUserspace{}
	o := New(kernel, userspace)

	err := o.Apply(desired, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, o.Phase())
	assert.True(t, userspace.checkpointCreated)
	assert.True(t, userspace.destroyed)
	assert.False(t, userspace.rolledBack)
}

func TestOrchestrator_Userspace_RollsBackOnApplyFailure(t *testing.T) {
	desired := model.NewNetworkState()
	desired.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	kernel := &fakeKernel{state: model.NewNetworkState()}
	userspace := &fakeUserspace{applyErr: assert.AnError}
	o := New(kernel, userspace)

	err := o.Apply(desired, false)
	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, o.Phase())
	assert.True(t, userspace.rolledBack)
	assert.False(t, userspace.destroyed)
}

func TestOrchestrator_Userspace_RollsBackOnVerifyFailure(t *testing.T) {
	desired := model.NewNetworkState()
	desired.Interfaces.Insert(model.NewEthernet(model.BaseInterface{Name: "eth0", State: model.StateUp}))

	// kernel never reflects eth0, so verification exhausts its retries.
	kernel := &fakeKernel{state: model.NewNetworkState()}
	userspace := &fakeUserspace{}
	o := New(kernel, userspace)
	o.VerifyInterval = 0
	o.VerifyRetriesUserspace = 2

	err := o.Apply(desired, false)
	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, o.Phase())
	assert.True(t, userspace.rolledBack)
}
