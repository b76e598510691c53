// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package orchestrator drives one apply call end to end: retrieve the
// current state, reconcile against desired, create a checkpoint, apply
// through the user-space (or kernel-only) backend, verify with bounded
// retry, and commit or roll back. The pipeline is single-threaded and
// blocking, matching the host-wide singleton nature of the configurator
// it drives.
package orchestrator

import (
	"log"
	"time"

	netconferrors "github.com/netconfd/netconfd/internal/errors"
	"github.com/netconfd/netconfd/internal/model"
	"github.com/netconfd/netconfd/internal/reconcile"
)

// Phase names the orchestrator's position in the apply state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCheckpointCreated
	PhaseApplying
	PhaseVerifying
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCheckpointCreated:
		return "checkpoint_created"
	case PhaseApplying:
		return "applying"
	case PhaseVerifying:
		return "verifying"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

const (
	checkpointInitialTimeout = 30 * time.Second
	checkpointExtendAmount   = 60 * time.Second
	operationsPerExtend      = 20
	verifyInterval           = 500 * time.Millisecond
	verifyRetriesUserspace   = 60
	verifyRetriesKernelOnly  = 6
)

// KernelBackend is the contract the kernel adapter must satisfy.
type KernelBackend interface {
	Retrieve() (model.NetworkState, error)
	Apply(add, change, remove model.NetworkState) error
}

// UserspaceBackend is the contract the user-space adapter must satisfy,
// layered on top of its own checkpoint-capable collaborator.
type UserspaceBackend interface {
	Apply(add, change, remove model.NetworkState) error
	CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error)
	CheckpointDestroy(handle string) error
	CheckpointRollback(handle string) error
	CheckpointExtend(handle string, addSeconds uint32) error
}

// Orchestrator wires the kernel and user-space backends into the apply
// state machine described above. The timing fields default to the
// specification's constants but are exported so tests can shrink them.
type Orchestrator struct {
	Kernel    KernelBackend
	Userspace UserspaceBackend

	CheckpointInitialTimeout time.Duration
	CheckpointExtendAmount   time.Duration
	OperationsPerExtend      int
	VerifyInterval           time.Duration
	VerifyRetriesUserspace   int
	VerifyRetriesKernelOnly  int

	phase Phase
}

// New returns an Orchestrator driving the given backends, with the
// specification's default timings.
func New(kernel KernelBackend, userspace UserspaceBackend) *Orchestrator {
	return &Orchestrator{
		Kernel:                   kernel,
		Userspace:                userspace,
		CheckpointInitialTimeout: checkpointInitialTimeout,
		CheckpointExtendAmount:   checkpointExtendAmount,
		OperationsPerExtend:      operationsPerExtend,
		VerifyInterval:           verifyInterval,
		VerifyRetriesUserspace:   verifyRetriesUserspace,
		VerifyRetriesKernelOnly:  verifyRetriesKernelOnly,
		phase:                    PhaseIdle,
	}
}

// Phase returns the orchestrator's current state-machine phase.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Apply runs one full apply cycle for desired. When kernelOnly is true the
// user-space backend (and its checkpoint) is bypassed entirely and
// verification uses the shorter kernel-only retry budget.
func (o *Orchestrator) Apply(desired model.NetworkState, kernelOnly bool) error {
	o.phase = PhaseIdle

	current, err := o.Kernel.Retrieve()
	if err != nil {
		return err
	}

	add, change, remove, err := reconcile.GenerateStateForApply(desired, current)
	if err != nil {
		return err
	}

	if kernelOnly {
		return o.applyKernelOnly(desired, add, change, remove)
	}
	return o.applyUserspace(desired, add, change, remove)
}

// applyKernelOnly skips the checkpoint lifecycle entirely: it applies
// directly through the kernel backend and verifies with the kernel-only
// retry budget.
func (o *Orchestrator) applyKernelOnly(desired, add, change, remove model.NetworkState) error {
	o.phase = PhaseApplying
	if err := o.Kernel.Apply(add, change, remove); err != nil {
		return err
	}

	o.phase = PhaseVerifying
	if err := o.verify(desired, o.VerifyRetriesKernelOnly); err != nil {
		return err
	}

	o.phase = PhaseCommitted
	return nil
}

// applyUserspace runs the full checkpoint-guarded pipeline: create,
// delete→add→change through one Userspace.Apply call (which also activates
// the profiles), extend the checkpoint once more after that call returns,
// verify with retry, then commit or roll back. No extension happens between
// the profile writes and their activation.
func (o *Orchestrator) applyUserspace(desired, add, change, remove model.NetworkState) error {
	handle, err := o.Userspace.CheckpointCreate(uint32(o.CheckpointInitialTimeout.Seconds()))
	if err != nil {
		return err
	}
	o.phase = PhaseCheckpointCreated

	o.phase = PhaseApplying
	if err := o.applyWithExtension(handle, add, change, remove); err != nil {
		o.rollback(handle, err)
		return err
	}

	if err := o.Userspace.CheckpointExtend(handle, uint32(o.CheckpointExtendAmount.Seconds())); err != nil {
		log.Printf("[orchestrator] extend before verification failed: %v", err)
	}

	o.phase = PhaseVerifying
	if err := o.verify(desired, o.VerifyRetriesUserspace); err != nil {
		o.rollback(handle, err)
		return err
	}

	if err := o.Userspace.CheckpointDestroy(handle); err != nil {
		return netconferrors.Wrap(err, netconferrors.KindPluginFailure, "destroy checkpoint on commit")
	}
	o.phase = PhaseCommitted
	return nil
}

// applyWithExtension delegates to the user-space backend's Apply, which
// already orders delete/add/change and activation. Before that call it
// extends the checkpoint once if the three sets' combined interface count
// reaches OperationsPerExtend; the extension is not repeated per further
// OperationsPerExtend operations, and none happens during the call, since
// the backend's apply is a single call rather than a stream of
// individually-observable operations.
func (o *Orchestrator) applyWithExtension(handle string, add, change, remove model.NetworkState) error {
	totalOps := add.Interfaces.Len() + change.Interfaces.Len() + remove.Interfaces.Len()
	if totalOps >= o.OperationsPerExtend {
		if err := o.Userspace.CheckpointExtend(handle, uint32(o.CheckpointExtendAmount.Seconds())); err != nil {
			log.Printf("[orchestrator] mid-apply checkpoint extend failed: %v", err)
		}
	}
	return o.Userspace.Apply(add, change, remove)
}

// verify snapshots current state from the kernel and compares it to
// desired through pre-verify cleanup, retrying up to retries times with
// verifyInterval between attempts. The last attempt's mismatch is the
// error surfaced.
func (o *Orchestrator) verify(desired model.NetworkState, retries int) error {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		current, err := o.Kernel.Retrieve()
		if err != nil {
			lastErr = err
			time.Sleep(o.VerifyInterval)
			continue
		}

		mismatch := firstMismatch(desired, current)
		if mismatch == nil {
			return nil
		}
		lastErr = mismatch
		time.Sleep(o.VerifyInterval)
	}
	return lastErr
}

// firstMismatch returns the first interface-level verification error
// between desired and current, or nil if every desired interface not
// marked absent matches and every one marked absent is gone from current.
func firstMismatch(desired, current model.NetworkState) error {
	for _, want := range desired.Interfaces.Sorted() {
		got, exists, err := current.Interfaces.GetMut(want.Base.Name, want.Base.Kind)
		if err != nil {
			return err
		}

		if want.IsAbsent() {
			if exists {
				return netconferrors.Errorf(netconferrors.KindVerification, "%s: still present after delete", want.Base.Name)
			}
			continue
		}
		if !exists {
			return netconferrors.Errorf(netconferrors.KindVerification, "%s: missing from current state", want.Base.Name)
		}
		if err := want.Verify(*got); err != nil {
			return err
		}
	}
	return nil
}

// rollback rolls the checkpoint back and logs a rollback failure rather
// than masking the original error, which is what the caller surfaces.
func (o *Orchestrator) rollback(handle string, cause error) {
	log.Printf("[orchestrator] apply failed, rolling back checkpoint: %v", cause)
	if err := o.Userspace.CheckpointRollback(handle); err != nil {
		log.Printf("[orchestrator] checkpoint rollback itself failed: %v", err)
	}
	o.phase = PhaseRolledBack
}
