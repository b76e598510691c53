// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reconcile classifies a desired network state against the
// current one into the three-way add/change/delete plan the orchestrator
// applies, respecting controller/port dependency order on each side.
package reconcile

import (
	netconferrors "github.com/netconfd/netconfd/internal/errors"
	"github.com/netconfd/netconfd/internal/model"
)

// GenerateStateForApply classifies every interface in desired against
// current and returns three states ready for the orchestrator: add holds
// interfaces with no current counterpart, change holds interfaces whose
// merged-then-diffed form differs from current, and delete holds desired
// interfaces marked state=absent that exist in current. The returned
// collections are keyed and keep no order of their own: DependencyOrder(false)
// on add and change lists controllers before their ports, and
// DependencyOrder(true) on delete lists ports before their controllers.
func GenerateStateForApply(desired, current model.NetworkState) (add, change, remove model.NetworkState, err error) {
	if err := validateControllerReferences(desired, current); err != nil {
		return model.NetworkState{}, model.NetworkState{}, model.NetworkState{}, err
	}

	addC, changeC, removeC, err := desired.Interfaces.Diff(current.Interfaces)
	if err != nil {
		return model.NetworkState{}, model.NetworkState{}, model.NetworkState{}, err
	}

	add = model.NetworkState{Interfaces: reorder(addC, false)}
	change = model.NetworkState{Interfaces: reorder(changeC, false)}
	remove = model.NetworkState{Interfaces: reorder(removeC, true)}
	return add, change, remove, nil
}

// reorder rebuilds a collection by inserting its interfaces in dependency
// order. Collection is keyed by (name, kind), so the insertion order is not
// retained: Sorted() still iterates by name, and the dependency sequence
// comes from DependencyOrder().
func reorder(c model.Collection, reverse bool) model.Collection {
	ordered := model.NewCollection()
	for _, iface := range c.DependencyOrder(reverse) {
		ordered.Insert(iface)
	}
	return ordered
}

// validateControllerReferences enforces that every desired port's
// controller exists somewhere in desired or current; a port referencing
// a controller present in neither is a data-entry bug, not a runtime
// condition to reconcile around.
func validateControllerReferences(desired, current model.NetworkState) error {
	for _, iface := range desired.Interfaces.Sorted() {
		if iface.Base.Presence&model.PresenceControllerName == 0 || iface.Base.ControllerName == "" {
			continue
		}
		if _, ok := desired.Interfaces.Get(iface.Base.ControllerName); ok {
			continue
		}
		if _, ok := current.Interfaces.Get(iface.Base.ControllerName); ok {
			continue
		}
		return netconferrors.Errorf(netconferrors.KindInvalidArgument,
			"%s: controller %q is not present in desired or current state", iface.Base.Name, iface.Base.ControllerName)
	}
	return nil
}
