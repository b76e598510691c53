// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netconfd wires the kernel and user-space backends to the apply
// orchestrator. It serializes every apply behind a package-level mutex as
// a second line of defense alongside the user-space backend's own
// checkpoint-uniqueness guard, since the configurator it drives is a
// process-wide singleton on the host.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/netconfd/netconfd/internal/kernelnet"
	"github.com/netconfd/netconfd/internal/model"
	"github.com/netconfd/netconfd/internal/netdoc"
	"github.com/netconfd/netconfd/internal/nmbus"
	"github.com/netconfd/netconfd/internal/orchestrator"
)

var applyMu sync.Mutex

func main() {
	configFile := flag.String("config", "", "path to the desired network state document")
	kernelOnly := flag.Bool("kernel", false, "apply through the kernel backend only")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "netconfd: -config is required")
		os.Exit(1)
	}

	if err := run(*configFile, *kernelOnly); err != nil {
		log.Fatalf("[netconfd] %v", err)
	}
}

func run(configFile string, kernelOnly bool) error {
	desired, err := loadDesired(configFile)
	if err != nil {
		return err
	}

	kernel := kernelnet.NewRealAdapter()

	var o *orchestrator.Orchestrator
	if kernelOnly {
		o = orchestrator.New(kernel, nil)
	} else {
		userspace, err := nmbus.NewRealAdapter()
		if err != nil {
			return err
		}
		o = orchestrator.New(kernel, userspace)
	}

	return serializedApply(o, desired, kernelOnly)
}

// serializedApply holds applyMu for the duration of one apply call, so
// two apply calls within this process never race each other's checkpoint.
// Separate processes are not serialized by it; between them only the
// checkpoint-uniqueness guard applies.
func serializedApply(o *orchestrator.Orchestrator, desired model.NetworkState, kernelOnly bool) error {
	applyMu.Lock()
	defer applyMu.Unlock()

	if err := o.Apply(desired, kernelOnly); err != nil {
		return err
	}
	log.Printf("[netconfd] apply committed (phase=%s)", o.Phase())
	return nil
}

func loadDesired(path string) (model.NetworkState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.NetworkState{}, err
	}
	state, err := netdoc.DecodeYAML(data)
	if err != nil {
		return model.NetworkState{}, err
	}
	state.TidyUp()
	return state, nil
}
