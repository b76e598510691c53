// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netconfctl is the external CLI collaborator: it reads a
// declarative network state document and drives show/apply/gc against
// the host's kernel and NetworkManager backends.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/netconfd/netconfd/internal/kernelnet"
	"github.com/netconfd/netconfd/internal/model"
	"github.com/netconfd/netconfd/internal/netdoc"
	"github.com/netconfd/netconfd/internal/nmbus"
	"github.com/netconfd/netconfd/internal/orchestrator"
	"github.com/netconfd/netconfd/internal/reconcile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "show":
		err = runShow(os.Args[2:])
	case "apply":
		err = runApply(os.Args[2:])
	case "gc":
		err = runGC(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "netconfctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: netconfctl {show|apply|gc} [flags] [file]")
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	kernelOnly := fs.Bool("kernel", false, "report kernel-visible state only")
	netnsName := fs.String("netns", "", "report state from this network namespace instead of the default one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []kernelnet.RealAdapterOption
	if *netnsName != "" {
		opts = append(opts, kernelnet.WithNetns(*netnsName))
	}
	kernel := kernelnet.NewRealAdapter(opts...)
	state, err := kernel.Retrieve()
	if err != nil {
		return err
	}
	state.KernelOnly = *kernelOnly

	if fs.NArg() > 0 {
		name := fs.Arg(0)
		iface, ok := state.Interfaces.Get(name)
		if !ok {
			return fmt.Errorf("interface %q not found", name)
		}
		filtered := model.NewNetworkState()
		filtered.KernelOnly = state.KernelOnly
		filtered.Interfaces.Insert(*iface)
		state = filtered
	}

	out, err := netdoc.EncodeYAML(state)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	kernelOnly := fs.Bool("kernel", false, "apply through the kernel backend only, skipping the checkpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("apply requires exactly one file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	desired, err := netdoc.DecodeYAML(data)
	if err != nil {
		return err
	}
	desired.TidyUp()

	kernel := kernelnet.NewRealAdapter()
	var o *orchestrator.Orchestrator
	if *kernelOnly {
		o = orchestrator.New(kernel, nil)
	} else {
		userspace, err := nmbus.NewRealAdapter()
		if err != nil {
			return err
		}
		o = orchestrator.New(kernel, userspace)
	}

	if err := o.Apply(desired, *kernelOnly); err != nil {
		return err
	}
	log.Printf("[netconfctl] apply committed (phase=%s)", o.Phase())
	return nil
}

func runGC(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("gc requires exactly one file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	desired, err := netdoc.DecodeYAML(data)
	if err != nil {
		return err
	}
	desired.TidyUp()

	current := desired // gc never touches the live system
	_, _, _, err = reconcile.GenerateStateForApply(desired, current)
	if err != nil {
		return err
	}

	out, err := netdoc.EncodeYAML(desired)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
