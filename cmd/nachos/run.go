package main

import (
	"fmt"
	"os"

	"github.com/BMarelli/nachos/internal/bootconfig"
	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/klog"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/BMarelli/nachos/internal/trap"
	"github.com/BMarelli/nachos/internal/vm"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		diskPath      string
		numSectors    int
		numPhysPages  int
		demandLoading bool
		swap          bool
		replacement   string
		debugFlag     string
		noPreempt     bool
	)

	cmd := &cobra.Command{
		Use:   "run <executable> [argv...]",
		Short: "boot the kernel and run a user executable to completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := bootconfig.ParseReplacementPolicy(replacement)
			if err != nil {
				return err
			}

			cfg := bootconfig.Config{
				DiskPath:      diskPath,
				NumSectors:    numSectors,
				NumPhysPages:  numPhysPages,
				Argv:          args,
				DemandLoading: demandLoading,
				Swap:          swap,
				Replacement:   policy,
				DebugChannels: bootconfig.SplitDebugChannels(debugFlag),
				NoPreempt:     noPreempt,
			}

			return runKernel(cfg)
		},
	}

	cmd.Flags().StringVar(&diskPath, "disk", "nachos.disk", "path to the disk image file")
	cmd.Flags().IntVar(&numSectors, "sectors", 1024, "number of sectors the disk image holds")
	cmd.Flags().IntVar(&numPhysPages, "phys-pages", 32, "number of physical page frames the simulated machine has")
	cmd.Flags().BoolVar(&demandLoading, "demand-loading", false, "load code/data pages lazily on first fault instead of eagerly at Exec time")
	cmd.Flags().BoolVar(&swap, "swap", false, "back evicted pages with a per-process swap file instead of discarding them")
	cmd.Flags().StringVar(&replacement, "replacement", "fifo", "page replacement policy when no physical frame is free: fifo, clock, or random")
	cmd.Flags().StringVar(&debugFlag, "debug", "", "comma-separated debug channels to enable (e.g. f,t,a,e), or + for all")
	cmd.Flags().BoolVar(&noPreempt, "nopreempt", false, "disable timer-driven preemption (currently always off: the scheduler has no preemption to disable)")

	return cmd
}

// runKernel performs the same bring-up sequence
// original_source/threads/system.cc's Initialize does before handing
// control to the first user program: bring up the scheduler, mount the
// disk-backed file system, build the simulated machine and its core map,
// wire a console onto the process's own stdin/stdout, then Exec the
// requested executable and wait for it to finish.
//
// There is no instruction-level interpreter driving the simulated MIPS
// machine here (the same non-goal original_source's own "stub" Machine
// mode documents: instruction execution is simulated only far enough to
// exercise address translation and syscall dispatch, never fetched and
// decoded one opcode at a time). Exec's Fork body is consequently the
// entire "execution" of a process: it sets up the address space and
// argv, and the Kernel's Dispatch lives ready to service a trap a
// harness drives directly, the way every internal/trap test already
// does. A blocking Exec plus Join is therefore the right-sized run loop
// for this binary: it takes the process through setup and teardown
// without pretending to execute instructions nothing here fetches.
func runKernel(cfg bootconfig.Config) error {
	if len(cfg.DebugChannels) > 0 {
		klog.Enable(cfg.DebugChannels...)
	}

	thread.Init("main")

	d, err := device.OpenDisk(cfg.DiskPath, fs.SectorSize, cfg.NumSectors)
	if err != nil {
		return fmt.Errorf("opening disk %q: %w", cfg.DiskPath, err)
	}
	disk := syncio.NewSynchDisk(d, nil)
	fsys := fs.NewFileSystem(disk, cfg.NumSectors, false)

	executableFile, err := fsys.Open(cfg.Argv[0])
	if err != nil {
		return fmt.Errorf("opening executable %q: %w", cfg.Argv[0], err)
	}

	core := vm.NewCoreMap(cfg.NumPhysPages)
	machine := vm.NewMachine(cfg.NumPhysPages, cfg.DemandLoading || cfg.Swap)
	vmCfg := vm.Config{
		CoreMap:       core,
		Machine:       machine,
		FileSystem:    fsys,
		DemandLoading: cfg.DemandLoading,
		Swap:          cfg.Swap,
		Replacement:   cfg.Replacement,
	}

	console := syncio.NewSynchConsole(device.NewConsole(os.Stdin, os.Stdout))

	kernel := &trap.Kernel{
		Machine:    machine,
		FileSystem: fsys,
		Console:    console,
		Processes:  trap.NewProcessTable(),
		VMConfig:   vmCfg,
	}

	// parallel=false: Exec blocks until the process (and anything it
	// transitively Execs and Joins) has finished, so run exits only once
	// the whole tree is done, the one-shot behavior "nachos run" needs.
	_, err = kernel.Processes.Exec(vmCfg, fsys, executableFile, cfg.Argv, false)
	if err != nil {
		fsys.Close(executableFile)
		return fmt.Errorf("running %q: %w", cfg.Argv[0], err)
	}

	return nil
}
