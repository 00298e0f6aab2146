package main

import (
	"fmt"

	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var diskPath string
	var numSectors int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "walk an existing disk image's free-list, directories, and inodes for inconsistencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			thread.Init("main")

			d, err := device.OpenDisk(diskPath, fs.SectorSize, numSectors)
			if err != nil {
				return fmt.Errorf("opening disk %q: %w", diskPath, err)
			}

			disk := syncio.NewSynchDisk(d, nil)
			fsys := fs.NewFileSystem(disk, numSectors, false)

			problems := fsys.Check()
			if len(problems) == 0 {
				fmt.Println("ok")
				return nil
			}

			for _, p := range problems {
				fmt.Println(p)
			}
			return fmt.Errorf("check: found %d problem(s)", len(problems))
		},
	}

	cmd.Flags().StringVar(&diskPath, "disk", "nachos.disk", "path to the disk image file")
	cmd.Flags().IntVar(&numSectors, "sectors", 1024, "number of sectors the disk image holds")

	return cmd
}
