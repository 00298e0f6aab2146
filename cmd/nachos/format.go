package main

import (
	"fmt"

	"github.com/BMarelli/nachos/internal/device"
	"github.com/BMarelli/nachos/internal/fs"
	"github.com/BMarelli/nachos/internal/syncio"
	"github.com/BMarelli/nachos/internal/thread"
	"github.com/spf13/cobra"
)

func newFormatCmd() *cobra.Command {
	var diskPath string
	var numSectors int

	cmd := &cobra.Command{
		Use:   "format",
		Short: "lay down a fresh file system on a disk image",
		RunE: func(cmd *cobra.Command, args []string) error {
			thread.Init("main")

			d, err := device.OpenDisk(diskPath, fs.SectorSize, numSectors)
			if err != nil {
				return fmt.Errorf("opening disk %q: %w", diskPath, err)
			}

			disk := syncio.NewSynchDisk(d, nil)
			fs.NewFileSystem(disk, numSectors, true)

			fmt.Printf("formatted %q (%d sectors)\n", diskPath, numSectors)
			return nil
		},
	}

	cmd.Flags().StringVar(&diskPath, "disk", "nachos.disk", "path to the disk image file")
	cmd.Flags().IntVar(&numSectors, "sectors", 1024, "number of sectors the disk image holds")

	return cmd
}
