package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xrgtn/fat16dir/internal/device"
	"github.com/xrgtn/fat16dir/internal/fat16"
	"github.com/xrgtn/fat16dir/internal/listing"
)

// Listing command flags
var (
	sizeSelector string = "none" // Optional size column: none, bytes, clusters, sectors
	outputFormat string = "text" // Output format for listings
	partitionNum int    = 0      // Partition to inspect, 0 means the whole device
)

// Allow tests to inject an in-memory filesystem.
var deviceFs = func() afero.Fs {
	return afero.NewReadOnlyFs(afero.NewOsFs())
}

// createListCommand creates the fat16dir command.
func createListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "fat16dir [flags] DEVICE [PATH...]",
		Short: "list directories of a FAT16 volume without mounting it",
		Long: `fat16dir reads a FAT16-formatted block device or disk image directly
and reconstructs directory listings from the on-disk structures. The volume
is never mounted and never written to. Each requested path is resolved
against the volume and printed as one listing; with no path, the root
directory is listed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := listing.ParseSizeMode(sizeSelector); err != nil {
				return err
			}
			switch outputFormat {
			case "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unsupported --format %q (supported: text, json, yaml)", outputFormat)
			}
		},
		RunE: executeList,
	}

	listCmd.Flags().StringVar(&sizeSelector, "size", "none",
		"Show a size column: none, bytes, clusters or sectors")
	listCmd.Flags().StringVar(&outputFormat, "format", "text",
		"Output format for listings: text, json or yaml")
	listCmd.Flags().IntVar(&partitionNum, "partition", 0,
		"Inspect the given partition of the image instead of the whole device")

	return listCmd
}

// executeList opens the device, resolves every requested path and renders
// the listings. A path that cannot be resolved is reported and the
// remaining paths are still processed; any failed path makes the command
// fail after all paths were handled.
func executeList(cmd *cobra.Command, args []string) error {
	devicePath := args[0]
	paths := args[1:]
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	sizeMode, err := listing.ParseSizeMode(sizeSelector)
	if err != nil {
		return err
	}

	dev, err := device.Open(deviceFs(), afero.NewOsFs(), devicePath, partitionNum)
	if err != nil {
		return err
	}
	defer dev.Close()

	vol, err := fat16.Open(dev.ReaderAt())
	if err != nil {
		return err
	}

	listings := make([]listing.Listing, 0, len(paths))
	failed := 0
	for _, p := range paths {
		entries, err := vol.Resolve(p)
		if err != nil {
			if !errors.Is(err, fat16.ErrNotFound) {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", devicePath, err)
			failed++
			continue
		}
		listings = append(listings, listing.Build(p, entries, vol.BootRecord(), sizeMode))
	}

	if err := writeListings(cmd.OutOrStdout(), listings, outputFormat); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d paths could not be resolved", failed, len(paths))
	}
	return nil
}

func writeListings(out io.Writer, listings []listing.Listing, format string) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(listings, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case "yaml":
		b, err := yaml.Marshal(listings)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = fmt.Fprint(out, string(b))
		return err
	default:
		for _, l := range listings {
			listing.RenderText(out, l)
		}
		return nil
	}
}
