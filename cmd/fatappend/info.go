package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/gokrazy/fatappend/imageflag"
	"github.com/gokrazy/fatappend/mbr"
	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the geometry of a FAT volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if imageflag.Image() == "" {
				return errors.New("no image specified, use --image or set FATAPPEND_IMAGE")
			}
			return printInfo(cmd.OutOrStdout(), imageflag.Image())
		},
	}
}

func printPartitions(w io.Writer, image string) error {
	f, err := os.Open(image)
	if err != nil {
		return err
	}
	defer f.Close()
	parts, err := imageflag.Partitions(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Partitions:\n")
	for _, p := range parts {
		kind := ""
		if p.FAT {
			kind = "FAT"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\toffset %d\t%s\t%s\n",
			p.Number, p.Table, p.Type, p.Name, p.Offset, units.BytesSize(float64(p.Size)), kind)
	}
	return nil
}

// printInfo prints the geometry of the selected volume. The partition table
// is printed as well when a partition was selected, or when the image does
// not start with a FAT boot sector.
func printInfo(w io.Writer, image string) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	defer tw.Flush()

	f, v, err := openImage(image, os.O_RDONLY)
	if imageflag.Partition() != 0 || err != nil {
		if perr := printPartitions(tw, image); perr != nil && !errors.Is(perr, mbr.ErrNoSignature) && err == nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	defer f.Close()

	g := v.Geometry()
	fmt.Fprintf(tw, "Type:\t%v\n", v.Type())
	fmt.Fprintf(tw, "Label:\t%q\n", g.Label())
	fmt.Fprintf(tw, "Bytes per sector:\t%d\n", g.BytesPerSector)
	fmt.Fprintf(tw, "Sectors per cluster:\t%d\n", g.SectorsPerCluster)
	fmt.Fprintf(tw, "Total sectors:\t%d (%s)\n", g.TotalSectors(), units.BytesSize(float64(g.TotalSectors())*float64(g.BytesPerSector)))
	fmt.Fprintf(tw, "FATs:\t%d of %d sectors at offset %d\n", g.NumFATs, g.SectorsPerFAT(), v.FATOffset())
	fmt.Fprintf(tw, "Root directory:\toffset %d\n", v.RootDirOffset())
	fmt.Fprintf(tw, "Data region:\toffset %d\n", v.DataOffset())
	fmt.Fprintf(tw, "Clusters:\t%d of %s (2..%d)\n", v.Clusters(), units.BytesSize(float64(v.ClusterBytes())), v.LastCluster())
	fi, err := v.ReadFSInfo()
	if err != nil {
		return err
	}
	if fi != nil && fi.Valid() {
		fmt.Fprintf(tw, "FSInfo:\tfree %#x, next free %#x\n", fi.FreeCount, fi.NextFree)
	}
	return nil
}
