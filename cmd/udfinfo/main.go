// Command udfinfo prints a summary of a UDF volume's structural state:
// label, partition layout, file/directory counts, and free-space
// reconciliation per partition.
package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/config"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/fixer"
	"github.com/bgrewell/udf-kit/pkg/logging"
	"github.com/bgrewell/udf-kit/pkg/version"
	"github.com/bgrewell/usage"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("udfinfo"),
		usage.WithApplicationDescription("udfinfo prints volume label, layout, and free-space information for a UDF filesystem image or device."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Enable debug logging", "", nil)
	path := u.AddArgument(1, "device", "Path to the UDF image or device to inspect", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(consts.ExitUsageError)
	}
	if *help {
		u.PrintUsage()
		os.Exit(consts.ExitOK)
	}
	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("a <device> path must be provided"))
		os.Exit(consts.ExitUsageError)
	}

	cfg, err := config.Load("")
	if err != nil {
		u.PrintError(err)
		os.Exit(consts.ExitToolError)
	}

	verbosity := logging.LevelInfo
	if *verbose {
		verbosity = logging.LevelDebug
	}
	log := logging.NewConsoleLogger(verbosity)

	io, err := blockio.Open(*path, cfg.BlockSize, blockio.ReadOnly())
	if err != nil {
		u.PrintError(fmt.Errorf("opening %s: %w", *path, err))
		os.Exit(consts.ExitToolError)
	}
	defer io.Close()

	d, err := disc.ReadDisc(io, log, cfg.OpenOptions(0)...)
	if err != nil {
		u.PrintError(fmt.Errorf("reading volume: %w", err))
		os.Exit(consts.ExitToolError)
	}

	f := fixer.New(d, io, cfg.Policy())
	printSummary(d, f)
}

func printSummary(d *disc.Disc, f *fixer.Fixer) {
	fmt.Println("=== Volume Summary ===")
	fmt.Printf("Label: %s\n", f.ExtractLabel())
	fmt.Printf("Block size: %d\n", d.BlockSize)
	fmt.Printf("Anchors found: %d\n", len(d.Anchors))

	fileCount, dirCount := 0, 0
	for _, e := range d.Entries {
		if e.IsDir {
			dirCount++
		} else {
			fileCount++
		}
	}
	fmt.Printf("Files: %d\n", fileCount)
	fmt.Printf("Directories: %d\n", dirCount)

	fmt.Println("\n=== Partitions ===")
	for num, p := range d.Partitions {
		fmt.Printf("Partition %d: kind=%s start=%d length=%d\n", num, p.Map.Kind(), p.Descriptor.PartitionStartingLocation, p.Descriptor.PartitionLength)
		if r, ok := d.FreeSpace[num]; ok {
			fmt.Printf("  free (bitmap): %d  walked used: %d\n", r.BitmapFreeBlocks, r.WalkedUsedBlocks)
			for _, note := range r.Discrepancies {
				fmt.Printf("  discrepancy: %s\n", note)
			}
		}
	}
}
