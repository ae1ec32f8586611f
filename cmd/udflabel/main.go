// Command udflabel rewrites a UDF volume's label. By default it rewrites
// the Primary Volume Descriptor's Volume Identifier; with --lv it instead
// rewrites the Logical Volume Identifier mirrored across the LVD, IUVD,
// and FSD.
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
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/bgrewell/udf-kit/pkg/version"
	"github.com/bgrewell/usage"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("udflabel"),
		usage.WithApplicationDescription("udflabel rewrites the volume or logical volume label of a UDF filesystem image or device."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	lv := u.AddBooleanOption("", "lv", false, "Rewrite the logical volume identifier instead of the volume identifier", "", nil)
	noWrite := u.AddBooleanOption("n", "no-write", false, "Report what would change without writing anything", "", nil)
	path := u.AddArgument(1, "device", "Path to the UDF image or device to relabel", "")
	label := u.AddArgument(2, "label", "The new label to write", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(consts.ExitUsageError)
	}
	if *help {
		u.PrintUsage()
		os.Exit(consts.ExitOK)
	}
	if path == nil || *path == "" || label == nil {
		u.PrintError(fmt.Errorf("both <device> and <label> must be provided"))
		os.Exit(consts.ExitUsageError)
	}

	cfg, err := config.Load("")
	if err != nil {
		u.PrintError(err)
		os.Exit(consts.ExitToolError)
	}

	log := logging.NewConsoleLogger(logging.LevelInfo)

	io, err := blockio.Open(*path, cfg.BlockSize)
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

	fixerOpts := []fixer.Option{}
	if *noWrite {
		fixerOpts = append(fixerOpts, fixer.WithNoWrite())
	}
	f := fixer.New(d, io, option.AutoFix, fixerOpts...)

	if *lv {
		err = f.SetLogicalVolumeIdentifier(*label)
	} else {
		err = f.SetVolumeLabel(*label)
	}
	if err != nil {
		u.PrintError(fmt.Errorf("relabeling: %w", err))
		os.Exit(consts.ExitErrorsUncorrected)
	}

	fmt.Printf("Label updated to %q\n", *label)
	os.Exit(consts.ExitOK)
}
