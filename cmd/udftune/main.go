// Command udftune exposes the fixer's single-shot, low-level repair
// primitives individually: copying one anchor to another's slot, copying
// one VDS descriptor block to another, and reporting the volume's
// Windows-style serial number. chkudf runs the full sweep; udftune is for
// a targeted, manual repair of one known-bad copy.
package main

import (
	"fmt"
	"os"
	"strconv"

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
		usage.WithApplicationName("udftune"),
		usage.WithApplicationDescription("udftune applies a single targeted repair to a UDF volume: copy-anchor, copy-descriptor, or serial."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	noWrite := u.AddBooleanOption("n", "no-write", false, "Report what would change without writing anything", "", nil)
	path := u.AddArgument(1, "device", "Path to the UDF image or device to operate on", "")
	op := u.AddArgument(2, "operation", "copy-anchor | copy-descriptor | serial", "")
	argA := u.AddArgument(3, "arg-a", "source anchor index, or source block, depending on operation", "")
	argB := u.AddArgument(4, "arg-b", "target anchor index, or target block, depending on operation", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(consts.ExitUsageError)
	}
	if *help {
		u.PrintUsage()
		os.Exit(consts.ExitOK)
	}
	if path == nil || *path == "" || op == nil || *op == "" {
		u.PrintError(fmt.Errorf("a <device> and <operation> must be provided"))
		os.Exit(consts.ExitUsageError)
	}

	cfg, err := config.Load("")
	if err != nil {
		u.PrintError(err)
		os.Exit(consts.ExitToolError)
	}

	log := logging.NewConsoleLogger(logging.LevelInfo)

	var openOpts []blockio.Option
	if *noWrite {
		openOpts = append(openOpts, blockio.ReadOnly())
	}

	io, err := blockio.Open(*path, cfg.BlockSize, openOpts...)
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

	var fixerOpts []fixer.Option
	if *noWrite {
		fixerOpts = append(fixerOpts, fixer.WithNoWrite())
	}
	f := fixer.New(d, io, option.AutoFix, fixerOpts...)

	switch *op {
	case "copy-anchor":
		source, errA := strconv.Atoi(*argA)
		target, errB := strconv.Atoi(*argB)
		if errA != nil || errB != nil {
			u.PrintError(fmt.Errorf("copy-anchor requires integer source and target anchor indices"))
			os.Exit(consts.ExitUsageError)
		}
		if err := f.WriteAnchor(source, target); err != nil {
			u.PrintError(err)
			os.Exit(consts.ExitErrorsUncorrected)
		}
		fmt.Printf("copied anchor %d to %d\n", source, target)

	case "copy-descriptor":
		source, errA := strconv.ParseUint(*argA, 10, 32)
		target, errB := strconv.ParseUint(*argB, 10, 32)
		if errA != nil || errB != nil {
			u.PrintError(fmt.Errorf("copy-descriptor requires integer source and target block numbers"))
			os.Exit(consts.ExitUsageError)
		}
		if err := f.CopyVDSDescriptor(uint32(source), uint32(target)); err != nil {
			u.PrintError(err)
			os.Exit(consts.ExitErrorsUncorrected)
		}
		fmt.Printf("copied descriptor at block %d to block %d\n", source, target)

	case "serial":
		serial, err := f.ComputeWindowsSerialNumber()
		if err != nil {
			u.PrintError(err)
			os.Exit(consts.ExitToolError)
		}
		fmt.Printf("%08X\n", serial)

	default:
		u.PrintError(fmt.Errorf("unknown operation %q", *op))
		os.Exit(consts.ExitUsageError)
	}

	os.Exit(consts.ExitOK)
}
