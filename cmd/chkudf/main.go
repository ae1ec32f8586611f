// Command chkudf is an fsck-style checker and repairer for UDF volumes. It
// runs every structural repair the fixer package knows (anchor/AVDP extent
// lengths, Main/Reserve VDS reconciliation, the space bitmap, the LVID
// chain close, and per-directory FID/FE repair) and exits with the
// fsck-style codes in pkg/consts.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/config"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/fixer"
	"github.com/bgrewell/udf-kit/pkg/logging"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/bgrewell/udf-kit/pkg/version"
	"github.com/bgrewell/usage"
	"github.com/theckman/yacspin"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("chkudf"),
		usage.WithApplicationDescription("chkudf checks a UDF filesystem image or device for structural inconsistencies and repairs them."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	autofix := u.AddBooleanOption("y", "yes", false, "Apply every repair automatically instead of only reporting", "", nil)
	noWrite := u.AddBooleanOption("n", "no-write", false, "Report what would change without writing anything, even with --yes", "", nil)
	quiet := u.AddBooleanOption("q", "quiet", false, "Suppress the progress spinner", "", nil)
	path := u.AddArgument(1, "device", "Path to the UDF image or device to check", "")
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

	log := logging.NewConsoleLogger(logging.LevelInfo)

	policy := cfg.Policy()
	if *autofix {
		policy = option.AutoFix
	}

	var openOpts []blockio.Option
	if policy == option.ReportOnly || *noWrite {
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
	f := fixer.New(d, io, policy, fixerOpts...)

	spinner := newSpinner(*quiet)
	if spinner != nil {
		_ = spinner.Start()
	}

	var findings []fixer.Finding
	step := func(label string, fn func() (fixer.Report, error)) {
		if spinner != nil {
			spinner.Message(label)
		}
		report, err := fn()
		if err != nil {
			u.PrintError(fmt.Errorf("%s: %w", label, err))
			return
		}
		findings = append(findings, report.Findings...)
	}

	step("reconciling anchor copies", f.FixAVDPExtentLengths)
	step("reconciling volume descriptor sequences", f.FixVDS)
	step("closing logical volume integrity chain", f.FixLVIDClose)
	for num := range d.Partitions {
		num := num
		step(fmt.Sprintf("rebuilding space bitmap for partition %d", num), func() (fixer.Report, error) {
			return f.FixPDSpaceBitmap(num)
		})
	}
	for _, e := range d.Entries {
		if !e.IsDir {
			continue
		}
		e := e
		step(fmt.Sprintf("repairing directory %s", e.Path), func() (fixer.Report, error) {
			return f.RepairDirectory(e.PartitionRef, e.ICBBlock)
		})
	}

	if spinner != nil {
		_ = spinner.Stop()
	}

	unrepaired := false
	for _, finding := range findings {
		status := "repaired"
		if !finding.Repaired {
			status = "NOT repaired"
			unrepaired = true
		}
		fmt.Printf("[%s] %s\n", status, finding.Description)
	}

	switch {
	case len(findings) == 0:
		fmt.Println("no inconsistencies found")
		os.Exit(consts.ExitOK)
	case unrepaired:
		os.Exit(consts.ExitErrorsUncorrected)
	default:
		os.Exit(consts.ExitErrorsCorrected)
	}
}

func newSpinner(quiet bool) *yacspin.Spinner {
	if quiet {
		return nil
	}
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " ",
		Message:         "checking volume",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
		StopFailMessage: "check failed",
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		return nil
	}
	return s
}
