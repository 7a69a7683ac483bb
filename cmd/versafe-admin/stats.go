package main

import (
	"io"
	"os"
	"strconv"

	"github.com/fjl/memsize"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/mem"
	"github.com/urfave/cli/v2"

	"github.com/versafe/versafe-core/internal/clihelpers"
)

var commandStats = &cli.Command{
	Name:   "stats",
	Usage:  "report outbox depth, ledger gateway memory footprint and host memory usage",
	Action: statsReport,
}

// statsOut picks a colorable writer when stdout is a real terminal, the
// same decision the teacher's console tooling makes before emitting
// colored table output.
func statsOut() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return os.Stdout
}

func statsReport(cctx *cli.Context) error {
	c, err := buildCore(cctx)
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "build core: %v", err)
	}
	defer c.Close()

	depth, err := c.Ledger.OutboxDepth()
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "read outbox depth: %v", err)
	}

	sizes := memsize.Scan(c.Ledger)
	vm, err := mem.VirtualMemory()
	if err != nil {
		clihelpers.Fatalf(clihelpers.ExitInternal, "read host memory: %v", err)
	}

	table := tablewriter.NewWriter(statsOut())
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"outbox depth", strconv.Itoa(depth)})
	table.Append([]string{"ledger gateway in-memory bytes", strconv.FormatUint(uint64(sizes.Total), 10)})
	table.Append([]string{"host memory used", strconv.Itoa(int(vm.UsedPercent)) + "%"})
	table.Render()
	return nil
}
