package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
)

func info(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "info", "new_client", err)
		return nil
	}
	defer client.Close()
	v, err := client.Version()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "info", "get_version", err)
		return nil
	}
	si, err := client.SystemInfo()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "info", "system_info", err)
		return nil
	}
	fmt.Printf(`Daemon:        %s
CPU cores:     %d
Concurrency:   %d
Recommended:   %d
Maximum:       %d
`, v.Version, si.CPUCores, si.Concurrency, si.RecommendedConcurrency, si.MaxConcurrency)
	return nil
}
