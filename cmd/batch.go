package cmd

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/google/uuid"
	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchcli"
)

var (
	batchID    string
	batchDir   string
	batchWatch bool

	submitFlags = withConnFlags(
		cli.StringFlag{
			Name:        "id",
			Usage:       "batch id (default: the manifest id or a generated one)",
			Destination: &batchID,
		},
		cli.StringFlag{
			Name:        "dir, d",
			Usage:       "directory for items that do not name one",
			Destination: &batchDir,
		},
		cli.BoolFlag{
			Name:        "watch, w",
			Usage:       "show progress until every item has finished",
			Destination: &batchWatch,
		},
	)
)

var errNoBatchID = errors.New("batch id required")

// displayName is the label of an item in progress output.
func displayName(p common.ItemParams) string {
	if p.FileName != "" {
		return p.FileName
	}
	return path.Base(p.URL)
}

func batchSubmit(ctx *cli.Context) error {
	file := ctx.Args().First()
	if file == "" {
		return cmdcommon.PrintErrWithCmdHelp(ctx, errors.New("batch file required"))
	}
	id, items, err := LoadBatchFile(inputFs, file, batchDir)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "batch", "load_file", err)
		return nil
	}
	if batchID != "" {
		id = batchID
	}
	names := make(map[string]string, len(items))
	ids := make([]string, len(items))
	for i := range items {
		items[i].ID = uuid.NewString()
		ids[i] = items[i].ID
		names[items[i].ID] = displayName(items[i])
	}

	var res *common.BatchDispatchResult
	submit := func() error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()
		res, err = client.DispatchBatch(id, items)
		if err != nil {
			return err
		}
		fmt.Printf("batch %s: %d items dispatched\n", res.ID, len(res.Items))
		return nil
	}
	if !batchWatch {
		if err := submit(); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "batch", "dispatch", err)
		}
		return nil
	}
	return watchUntil(ctx, "batch", newProgressView(os.Stdout, names, ids), submit)
}

func batchControl(name string, call func(*batchcli.Client, string) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		id := ctx.Args().First()
		if id == "" {
			return cmdcommon.PrintErrWithCmdHelp(ctx, errNoBatchID)
		}
		client, err := newClient()
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "batch", "new_client", err)
			return nil
		}
		defer client.Close()
		if err := call(client, id); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "batch", name, err)
			return nil
		}
		fmt.Printf("batch %s: %s ok\n", id, name)
		return nil
	}
}

func batchList(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "batch", "new_client", err)
		return nil
	}
	defer client.Close()
	batches, err := client.ListBatches()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "batch", "list", err)
		return nil
	}
	if len(batches) == 0 {
		fmt.Println("batchdl: no batches")
		return nil
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })
	fmt.Println("|" + cmdcommon.Beaut("Batch", 38) + "|" + cmdcommon.Beaut("State", 9) + "|" + cmdcommon.Beaut("Items", 7) + "|" + cmdcommon.Beaut("Active", 8) + "|")
	for _, b := range batches {
		fmt.Printf("|%-38s|%-9s|%7d|%8d|\n", cmdcommon.Truncate(b.ID, 38), b.State, b.Items, b.Active)
	}
	return nil
}
