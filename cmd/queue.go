package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
	"github.com/warpdl/batchdl/pkg/batchcli"
)

var (
	addDir       string
	addFileName  string
	addInputFile string

	addFlags = withConnFlags(
		cli.StringFlag{
			Name:        "dir, d",
			Usage:       "directory to save the files in (default: the daemon's working directory)",
			Destination: &addDir,
		},
		cli.StringFlag{
			Name:        "file-name, o",
			Usage:       "file name to save as, only with a single URL",
			Destination: &addFileName,
		},
		cli.StringFlag{
			Name:        "input-file, i",
			Usage:       "read URLs from a file, one per line",
			Destination: &addInputFile,
		},
	)
)

// inputFs is where input and manifest files are read from.
var inputFs afero.Fs = afero.NewOsFs()

var errNoURL = errors.New("no url given")

func add(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	var entries []InputEntry
	for _, u := range ctx.Args() {
		entries = append(entries, InputEntry{URL: u, FileName: addFileName})
	}
	if addInputFile != "" {
		res, err := ParseInputFile(inputFs, addInputFile)
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "add", "input_file", err)
			return nil
		}
		for _, inv := range res.InvalidLines {
			fmt.Printf("skipping line %d: %s\n", inv.LineNumber, inv.Content)
		}
		entries = append(entries, res.Entries...)
	}
	if len(entries) == 0 {
		return cmdcommon.PrintErrWithCmdHelp(ctx, errNoURL)
	}
	if addFileName != "" && len(entries) > 1 {
		return cmdcommon.PrintErrWithCmdHelp(ctx, errors.New("--file-name needs exactly one url"))
	}

	client, err := newClient()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "add", "new_client", err)
		return nil
	}
	defer client.Close()
	for _, e := range entries {
		item, err := client.Add(e.URL, addDir, e.FileName)
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "add", "queue_add", err)
			continue
		}
		fmt.Printf("queued %s -> %s\n", item.ID, item.Path())
	}
	return nil
}

// queueAction builds the start, pause, resume and stop commands.
func queueAction(name string, call func(*batchcli.Client) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		client, err := newClient()
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, name, "new_client", err)
			return nil
		}
		defer client.Close()
		if err := call(client); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, name, "queue_"+name, err)
			return nil
		}
		fmt.Printf("queue: %s ok\n", name)
		return nil
	}
}

func status(ctx *cli.Context) error {
	client, err := newClient()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "status", "new_client", err)
		return nil
	}
	defer client.Close()
	st, err := client.Status()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "status", "queue_status", err)
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Queue: %s (%d/%d permits in use)\n", st.State, st.InUse, st.Concurrency)
	fmt.Fprintf(&sb, "Active (%d):\n", len(st.Active))
	for _, id := range st.Active {
		fmt.Fprintf(&sb, "  %s\n", id)
	}
	fmt.Fprintf(&sb, "Waiting (%d):\n", len(st.Waiting))
	for _, id := range st.Waiting {
		fmt.Fprintf(&sb, "  %s\n", id)
	}
	fmt.Print(sb.String())
	return nil
}
