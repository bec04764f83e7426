package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchcli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// versionResult is what the daemon reports for system.getVersion.
var versionResult common.VersionResult

func Execute(args []string, bArgs BuildArgs) error {
	versionResult = common.VersionResult{
		Version:   bArgs.Version,
		Commit:    bArgs.Commit,
		BuildType: bArgs.BuildType,
	}
	currentVersion = bArgs.Version

	app := cli.App{
		Name:                  "batchdl",
		HelpName:              "batchdl",
		Usage:                 "A resumable batch download manager.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "batchdl <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          cmdcommon.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "runs the download daemon",
				Description:        DaemonDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             runDaemon,
				Flags:              daemonFlags,
			},
			{
				Name:                   "add",
				Aliases:                []string{"a"},
				Usage:                  "adds downloads to the global queue",
				Description:            AddDescription,
				OnUsageError:           cmdcommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 add,
				UseShortOptionHandling: true,
				Flags:                  addFlags,
			},
			{
				Name:               "start",
				Usage:              "starts the global queue",
				Description:        QueueDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             queueAction("start", (*batchcli.Client).Start),
				Flags:              connFlags,
			},
			{
				Name:               "pause",
				Usage:              "pauses the global queue",
				Description:        QueueDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             queueAction("pause", (*batchcli.Client).Pause),
				Flags:              connFlags,
			},
			{
				Name:               "resume",
				Aliases:            []string{"r"},
				Usage:              "resumes the global queue",
				Description:        QueueDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             queueAction("resume", (*batchcli.Client).Resume),
				Flags:              connFlags,
			},
			{
				Name:               "stop",
				Usage:              "stops the global queue and clears it",
				Description:        QueueDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             queueAction("stop", (*batchcli.Client).Stop),
				Flags:              connFlags,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "prints the global queue state",
				Description:        StatusDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             status,
				Flags:              connFlags,
			},
			{
				Name:               "info",
				Aliases:            []string{"i"},
				Usage:              "prints daemon and host information",
				Description:        InfoDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             info,
				Flags:              connFlags,
			},
			{
				Name:               "batch",
				Aliases:            []string{"b"},
				Usage:              "submits and controls batches",
				Description:        BatchDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Subcommands: []cli.Command{
					{
						Name:                   "submit",
						Usage:                  "dispatches a batch file",
						ArgsUsage:              "<file>",
						OnUsageError:           cmdcommon.UsageErrorCallback,
						Action:                 batchSubmit,
						UseShortOptionHandling: true,
						Flags:                  submitFlags,
					},
					{
						Name:         "pause",
						Usage:        "pauses a batch",
						ArgsUsage:    "<id>",
						OnUsageError: cmdcommon.UsageErrorCallback,
						Action:       batchControl("pause", (*batchcli.Client).PauseBatch),
						Flags:        connFlags,
					},
					{
						Name:         "resume",
						Usage:        "resumes a paused batch",
						ArgsUsage:    "<id>",
						OnUsageError: cmdcommon.UsageErrorCallback,
						Action:       batchControl("resume", (*batchcli.Client).ResumeBatch),
						Flags:        connFlags,
					},
					{
						Name:         "stop",
						Usage:        "stops a batch and forgets it",
						ArgsUsage:    "<id>",
						OnUsageError: cmdcommon.UsageErrorCallback,
						Action:       batchControl("stop", (*batchcli.Client).StopBatch),
						Flags:        connFlags,
					},
					{
						Name:         "list",
						Aliases:      []string{"ls"},
						Usage:        "lists batches",
						OnUsageError: cmdcommon.UsageErrorCallback,
						Action:       batchList,
						Flags:        connFlags,
					},
				},
			},
			{
				Name:               "watch",
				Aliases:            []string{"w"},
				Usage:              "shows live progress",
				Description:        WatchDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             watch,
				Flags:              connFlags,
			},
			{
				Name:               "secret",
				Usage:              "prints or rotates the RPC token",
				Description:        SecretDescription,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             secret,
				Flags:              secretFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  cmdcommon.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of batchdl",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             cmdcommon.GetVersion,
			},
		},
		Action:      cmdcommon.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	cmdcommon.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
