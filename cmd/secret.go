package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
	"github.com/warpdl/batchdl/pkg/credman"
)

var (
	secretRotate    bool
	secretConfigDir string

	secretFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "rotate",
			Usage:       "generate and store a new token",
			Destination: &secretRotate,
		},
		cli.StringFlag{
			Name:        "config-dir",
			Usage:       "directory holding the secret file",
			EnvVar:      common.ConfigDirEnv,
			Destination: &secretConfigDir,
		},
	}
)

func secret(ctx *cli.Context) error {
	if secretConfigDir != "" {
		if err := batchlib.SetConfigDir(secretConfigDir); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "secret", "config_dir", err)
			return nil
		}
	}
	sm := credman.NewSecretManager(common.RPCSecretEnv, batchlib.ConfigDir(), nil)
	if secretRotate {
		s, err := sm.Rotate()
		if err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "secret", "rotate", err)
			return nil
		}
		fmt.Println(s)
		return nil
	}
	s, src, err := sm.Secret()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "secret", "lookup", err)
		return nil
	}
	fmt.Printf("%s (from %s)\n", s, src)
	return nil
}
