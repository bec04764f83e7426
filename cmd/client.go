package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchcli"
	"github.com/warpdl/batchdl/pkg/batchlib"
	"github.com/warpdl/batchdl/pkg/credman"
)

var (
	rpcPort   int
	rpcSecret string

	connFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "port",
			Usage:       "port of the daemon's RPC endpoint",
			EnvVar:      common.RPCPortEnv,
			Value:       common.DEF_RPC_PORT,
			Destination: &rpcPort,
		},
		cli.StringFlag{
			Name:        "secret",
			Usage:       "RPC token (default: the token stored by the daemon)",
			EnvVar:      common.RPCSecretEnv,
			Destination: &rpcSecret,
		},
	}
)

// currentVersion is compared against the daemon's version on connect.
var currentVersion string

func withConnFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, flags...), connFlags...)
}

func resolveSecret() (string, error) {
	if rpcSecret != "" {
		return rpcSecret, nil
	}
	s, _, err := credman.NewSecretManager(common.RPCSecretEnv, batchlib.ConfigDir(), nil).Lookup()
	if err != nil {
		return "", fmt.Errorf("%w: start the daemon once or set %s", err, common.RPCSecretEnv)
	}
	return s, nil
}

var newClient = func() (*batchcli.Client, error) {
	secret, err := resolveSecret()
	if err != nil {
		return nil, err
	}
	c, err := batchcli.NewClient(batchcli.LocalAddr(rpcPort), secret)
	if err != nil {
		return nil, err
	}
	c.CheckVersionMismatch(os.Stderr, currentVersion)
	return c, nil
}
