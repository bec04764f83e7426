package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/internal/api"
	"github.com/warpdl/batchdl/internal/daemon"
	"github.com/warpdl/batchdl/internal/server"
	"github.com/warpdl/batchdl/pkg/batchlib"
	"github.com/warpdl/batchdl/pkg/credman"
	"github.com/warpdl/batchdl/pkg/logger"
)

var (
	daemonPort        int
	daemonListenAll   bool
	daemonConcurrency int
	daemonProxy       string
	daemonConfigDir   string
	daemonDebug       bool

	daemonFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "port",
			Usage:       "port of the RPC endpoint",
			EnvVar:      common.RPCPortEnv,
			Value:       common.DEF_RPC_PORT,
			Destination: &daemonPort,
		},
		cli.BoolFlag{
			Name:        "listen-all",
			Usage:       "listen on all interfaces instead of 127.0.0.1",
			Destination: &daemonListenAll,
		},
		cli.IntFlag{
			Name:        "concurrency, c",
			Usage:       "maximum number of simultaneous transfers (default: number of CPUs)",
			Destination: &daemonConcurrency,
		},
		cli.StringFlag{
			Name:        "proxy",
			Usage:       "http, https or socks5 proxy URL for HTTP downloads",
			Destination: &daemonProxy,
		},
		cli.StringFlag{
			Name:        "config-dir",
			Usage:       "directory for the log, secret and known_hosts files",
			EnvVar:      common.ConfigDirEnv,
			Destination: &daemonConfigDir,
		},
		cli.BoolFlag{
			Name:        "debug",
			Usage:       "also log to stderr",
			EnvVar:      common.DebugEnv,
			Destination: &daemonDebug,
		},
	}
)

// clampConcurrency bounds n to [1, max]; n < 1 picks the recommended value.
func clampConcurrency(n int, info batchlib.SystemInfo) int {
	switch {
	case n < 1:
		return info.RecommendedConcurrency
	case n > info.MaxConcurrency:
		return info.MaxConcurrency
	}
	return n
}

func newDaemonLogger(dir string, debug bool) (logger.Logger, error) {
	fl, err := logger.NewFileLogger(filepath.Join(dir, "daemon.log"))
	if err != nil {
		return nil, err
	}
	if !debug {
		return fl, nil
	}
	return logger.NewMultiLogger(fl, logger.NewStandardLogger(log.New(os.Stderr, "batchdl: ", log.LstdFlags))), nil
}

func runDaemon(ctx *cli.Context) error {
	if daemonConfigDir != "" {
		if err := batchlib.SetConfigDir(daemonConfigDir); err != nil {
			cmdcommon.PrintRuntimeErr(ctx, "daemon", "config_dir", err)
			return nil
		}
	}
	dir := batchlib.ConfigDir()
	l, err := newDaemonLogger(dir, daemonDebug)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "logger", err)
		return nil
	}
	defer l.Close()

	secret, src, err := credman.NewSecretManager(common.RPCSecretEnv, dir, l).Secret()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "rpc_secret", err)
		return nil
	}

	info := batchlib.GetSystemInfo()
	conc := clampConcurrency(daemonConcurrency, info)
	if conc != daemonConcurrency && daemonConcurrency > 0 {
		l.Warning("concurrency %d out of range, using %d", daemonConcurrency, conc)
	}

	clientOpts := batchlib.DefaultClientOpts()
	clientOpts.ProxyURL = daemonProxy
	httpClient, err := batchlib.NewHTTPClient(clientOpts)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "http_client", err)
		return nil
	}
	router := batchlib.NewSchemeRouter(httpClient, &batchlib.SFTPOpts{
		KnownHostsPath: filepath.Join(dir, "known_hosts"),
	})
	m, err := batchlib.NewManager(&batchlib.ManagerOpts{
		Concurrency: conc,
		Engine:      &batchlib.EngineOpts{Source: router, Logger: l},
		Logger:      l,
	})
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "manager", err)
		return nil
	}

	a := api.NewApi(l, m, versionResult)
	rpc := server.NewRPCServer(secret, a.Methods())
	web := server.NewWebServer(l, rpc, nil)
	unsubscribe := m.Subscribe(web.Notifier().ForwardProgress())

	runner := daemon.New(&daemon.Config{
		Port:            daemonPort,
		ListenAll:       daemonListenAll,
		ShutdownTimeout: DEF_SHUTDOWN_TIMEOUT,
	}, &daemon.Dependencies{
		Serve: web.Serve,
		ShutdownFunc: func(sctx context.Context) error {
			err := web.Shutdown(sctx)
			unsubscribe()
			rpc.Close()
			return errors.Join(err, a.Close())
		},
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := daemon.ListenAddress(daemonPort, daemonListenAll)
	l.Info("daemon starting on %s with concurrency %d (secret from %s)", addr, conc, src)
	fmt.Printf("batchdl daemon listening on %s (concurrency %d)\n", addr, conc)
	if err := runner.Start(sigCtx); err != nil {
		l.Error("daemon stopped: %v", err)
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "run", err)
		return nil
	}
	l.Info("daemon stopped")
	return nil
}
