// Package common provides the types and constants shared by the batchdl
// daemon and its clients.
package common

import (
	"os"
	"strconv"
	"strings"

	"github.com/warpdl/batchdl/pkg/batchlib"
)

// Environment variable names for configuration.
const (
	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = batchlib.ConfigDirEnv

	// RPCPortEnv overrides the daemon port.
	RPCPortEnv = "BATCHDL_RPC_PORT"

	// RPCSecretEnv sets the bearer token instead of the stored secret.
	RPCSecretEnv = "BATCHDL_RPC_SECRET"

	// DebugEnv enables debug logging to stderr.
	DebugEnv = "BATCHDL_DEBUG"
)

// RPCPort returns the port from RPCPortEnv, or DEF_RPC_PORT when it is unset
// or not a valid port.
func RPCPort() int {
	v := strings.TrimSpace(os.Getenv(RPCPortEnv))
	if v == "" {
		return DEF_RPC_PORT
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 || p > 65535 {
		return DEF_RPC_PORT
	}
	return p
}

// Debug reports whether DebugEnv is set to a true value.
func Debug() bool {
	b, _ := strconv.ParseBool(os.Getenv(DebugEnv))
	return b
}
