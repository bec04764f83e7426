package batchlib

import (
	"os"
	"path/filepath"
	"sync"
)

// ConfigDirEnv overrides the directory holding daemon state such as the SFTP
// known_hosts file, the RPC secret fallback and the daemon log.
const ConfigDirEnv = "BATCHDL_CONFIG_DIR"

var (
	configDirMu sync.RWMutex
	configDir   string
)

// ConfigDir returns the configuration directory: the value set by
// SetConfigDir, else $BATCHDL_CONFIG_DIR, else <user config dir>/batchdl.
func ConfigDir() string {
	configDirMu.RLock()
	dir := configDir
	configDirMu.RUnlock()
	if dir != "" {
		return dir
	}
	if env := os.Getenv(ConfigDirEnv); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "batchdl")
}

// SetConfigDir overrides the configuration directory and creates it.
func SetConfigDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	configDirMu.Lock()
	configDir = abs
	configDirMu.Unlock()
	return nil
}
