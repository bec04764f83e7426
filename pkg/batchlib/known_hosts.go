package batchlib

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHostsMu serializes appends to known_hosts files.
var knownHostsMu sync.Mutex

// newTOFUHostKeyCallback accepts and records unknown hosts on first use and
// rejects hosts whose key changed since it was recorded. The file is re-read on
// every call so concurrent transfers see each other's additions.
func newTOFUHostKeyCallback(knownHostsFile string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := os.MkdirAll(filepath.Dir(knownHostsFile), 0700); err != nil {
			return fmt.Errorf("sftp: create known_hosts directory: %w", err)
		}
		if _, err := os.Stat(knownHostsFile); err == nil {
			cb, err := knownhosts.New(knownHostsFile)
			if err != nil {
				return fmt.Errorf("sftp: load known_hosts: %w", err)
			}
			err = cb(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) {
				return err
			}
			if len(keyErr.Want) > 0 {
				return fmt.Errorf("sftp: host key changed for %s (got %s), remove the old entry from %s",
					hostname, ssh.FingerprintSHA256(key), knownHostsFile)
			}
		}
		return appendKnownHost(knownHostsFile, hostname, key)
	}
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("sftp: write known_hosts: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
