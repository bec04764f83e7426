//go:build !windows

package batchlib

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkDiskSpace returns ErrInsufficientDiskSpace when the filesystem holding
// dir has fewer than requiredBytes available. Unknown sizes and failed statfs calls
// are not errors.
func checkDiskSpace(dir string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return nil
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	if available < requiredBytes {
		return fmt.Errorf("%w: required %s, available %s",
			ErrInsufficientDiskSpace, ByteSize(requiredBytes), ByteSize(available))
	}
	return nil
}
