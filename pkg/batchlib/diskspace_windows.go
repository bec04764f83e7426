//go:build windows

package batchlib

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// checkDiskSpace returns ErrInsufficientDiskSpace when the volume holding dir
// has fewer than requiredBytes available to the caller.
func checkDiskSpace(dir string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return nil
	}
	var freeToCaller, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeToCaller, &total, &free); err != nil {
		return nil
	}
	if int64(freeToCaller) < requiredBytes {
		return fmt.Errorf("%w: required %s, available %s",
			ErrInsufficientDiskSpace, ByteSize(requiredBytes), ByteSize(int64(freeToCaller)))
	}
	return nil
}
