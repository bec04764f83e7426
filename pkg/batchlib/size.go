package batchlib

import "fmt"

const (
	_  = iota
	KB = 1 << (10 * iota)
	MB
	GB
	TB
)

// ByteSize formats a byte count for humans, e.g. "1.50 MB".
type ByteSize int64

func (b ByteSize) String() string {
	switch {
	case b < 0:
		return "undefined"
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/TB)
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/GB)
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/MB)
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/KB)
	}
	return fmt.Sprintf("%d B", int64(b))
}
