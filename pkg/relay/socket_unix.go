//go:build unix

package relay

import (
	"syscall"
)

// setSocketOptions enables SO_REUSEADDR so the relay can restart immediately
func setSocketOptions(fd uintptr) error {
	return syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}
