//go:build windows

package relay

import (
	"syscall"
)

// setSocketOptions enables SO_REUSEADDR so the relay can restart immediately
func setSocketOptions(fd uintptr) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}
