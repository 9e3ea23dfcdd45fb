//go:build linux

// Package unix provides platform-specific Unix primitives.
package unix

import "syscall"

// Socketpair returns a connected AF_UNIX stream pair with close-on-exec set
// on both ends. Linux sets the flag atomically at creation.
func Socketpair() (fds [2]int, err error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	return syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
}
