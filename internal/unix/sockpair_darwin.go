//go:build darwin

// Package unix provides platform-specific Unix primitives.
package unix

import "syscall"

// Socketpair returns a connected AF_UNIX stream pair with close-on-exec set
// on both ends. Darwin has no SOCK_CLOEXEC, so the flags are set after
// creation under the fork lock.
func Socketpair() (fds [2]int, err error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	fds, err = syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	return
}
