//go:build linux || darwin

package prefork

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// DropPrivileges reduces the calling process's identity to the given user
// and group, each either numeric or a name. Empty strings are skipped.
// The group change is applied strictly before the user change: once the
// uid is dropped the process generally no longer has the right to change
// its gid. That ordering is fixed.
func DropPrivileges(uid, gid string) error {
	if gid != "" {
		g, err := lookupGroupID(gid)
		if err != nil {
			return &OpError{Op: OpPrivDrop, Path: gid, Err: err}
		}
		if err := unix.Setgid(g); err != nil {
			return &OpError{Op: OpPrivDrop, Path: gid, Err: err}
		}
	}
	if uid != "" {
		u, err := lookupUserID(uid)
		if err != nil {
			return &OpError{Op: OpPrivDrop, Path: uid, Err: err}
		}
		if err := unix.Setuid(u); err != nil {
			return &OpError{Op: OpPrivDrop, Path: uid, Err: err}
		}
	}
	return nil
}

// lookupUserID resolves a numeric uid or user name to a uid
func lookupUserID(s string) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	u, err := user.Lookup(s)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, fmt.Errorf("non-numeric uid %q for user %q", u.Uid, s)
	}
	return id, nil
}

// lookupGroupID resolves a numeric gid or group name to a gid
func lookupGroupID(s string) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	g, err := user.LookupGroup(s)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("non-numeric gid %q for group %q", g.Gid, s)
	}
	return id, nil
}
