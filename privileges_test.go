//go:build linux || darwin

package prefork

import (
	"os"
	"os/user"
	"strconv"
	"testing"
)

func TestLookupUserID(t *testing.T) {
	t.Run("numeric", func(t *testing.T) {
		id, err := lookupUserID("65534")
		if err != nil {
			t.Fatal(err)
		}
		if id != 65534 {
			t.Errorf("id = %d, want 65534", id)
		}
	})

	t.Run("by name", func(t *testing.T) {
		cur, err := user.Current()
		if err != nil || cur.Username == "" {
			t.Skip("no resolvable current user")
		}
		id, err := lookupUserID(cur.Username)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := strconv.Atoi(cur.Uid)
		if id != want {
			t.Errorf("id = %d, want %d", id, want)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		if _, err := lookupUserID("no-such-user-zzz"); err == nil {
			t.Fatal("expected lookup error")
		}
	})
}

func TestLookupGroupID(t *testing.T) {
	id, err := lookupGroupID("12345")
	if err != nil {
		t.Fatal(err)
	}
	if id != 12345 {
		t.Errorf("id = %d, want 12345", id)
	}

	if _, err := lookupGroupID("no-such-group-zzz"); err == nil {
		t.Fatal("expected lookup error")
	}
}

func TestDropPrivilegesNoop(t *testing.T) {
	// Empty identities skip both changes
	if err := DropPrivileges("", ""); err != nil {
		t.Fatal(err)
	}
}

func TestDropPrivilegesToSelf(t *testing.T) {
	// Setting the identity we already hold is permitted without
	// privilege, which also exercises the gid-before-uid path
	uid := strconv.Itoa(os.Getuid())
	gid := strconv.Itoa(os.Getgid())
	if err := DropPrivileges(uid, gid); err != nil {
		t.Fatal(err)
	}
}
