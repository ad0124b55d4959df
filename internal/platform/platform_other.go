//go:build !windows

package platform

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// osVersion reads the kernel release string via uname. Rule patterns against
// it are rare outside windows, but the field must still be populated.
func osVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	release := uts.Release[:]
	if i := bytes.IndexByte(release, 0); i >= 0 {
		release = release[:i]
	}
	return string(release)
}
