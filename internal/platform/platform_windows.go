//go:build windows

package platform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// osVersion reports the NT version in the "major.minor" form that manifest
// rule patterns such as "^10\\." are written against.
func osVersion() string {
	major, minor, _ := windows.RtlGetNtVersionNumbers()
	return fmt.Sprintf("%d.%d", major, minor)
}
