// Package platform identifies the host operating system, architecture and
// OS version in the vocabulary used by version manifests, which predates
// Go's GOOS/GOARCH naming.
package platform

import (
	"runtime"
	"strings"
)

// Platform describes the host in manifest terms. OSName is one of "windows",
// "osx" or "linux"; Arch is one of "x86", "x86_64", "arm64" or "arm32";
// OSVersion is the kernel or product version string matched by rule patterns.
type Platform struct {
	OSName    string
	Arch      string
	OSVersion string
}

// Host returns the Platform for the current process.
func Host() Platform {
	return Platform{
		OSName:    osName(runtime.GOOS),
		Arch:      archName(runtime.GOARCH),
		OSVersion: osVersion(),
	}
}

// osName maps a GOOS value onto the manifest OS family name.
func osName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// archName maps a GOARCH value onto the manifest architecture name.
func archName(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "arm64"
	case "arm":
		return "arm32"
	default:
		return goarch
	}
}

// NativeClassifierArch returns the token substituted for ${arch} in native
// classifier templates. Manifests only distinguish 32 vs 64 bit here.
func (p Platform) NativeClassifierArch() string {
	if strings.Contains(p.Arch, "64") {
		return "64"
	}
	return "32"
}

// ClasspathSeparator returns the separator used when joining classpath
// entries for this platform.
func (p Platform) ClasspathSeparator() string {
	if p.OSName == "windows" {
		return ";"
	}
	return ":"
}
