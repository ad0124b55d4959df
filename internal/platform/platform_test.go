package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOSNameMapping(t *testing.T) {
	assert.Equal(t, "osx", osName("darwin"))
	assert.Equal(t, "windows", osName("windows"))
	assert.Equal(t, "linux", osName("linux"))
	assert.Equal(t, "linux", osName("freebsd"))
}

func TestArchNameMapping(t *testing.T) {
	assert.Equal(t, "x86_64", archName("amd64"))
	assert.Equal(t, "x86", archName("386"))
	assert.Equal(t, "arm64", archName("arm64"))
	assert.Equal(t, "arm32", archName("arm"))
	assert.Equal(t, "riscv64", archName("riscv64"))
}

func TestNativeClassifierArch(t *testing.T) {
	assert.Equal(t, "64", Platform{Arch: "x86_64"}.NativeClassifierArch())
	assert.Equal(t, "64", Platform{Arch: "arm64"}.NativeClassifierArch())
	assert.Equal(t, "32", Platform{Arch: "x86"}.NativeClassifierArch())
}

func TestClasspathSeparator(t *testing.T) {
	assert.Equal(t, ";", Platform{OSName: "windows"}.ClasspathSeparator())
	assert.Equal(t, ":", Platform{OSName: "linux"}.ClasspathSeparator())
}

func TestHostIsPopulated(t *testing.T) {
	p := Host()
	assert.NotEmpty(t, p.OSName)
	assert.NotEmpty(t, p.Arch)
}
