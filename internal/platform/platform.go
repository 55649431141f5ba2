// Package platform normalizes the host OS/architecture to the
// canonical tokens manifests are keyed on.
package platform

import (
	"runtime"
	"strings"
	"sync"
)

// Canonical OS tokens.
const (
	Windows = "windows"
	Linux   = "linux"
	MacOS   = "macos"
)

// Canonical architecture tokens.
const (
	X86_64  = "x86_64"
	Aarch64 = "aarch64"
)

// NormalizeOS maps a runtime.GOOS-style value to a canonical OS token.
func NormalizeOS(goos string) string {
	switch strings.ToLower(goos) {
	case "darwin":
		return MacOS
	case "windows", "win32":
		return Windows
	default:
		return Linux
	}
}

// NormalizeArch maps a runtime.GOARCH-style value to a canonical
// architecture token. Unrecognized values pass through lowercased, so
// future archive kinds can be matched without a code change.
func NormalizeArch(goarch string) string {
	switch strings.ToLower(goarch) {
	case "x86_64", "amd64":
		return X86_64
	case "aarch64", "arm64":
		return Aarch64
	default:
		return strings.ToLower(goarch)
	}
}

var (
	once      sync.Once
	cachedOS  string
	cachedArc string
)

// Detect returns the canonical (os, arch) for the running process. It
// is computed once per process and cached, per §4.1 "called once per
// install run and cached."
func Detect() (os, arch string) {
	once.Do(func() {
		cachedOS = NormalizeOS(runtime.GOOS)
		cachedArc = NormalizeArch(runtime.GOARCH)
	})
	return cachedOS, cachedArc
}
