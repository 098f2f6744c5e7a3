package platform

import (
	"fmt"
	"runtime"
)

// NewSampler creates the Sampler implementation for the current OS.
func NewSampler(opts Options) (Sampler, error) {
	return NewSamplerForOS(runtime.GOOS, opts)
}

// NewSamplerForOS creates a Sampler for the specified OS identity.
// Supported values: "linux", "windows" (in-process enumeration via
// gopsutil) and "darwin" (shell-out sampling). There is no fallback
// chaining: an unmatched OS yields ErrUnsupportedPlatform.
func NewSamplerForOS(goos string, opts Options) (Sampler, error) {
	switch goos {
	case "linux", "windows":
		return newNativeSampler(opts), nil
	case "darwin":
		return newShellSampler(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}
