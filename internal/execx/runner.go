// Package execx abstracts external command execution so the shell-out
// sampling backend can run its utilities either locally or on a remote
// machine over SSH, with identical parsing on this side.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	// Run executes name with args and returns trimmed stdout.
	// A non-zero exit or noisy stderr is an error; the caller decides
	// whether that degrades a metric or aborts startup.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// LookPath reports whether the named utility is available.
	LookPath(name string) (string, error)
}

// Local runs commands on this machine via os/exec.
type Local struct{}

// NewLocal returns a Runner backed by os/exec.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w (%s)", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

func (l *Local) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
