// Package process runs external tools (pandoc, pdftoppm, mutool, ...) behind a
// narrow interface so callers can substitute a fake in tests.
package process

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// LookPathFunc resolves a binary name to a path, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// Output is the captured output of a finished command.
type Output struct {
	Stdout string
	Stderr string
}

// Diagnostic returns the most useful text for an error message. Tools may
// report failures on either stream.
func (o Output) Diagnostic() string {
	out := strings.TrimSpace(o.Stdout)
	errOut := strings.TrimSpace(o.Stderr)
	switch {
	case errOut == "":
		return out
	case out == "":
		return errOut
	default:
		return out + "\n" + errOut
	}
}

// Runner abstracts command execution to enable testing without real subprocesses.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner implements Runner using os/exec. Cancelling ctx kills the process.
type ExecRunner struct {
	// Dir is the working directory; empty means the current directory.
	Dir string
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running external tool", "tool", name, "args", args)
	err := cmd.Run()

	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if out.Stderr != "" {
		slog.Debug("External tool stderr", "tool", name, "output", out.Stderr)
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return out, err
}
