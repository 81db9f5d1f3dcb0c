package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"tilepipe/pkg/driver"
	"tilepipe/pkg/logging"
)

// ErrBinaryNotFound is returned when a tool is not available on PATH.
var ErrBinaryNotFound = errors.New("binary not found")

// Driver builds commands for external tools.
type Driver interface {
	// Run prepares (but does not start) a command.
	Run(ctx context.Context, name string, args ...string) *exec.Cmd
	// Which resolves a binary name to its full path.
	Which(ctx context.Context, name string) (string, error)
}

// ExitError is a tool invocation that ran and exited with a non-zero status.
type ExitError struct {
	Tool   string
	Args   []string
	Code   int
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run prepares a command with the active exec driver.
func Run(ctx context.Context, name string, args ...string) (*exec.Cmd, error) {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, name, args...), nil
}

// Which resolves a binary with the active exec driver.
func Which(ctx context.Context, name string) (string, error) {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return "", err
	}
	return d.Which(ctx, name)
}

// CombinedOutput runs a tool to completion and returns stdout and stderr
// interleaved. A non-zero exit is reported as *ExitError.
func CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd, err := Run(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	logging.GetLogger(ctx).Debug("running tool", "command", cmd.Args)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, wrapRunError(name, args, out, err)
	}
	return out, nil
}

// Output runs a tool to completion and returns its stdout. Stderr is only
// kept for the *ExitError on failure.
func Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd, err := Run(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logging.GetLogger(ctx).Debug("running tool", "command", cmd.Args)
	out, err := cmd.Output()
	if err != nil {
		return out, wrapRunError(name, args, stderr.Bytes(), err)
	}
	return out, nil
}

func wrapRunError(name string, args []string, output []byte, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Tool:   name,
			Args:   args,
			Code:   exitErr.ExitCode(),
			Output: string(output),
			Err:    err,
		}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, name)
	}
	return fmt.Errorf("failed to run %s: %w", name, err)
}
