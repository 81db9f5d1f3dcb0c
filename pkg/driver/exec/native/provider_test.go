package native_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	execdriver "tilepipe/pkg/driver/exec"
	_ "tilepipe/pkg/driver/exec/native"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestCombinedOutputMapsExitStatus(t *testing.T) {
	bin := t.TempDir()
	writeScript(t, bin, "fails", `echo "boom" >&2; exit 3`)
	writeScript(t, bin, "works", `echo "ok $1"`)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	ctx := context.Background()

	out, err := execdriver.CombinedOutput(ctx, "works", "there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "ok there" {
		t.Errorf("unexpected output %q", out)
	}

	_, err = execdriver.CombinedOutput(ctx, "fails", "a", "b")
	var exitErr *execdriver.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
	if exitErr.Tool != "fails" || len(exitErr.Args) != 2 {
		t.Errorf("unexpected invocation recorded: %+v", exitErr)
	}
	if !strings.Contains(exitErr.Output, "boom") {
		t.Errorf("stderr not captured: %q", exitErr.Output)
	}
}

func TestOutputKeepsStderrOutOfStdout(t *testing.T) {
	bin := t.TempDir()
	writeScript(t, bin, "noisy", `echo "warning" >&2; echo "{}"`)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	out, err := execdriver.Output(context.Background(), "noisy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "{}" {
		t.Errorf("stdout polluted: %q", out)
	}
}

func TestMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	ctx := context.Background()

	if _, err := execdriver.Which(ctx, "definitely-not-here"); !errors.Is(err, execdriver.ErrBinaryNotFound) {
		t.Errorf("Which: expected ErrBinaryNotFound, got %v", err)
	}
	if _, err := execdriver.CombinedOutput(ctx, "definitely-not-here"); !errors.Is(err, execdriver.ErrBinaryNotFound) {
		t.Errorf("CombinedOutput: expected ErrBinaryNotFound, got %v", err)
	}
}
