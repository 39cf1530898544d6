package functional

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// aCleanKamadoEnvironment is a no-op because the Before hook already
// sets up the environment. This step exists so feature files read
// naturally.
func aCleanKamadoEnvironment(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

// aBuiltToolchainBinary writes an executable into the scenario's
// working directory under bin/, standing in for compiler output.
func aBuiltToolchainBinary(ctx context.Context, name string) (context.Context, error) {
	state := getState(ctx)
	binDir := filepath.Join(state.workDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return ctx, err
	}
	script := fmt.Sprintf("#!/bin/sh\necho %s\n", name)
	return ctx, os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755)
}

// aSourceFile writes a plain file into the scenario's working
// directory.
func aSourceFile(ctx context.Context, name string) (context.Context, error) {
	state := getState(ctx)
	return ctx, os.WriteFile(filepath.Join(state.workDir, name), []byte("// sample\n"), 0o644)
}

// iRun executes a command string, replacing "kamado" with the test
// binary path.
func iRun(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "kamado" {
		args[0] = state.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = state.workDir
	cmd.Env = append(os.Environ(), "KAMADO_HOME="+state.homeDir)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", err)
		}
	} else {
		state.exitCode = 0
	}

	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theExitCodeIsNot(ctx context.Context, notExpected int) error {
	state := getState(ctx)
	if state.exitCode == notExpected {
		return fmt.Errorf("expected exit code to not be %d\nstdout: %s\nstderr: %s",
			notExpected, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	resolved := state.resolvePath(path)
	if _, err := os.Stat(resolved); err != nil {
		return fmt.Errorf("expected file %s to exist: %w", resolved, err)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, path string) error {
	state := getState(ctx)
	resolved := state.resolvePath(path)
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("expected file %s to not exist", resolved)
	}
	return nil
}

func theFileIsOverwrittenWith(ctx context.Context, path, content string) error {
	state := getState(ctx)
	return os.WriteFile(state.resolvePath(path), []byte(content), 0o644)
}

// resolvePath expands $KAMADO_HOME and anchors relative paths at the
// scenario working directory.
func (s *testState) resolvePath(path string) string {
	path = strings.ReplaceAll(path, "$KAMADO_HOME", s.homeDir)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.workDir, path)
	}
	return path
}
