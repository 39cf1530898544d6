package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kamado-dev/kamado/internal/log"
)

// Runner executes an external detector binary and decodes its JSON
// result. The path under inspection is passed through the DETECT_PATH
// environment variable, matching the contract detector binaries
// implement.
type Runner struct {
	binary string
	logger log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(l log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner wraps a detector binary as a Detector.
func NewRunner(binary string, opts ...RunnerOption) *Runner {
	r := &Runner{binary: binary, logger: log.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Detect(ctx context.Context, req Request) (Result, error) {
	cmd := exec.CommandContext(ctx, r.binary, req.Args...)
	cmd.Env = append(os.Environ(), "DETECT_PATH="+req.Path)
	cmd.Env = append(cmd.Env, req.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running detector", "binary", r.binary, "path", req.Path)
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("detector %s failed: %w: %s",
			r.binary, err, strings.TrimSpace(stderr.String()))
	}

	var result Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return Result{}, fmt.Errorf("detector %s produced invalid output: %w", r.binary, err)
	}
	return result, nil
}
