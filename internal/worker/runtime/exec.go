package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ExecRuntime implements Runtime using raw OS processes. This is the default
// backend: the agent CLI runs as a child process with the workspace as its
// working directory and stdout/stderr captured separately.
type ExecRuntime struct{}

// NewExecRuntime creates a new process-based runtime.
func NewExecRuntime() *ExecRuntime {
	return &ExecRuntime{}
}

// Run executes the command via sh -c. The context deadline kills the child;
// callers distinguish timeout from failure through ctx.Err().
func (e *ExecRuntime) Run(ctx context.Context, spec RunSpec) (Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	cmd.Dir = spec.WorkDir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to run command: %w", err)
	}

	return res, nil
}
