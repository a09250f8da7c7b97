// Package runtime provides the Runtime interface for job execution backends.
package runtime

import "context"

// Runtime runs one command to completion. Implementations include raw OS
// processes and Docker containers. Cancellation and timeouts arrive through
// ctx; a deadline hit surfaces as ctx.Err() == context.DeadlineExceeded.
type Runtime interface {
	Run(ctx context.Context, spec RunSpec) (Result, error)
}

// RunSpec describes one command invocation.
type RunSpec struct {
	// Command is a shell command line, run via sh -c.
	Command string

	// WorkDir is the isolated workspace the command runs in. Exec uses it
	// as the working directory; Docker bind-mounts it at /workspace.
	WorkDir string

	// Env is added to the child environment.
	Env map[string]string

	// Image selects the container image for container backends. Ignored
	// by the exec backend.
	Image string
}

// Result is the outcome of a completed command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
