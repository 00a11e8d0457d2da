package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gitflow/internal/logging"
)

// DefaultCommandTimeout bounds every external command that does not set its own timeout.
const DefaultCommandTimeout = 2 * time.Minute

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError is returned for every external command that fails to start,
// times out, or exits non-zero. Stderr is preserved for classification.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	cmd := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Stdout)
	}
	if detail == "" {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", cmd, e.Err, detail)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Output returns stderr and stdout joined, the text markers are matched against.
func (e *CommandError) Output() string {
	return e.Stderr + "\n" + e.Stdout
}

// Runner executes a command-line tool in a fixed directory with a bounded timeout.
type Runner struct {
	Name    string
	Dir     string
	Timeout time.Duration
	Env     []string
}

// NewRunner returns a runner for the named binary (for example "git" or "gh").
func NewRunner(name, dir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Runner{Name: name, Dir: dir, Timeout: timeout, Env: gitConfigEnv()}
}

// gitConfigEnv passes an explicit global config through to child processes (CI sets it).
func gitConfigEnv() []string {
	if v := os.Getenv("GIT_CONFIG_GLOBAL"); v != "" {
		return []string{"GIT_CONFIG_GLOBAL=" + v}
	}
	return nil
}

// Run executes the command and captures its output.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	return r.run(ctx, r.Timeout, args...)
}

// RunWithTimeout is Run with a per-call timeout override.
func (r *Runner) RunWithTimeout(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	return r.run(ctx, timeout, args...)
}

func (r *Runner) run(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Name, args...)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	logging.Logger.Debug("command finished",
		"name", r.Name,
		"args", args,
		"dir", r.Dir,
		"exit_code", res.ExitCode,
		"duration", time.Since(start).String(),
	)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, ctx.Err())
		}
		return res, &CommandError{
			Name:     r.Name,
			Args:     args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	return res, nil
}

// RunInteractive attaches the terminal to the command (used for git mergetool).
// Only the caller's context bounds it.
func (r *Runner) RunInteractive(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.Name, args...)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logging.Logger.Debug("interactive command", "name", r.Name, "args", args)
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		return &CommandError{Name: r.Name, Args: args, ExitCode: exitCode, Err: err}
	}
	return nil
}
