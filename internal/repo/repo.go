// Package repo updates the deployment's git checkout. Like the compose
// runner, command failures are Result values with exit codes; an error
// return means the command could not run at all.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"matrixconsole/internal/compose"
	logx "matrixconsole/pkg/logx"
)

const defaultTimeout = 2 * time.Minute

// Runner executes git commands in the deployment checkout.
type Runner struct {
	dir     string
	timeout time.Duration
	log     logx.Logger
}

func NewRunner(dir string, timeout time.Duration, log logx.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{dir: dir, timeout: timeout, log: log}
}

// Fetch runs `git fetch origin`.
func (r *Runner) Fetch(ctx context.Context) (compose.Result, error) {
	return r.run(ctx, "fetch", "origin")
}

// Pull runs `git pull origin main`.
func (r *Runner) Pull(ctx context.Context) (compose.Result, error) {
	return r.run(ctx, "pull", "origin", "main")
}

func (r *Runner) run(ctx context.Context, args ...string) (compose.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := compose.Result{Stdout: stdout.String(), Stderr: stderr.String()}

	switch {
	case err == nil:
	case ctx.Err() == context.DeadlineExceeded:
		res.ExitCode = -1
		res.Stderr = fmt.Sprintf("command timed out after %s", r.timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			return res, err
		}
	}

	r.log.Debug("git command finished",
		logx.String("args", fmt.Sprint(args)), logx.Int("exit", res.ExitCode))
	return res, nil
}
