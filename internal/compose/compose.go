// Package compose shells out to docker compose for the managed deployment.
// Command failures are values (Result with a non-zero exit code), not
// errors; an error return means the command could not run at all.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	logx "matrixconsole/pkg/logx"
)

const (
	DefaultTimeout = 5 * time.Minute

	MaxLogLines     = 10000
	DefaultLogLines = 100
)

var serviceNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidServiceName guards service arguments against shell-ish injection.
// Empty means "all services" and is allowed.
func ValidServiceName(service string) error {
	if service == "" || serviceNameRe.MatchString(service) {
		return nil
	}
	return fmt.Errorf("invalid service name: %s", service)
}

// Result is the outcome of one compose invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (r Result) Success() bool { return r.ExitCode == 0 }

// Combined returns stdout and stderr joined, the way operators expect to
// read command output.
func (r Result) Combined() string {
	return strings.TrimRight(r.Stdout+"\n"+r.Stderr, "\n")
}

// ServiceStatus is one row of `docker compose ps`.
type ServiceStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Status string `json:"status"`
}

// Runner executes docker compose commands in the project directory.
type Runner struct {
	dir     string
	timeout time.Duration
	log     logx.Logger
}

func NewRunner(dir string, timeout time.Duration, log logx.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{dir: dir, timeout: timeout, log: log}
}

func (r *Runner) run(ctx context.Context, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose"}, args...)...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

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
			// docker binary missing, project dir gone, ...
			return res, err
		}
	}

	r.log.Debug("compose command finished",
		logx.String("args", strings.Join(args, " ")),
		logx.Int("exit", res.ExitCode),
		logx.Duration("took", time.Since(start)))
	return res, nil
}

// Ps reports the status of all services.
func (r *Runner) Ps(ctx context.Context) ([]ServiceStatus, Result, error) {
	res, err := r.run(ctx, "ps", "--format", "json")
	if err != nil || !res.Success() {
		return nil, res, err
	}
	return parseStatuses(res.Stdout), res, nil
}

// parseStatuses decodes `ps --format json` output: one JSON object per
// line. Unparseable lines are dropped rather than failing the whole view.
func parseStatuses(out string) []ServiceStatus {
	statuses := []ServiceStatus{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row struct {
			Service string `json:"Service"`
			Name    string `json:"Name"`
			State   string `json:"State"`
			Status  string `json:"Status"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue
		}
		name := row.Service
		if name == "" {
			name = row.Name
		}
		statuses = append(statuses, ServiceStatus{Name: name, State: row.State, Status: row.Status})
	}
	return statuses
}

// Pull fetches the latest images, for one service or all.
func (r *Runner) Pull(ctx context.Context, service string) (Result, error) {
	if err := ValidServiceName(service); err != nil {
		return Result{}, err
	}
	args := []string{"pull"}
	if service != "" {
		args = append(args, service)
	}
	return r.run(ctx, args...)
}

// UpDetached recreates containers from the current images.
func (r *Runner) UpDetached(ctx context.Context) (Result, error) {
	return r.run(ctx, "up", "-d")
}

// Action starts, stops or restarts one service (or all when empty).
func (r *Runner) Action(ctx context.Context, action, service string) (Result, error) {
	switch action {
	case "start", "stop", "restart":
	default:
		return Result{}, fmt.Errorf("invalid action: %s", action)
	}
	if err := ValidServiceName(service); err != nil {
		return Result{}, err
	}
	args := []string{action}
	if service != "" {
		args = append(args, service)
	}
	return r.run(ctx, args...)
}

// Logs tails a service's logs. The line count is clamped to sane bounds.
func (r *Runner) Logs(ctx context.Context, service string, lines int) (Result, error) {
	if service == "" {
		return Result{}, errors.New("service required")
	}
	if err := ValidServiceName(service); err != nil {
		return Result{}, err
	}
	return r.run(ctx, "logs", fmt.Sprintf("--tail=%d", ClampLogLines(lines)), service)
}

// ClampLogLines normalizes a requested log line count.
func ClampLogLines(lines int) int {
	if lines < 1 || lines > MaxLogLines {
		return DefaultLogLines
	}
	return lines
}
