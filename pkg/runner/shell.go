package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/opnlabs/ship/pkg/models"
)

// ShellRunner runs a job's commands as host subprocesses, one fresh process
// per command, under a per-command timeout. A failed command short-circuits
// the attempt; the whole command list is re-run on retry.
type ShellRunner struct {
	name             string
	jobName          string
	workingDirectory string
	env              []string
	cmd              []string
	timeout          time.Duration
	retries          int
	backoff          time.Duration
	logOptions       LogOptions
}

func NewShellRunner(name string, logOptions LogOptions) *ShellRunner {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	if logOptions.Stdout == nil {
		logOptions.Stdout = os.Stdout
	}
	if logOptions.Stderr == nil {
		logOptions.Stderr = os.Stderr
	}

	return &ShellRunner{
		name:             slug.Make(name + uuid.NewString()),
		jobName:          name,
		workingDirectory: wd,
		timeout:          15 * time.Minute,
		backoff:          RetryBackoff,
		logOptions:       logOptions,
	}
}

func (s *ShellRunner) WithCmd(cmd []string) *ShellRunner {
	s.cmd = cmd
	return s
}

func (s *ShellRunner) WithDir(dir string) *ShellRunner {
	if dir != "" {
		s.workingDirectory = dir
	}
	return s
}

func (s *ShellRunner) WithEnv(env []models.Variable) *ShellRunner {
	variables := make([]string, 0)
	for _, v := range env {
		if len(v) > 1 {
			log.Fatal("variables should be defined as a key value pair")
		}
		for k, v := range v {
			variables = append(variables, fmt.Sprintf("%s=%s", k, v))
		}
	}
	s.env = variables
	return s
}

func (s *ShellRunner) WithTimeout(timeout time.Duration) *ShellRunner {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

func (s *ShellRunner) WithRetries(retries int) *ShellRunner {
	if retries >= 0 {
		s.retries = retries
	}
	return s
}

// WithBackoff overrides the wait between failed attempts.
func (s *ShellRunner) WithBackoff(backoff time.Duration) *ShellRunner {
	s.backoff = backoff
	return s
}

// Run executes the command list with up to retries+1 attempts. The returned
// result carries the attempt count that finished the job and the last
// failure, if any.
func (s *ShellRunner) Run(ctx context.Context) JobResult {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= s.retries+1; attempt++ {
		lastErr = s.runAttempt(ctx)
		if lastErr == nil {
			return JobResult{
				JobName:   s.jobName,
				Succeeded: true,
				Duration:  time.Since(start),
				Attempts:  attempt,
			}
		}

		if errors.Is(lastErr, context.Canceled) || attempt > s.retries {
			return JobResult{
				JobName:  s.jobName,
				Duration: time.Since(start),
				Attempts: attempt,
				Err:      lastErr,
			}
		}

		fmt.Fprintf(s.logOptions.Stderr, "attempt %d/%d failed, retrying: %v\n", attempt, s.retries+1, lastErr)
		select {
		case <-ctx.Done():
			return JobResult{
				JobName:  s.jobName,
				Duration: time.Since(start),
				Attempts: attempt,
				Err:      ctx.Err(),
			}
		case <-time.After(s.backoff):
		}
	}

	// Unreachable, the loop always returns.
	return JobResult{JobName: s.jobName, Duration: time.Since(start), Err: lastErr}
}

func (s *ShellRunner) runAttempt(ctx context.Context) error {
	for _, command := range s.cmd {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runCommand(ctx, command); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShellRunner) runCommand(ctx context.Context, command string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = s.workingDirectory
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Stdout = s.logOptions.Stdout
	cmd.Stderr = s.logOptions.Stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrCommandTimedOut, command)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrCommandFailed, command, err)
	}
	return nil
}
