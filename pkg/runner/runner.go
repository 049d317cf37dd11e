// Package runner executes pipeline jobs with bounded retries.
package runner

import (
	"context"
	"errors"
	"io"
	"time"
)

type LogOptions struct {
	ShowImagePull bool
	Stdout        io.Writer
	Stderr        io.Writer
}

var (
	ErrCommandFailed   = errors.New("runner: command exited with non-zero status")
	ErrCommandTimedOut = errors.New("runner: command exceeded its timeout")
)

// RetryBackoff is the fixed wait between failed attempts.
const RetryBackoff = 2 * time.Second

// JobRunner runs one job to completion, retries included.
type JobRunner interface {
	Run(ctx context.Context) JobResult
}

// JobResult is the immutable outcome of a job run.
type JobResult struct {
	JobName   string        `json:"job_name"`
	Succeeded bool          `json:"succeeded"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Err       error         `json:"-"`
}

// TimedOut reports whether the job failed on the timeout path rather than a
// non-zero exit.
func (r JobResult) TimedOut() bool {
	return errors.Is(r.Err, ErrCommandTimedOut)
}
