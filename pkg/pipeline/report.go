package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"github.com/opnlabs/ship/pkg/models"
)

// Report is the status snapshot persisted after a pipeline run.
type Report struct {
	PipelineVersion string          `json:"pipeline_version"`
	Environment     string          `json:"environment"`
	StartTime       time.Time       `json:"start_time"`
	DurationSeconds float64         `json:"duration_seconds"`
	JobResults      map[string]bool `json:"job_results"`
	SuccessRate     float64         `json:"success_rate"`
	TotalJobs       int             `json:"total_jobs"`
}

func NewReport(run *PipelineRun, environment models.Environment) Report {
	jobResults := make(map[string]bool, len(run.Results))
	successes := 0
	for _, result := range run.Results {
		jobResults[result.JobName] = result.Succeeded
		if result.Succeeded {
			successes++
		}
	}

	// A run with no jobs reports a zero success rate rather than dividing
	// by zero.
	rate := 0.0
	if len(run.Results) > 0 {
		rate = float64(successes) / float64(len(run.Results))
	}

	return Report{
		PipelineVersion: PipelineVersion,
		Environment:     string(environment),
		StartTime:       run.StartTime,
		DurationSeconds: run.Duration.Seconds(),
		JobResults:      jobResults,
		SuccessRate:     rate,
		TotalJobs:       len(run.Results),
	}
}

// Write persists the report as indented JSON.
func (r Report) Write(path string) error {
	contents, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}
