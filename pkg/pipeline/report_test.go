package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opnlabs/ship/pkg/models"
	"github.com/opnlabs/ship/pkg/runner"
)

func TestNewReport(t *testing.T) {
	run := &PipelineRun{
		StartTime: time.Now(),
		Duration:  3 * time.Second,
		Results: []runner.JobResult{
			{JobName: "check-env", Succeeded: true, Attempts: 1},
			{JobName: "build-app", Succeeded: true, Attempts: 3},
			{JobName: "release", Succeeded: false, Attempts: 2},
		},
	}

	report := NewReport(run, models.EnvStaging)

	if report.TotalJobs != 3 {
		t.Errorf("expected 3 total jobs, got %d", report.TotalJobs)
	}
	want := 2.0 / 3.0
	if report.SuccessRate != want {
		t.Errorf("expected success rate %f, got %f", want, report.SuccessRate)
	}
	if !report.JobResults["build-app"] || report.JobResults["release"] {
		t.Error("job results map does not match outcomes")
	}
	if report.Environment != "staging" {
		t.Errorf("unexpected environment: %s", report.Environment)
	}
	if report.DurationSeconds != 3 {
		t.Errorf("unexpected duration: %f", report.DurationSeconds)
	}
}

func TestNewReportNoJobs(t *testing.T) {
	report := NewReport(&PipelineRun{StartTime: time.Now()}, models.EnvDevelopment)

	if report.SuccessRate != 0 {
		t.Errorf("empty run must report a zero success rate, got %f", report.SuccessRate)
	}
	if report.TotalJobs != 0 {
		t.Errorf("expected 0 total jobs, got %d", report.TotalJobs)
	}
}

func TestReportWrite(t *testing.T) {
	run := &PipelineRun{
		StartTime: time.Now(),
		Duration:  time.Second,
		Results: []runner.JobResult{
			{JobName: "check-env", Succeeded: true, Attempts: 1},
		},
	}

	path := filepath.Join(t.TempDir(), "pipeline-status.json")
	if err := NewReport(run, models.EnvProduction).Write(path); err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var report Report
	if err := json.Unmarshal(contents, &report); err != nil {
		t.Fatal(err)
	}
	if report.PipelineVersion != PipelineVersion {
		t.Errorf("expected version %s, got %s", PipelineVersion, report.PipelineVersion)
	}
	if report.SuccessRate != 1 {
		t.Errorf("expected success rate 1, got %f", report.SuccessRate)
	}
}
