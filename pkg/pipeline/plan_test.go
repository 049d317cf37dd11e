package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opnlabs/ship/pkg/models"
)

func TestBuildPlan(t *testing.T) {
	config := models.Config{
		Environment:    models.EnvDevelopment,
		ParallelJobs:   1,
		TimeoutMinutes: 30,
	}

	jobs, stages := BuildPlan(config)
	if len(stages) != 2 {
		t.Fatalf("expected validate and build stages, got %v", stages)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[1].Retries != 2 {
		t.Errorf("build job should carry a retry budget, got %d", jobs[1].Retries)
	}
}

func TestBuildPlanAutoDeploy(t *testing.T) {
	config := models.Config{
		Environment:    models.EnvProduction,
		AutoDeploy:     true,
		ParallelJobs:   1,
		TimeoutMinutes: 30,
	}

	jobs, stages := BuildPlan(config)
	if len(stages) != 3 || stages[2] != models.StageDeploy {
		t.Fatalf("expected deploy stage to be appended, got %v", stages)
	}

	deploy := jobs[len(jobs)-1]
	if deploy.Stage != models.StageDeploy {
		t.Fatalf("last job should be the deploy job, got %s", deploy.Stage)
	}
	if !strings.Contains(deploy.Script[0], "--environment production") {
		t.Errorf("deploy job should target the configured environment: %s", deploy.Script[0])
	}
	if deploy.TimeoutMinutes != 5 {
		t.Errorf("deploy job should use the short timeout, got %d", deploy.TimeoutMinutes)
	}
}

func TestLoadJobFile(t *testing.T) {
	contents := `
stages:
  - validate
  - build
jobs:
  - name: check
    stage: validate
    script:
      - node --version
  - name: bundle
    stage: build
    script:
      - npm run build
    retries: 1
`
	path := filepath.Join(t.TempDir(), "ship.yml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	jobFile, err := LoadJobFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobFile.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobFile.Jobs))
	}
	if jobFile.Jobs[1].Retries != 1 {
		t.Errorf("expected retries to round-trip, got %d", jobFile.Jobs[1].Retries)
	}
}

func TestLoadJobFileUndefinedStage(t *testing.T) {
	contents := `
stages:
  - validate
jobs:
  - name: bundle
    stage: build
    script:
      - npm run build
`
	path := filepath.Join(t.TempDir(), "ship.yml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadJobFile(path); err == nil {
		t.Error("a job referencing an undefined stage should be rejected")
	}
}

func TestLoadJobFileMissingFields(t *testing.T) {
	contents := `
stages:
  - validate
jobs:
  - stage: validate
`
	path := filepath.Join(t.TempDir(), "ship.yml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadJobFile(path); err == nil {
		t.Error("a job without a name or script should fail validation")
	}
}
