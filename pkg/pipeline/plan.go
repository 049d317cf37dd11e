package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/opnlabs/ship/pkg/models"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BuildPlan returns the built-in stage plan for a deployment run: validate
// the environment, build the bundle, and optionally deploy the artifacts by
// re-invoking the binary in deploy mode.
func BuildPlan(config models.Config) ([]models.Job, []models.Stage) {
	stages := []models.Stage{models.StageValidate, models.StageBuild}

	jobs := []models.Job{
		{
			Name:           "environment-validation",
			Stage:          models.StageValidate,
			Script:         []string{"node --version", "npm --version"},
			TimeoutMinutes: config.TimeoutMinutes,
		},
		{
			Name:  "build-application",
			Stage: models.StageBuild,
			Script: []string{
				"rm -rf node_modules/.vite-temp",
				"npm ci --include=dev",
				"npm run build",
			},
			Variables:      []models.Variable{{"NODE_ENV": "production"}},
			TimeoutMinutes: config.TimeoutMinutes,
			Retries:        2,
		},
	}

	if config.AutoDeploy {
		stages = append(stages, models.StageDeploy)

		exe, err := os.Executable()
		if err != nil {
			exe = "ship"
		}
		jobs = append(jobs, models.Job{
			Name:  fmt.Sprintf("deploy-to-%s", config.Environment),
			Stage: models.StageDeploy,
			Script: []string{
				fmt.Sprintf("%s --environment %s --deploy-artifacts", exe, config.Environment),
			},
			Variables:      []models.Variable{{"NODE_ENV": "production"}},
			TimeoutMinutes: 5,
		})
	}

	return jobs, stages
}

// LoadJobFile reads a ship.yml job file that replaces the built-in plan.
func LoadJobFile(path string) (models.JobFile, error) {
	var jobFile models.JobFile

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return jobFile, err
	}

	if err := yaml.Unmarshal(contents, &jobFile); err != nil {
		return jobFile, fmt.Errorf("could not parse job file %s: %w", path, err)
	}

	if err := validate.Struct(jobFile); err != nil {
		return jobFile, fmt.Errorf("invalid job file %s: %w", path, err)
	}

	for _, job := range jobFile.Jobs {
		found := false
		for _, stage := range jobFile.Stages {
			if job.Stage == stage {
				found = true
				break
			}
		}
		if !found {
			return jobFile, fmt.Errorf("stage not defined: %s", job.Stage)
		}
	}

	return jobFile, nil
}
