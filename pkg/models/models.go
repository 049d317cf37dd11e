package models

import "time"

type Stage string
type Variable map[string]any

const (
	StageValidate Stage = "validate"
	StageBuild    Stage = "build"
	StageDeploy   Stage = "deploy"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds everything a pipeline run needs. Built from CLI flags and
// validated before any job executes.
type Config struct {
	Environment    Environment `validate:"required,oneof=development staging production"`
	AutoDeploy     bool
	ParallelJobs   int `validate:"gte=1"`
	TimeoutMinutes int `validate:"gte=1"`
	Port           int `validate:"gte=1,lte=65535"`
	Host           string
	BuildDir       string
	UseDocker      bool
	HealthInterval time.Duration
	MaxPortProbes  int
}

type JobFile struct {
	Stages []Stage `yaml:"stages" validate:"required,dive"`
	Jobs   []Job   `yaml:"jobs" validate:"required,dive"`
}

// Job is a single unit of pipeline work. Commands run in order inside one
// attempt; the whole list is re-run from the start on retry.
type Job struct {
	Name           string     `yaml:"name" validate:"required"`
	Stage          Stage      `yaml:"stage" validate:"required"`
	Script         []string   `yaml:"script" validate:"required"`
	Variables      []Variable `yaml:"variables"`
	Image          string     `yaml:"image"`
	Src            string     `yaml:"src"`
	TimeoutMinutes int        `yaml:"timeout_minutes"`
	Retries        int        `yaml:"retries" validate:"gte=0"`
	Artifacts      []string   `yaml:"artifacts"`
}

// Timeout returns the per-command deadline for one attempt of this job.
func (j Job) Timeout() time.Duration {
	if j.TimeoutMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(j.TimeoutMinutes) * time.Minute
}
