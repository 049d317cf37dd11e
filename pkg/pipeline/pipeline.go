// Package pipeline sequences jobs through stages and aggregates results.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opnlabs/ship/pkg/artifacts"
	"github.com/opnlabs/ship/pkg/models"
	"github.com/opnlabs/ship/pkg/runner"
	"github.com/opnlabs/ship/pkg/utils"
	"golang.org/x/sync/errgroup"
)

const PipelineVersion = "1.0.0"

// PipelineRun records one orchestrator execution. Results are appended in
// execution order and the struct is frozen once Run returns.
type PipelineRun struct {
	StartTime      time.Time
	Stages         []models.Stage
	Results        []runner.JobResult
	OverallSuccess bool
	Duration       time.Duration
}

type runnerFactory func(job models.Job) runner.JobRunner

// Orchestrator drives jobs through their stages sequentially, stopping at
// the first job that exhausts its retries.
type Orchestrator struct {
	config          models.Config
	logger          *log.Logger
	newRunner       runnerFactory
	extraEnv        []models.Variable
	artifactManager artifacts.ArtifactManager
}

func NewOrchestrator(config models.Config, logger *log.Logger) *Orchestrator {
	o := &Orchestrator{
		config: config,
		logger: logger,
	}
	o.newRunner = o.defaultRunner
	return o
}

// WithEnv adds variables passed on the command line to every job.
func (o *Orchestrator) WithEnv(env []models.Variable) *Orchestrator {
	o.extraEnv = env
	return o
}

func (o *Orchestrator) defaultRunner(job models.Job) runner.JobRunner {
	logOptions := runner.LogOptions{
		Stdout: utils.NewColorLogger(job.Name, os.Stdout, true),
		Stderr: utils.NewColorLogger(job.Name, os.Stderr, false),
	}
	env := append(job.Variables, o.extraEnv...)

	if o.config.UseDocker && job.Image != "" {
		if o.artifactManager == nil {
			o.artifactManager = artifacts.NewDockerArtifactsManager(runner.ARTIFACTS_DIR)
		}
		return runner.NewDockerRunner(job.Name, o.artifactManager, logOptions).
			WithImage(job.Image).
			WithSrc(job.Src).
			WithCmd(job.Script).
			WithEnv(env).
			WithTimeout(job.Timeout()).
			WithRetries(job.Retries).
			CreatesArtifacts(job.Artifacts)
	}

	return runner.NewShellRunner(job.Name, logOptions).
		WithCmd(job.Script).
		WithEnv(env).
		WithDir(job.Src).
		WithTimeout(job.Timeout()).
		WithRetries(job.Retries)
}

// Run executes every job of every requested stage. A stage is entered only
// when all previous jobs succeeded. Within a stage jobs run concurrently up
// to ParallelJobs; when running sequentially the run halts at the first
// failed job and later jobs never start.
func (o *Orchestrator) Run(ctx context.Context, jobs []models.Job, stages []models.Stage) *PipelineRun {
	run := &PipelineRun{
		StartTime: time.Now(),
		Stages:    stages,
	}

	stageMap := make(map[models.Stage][]models.Job)
	for _, v := range stages {
		stageMap[v] = make([]models.Job, 0)
	}
	planned := 0
	for _, v := range jobs {
		if _, ok := stageMap[v.Stage]; !ok {
			continue
		}
		stageMap[v.Stage] = append(stageMap[v.Stage], v)
		planned++
	}

	for _, stage := range stages {
		stageJobs := stageMap[stage]
		if len(stageJobs) == 0 {
			continue
		}
		o.logger.Info("entering stage", "stage", stage, "jobs", len(stageJobs))

		var failed bool
		if o.config.ParallelJobs > 1 {
			failed = o.runStageParallel(ctx, stageJobs, run)
		} else {
			failed = o.runStageSequential(ctx, stageJobs, run)
		}
		if failed {
			run.OverallSuccess = false
			run.Duration = time.Since(run.StartTime)
			return run
		}
	}

	run.OverallSuccess = len(run.Results) == planned
	run.Duration = time.Since(run.StartTime)
	return run
}

func (o *Orchestrator) runStageSequential(ctx context.Context, jobs []models.Job, run *PipelineRun) bool {
	for _, job := range jobs {
		o.logger.Info("running job", "job", job.Name, "stage", job.Stage)
		result := o.newRunner(job).Run(ctx)
		run.Results = append(run.Results, result)

		if !result.Succeeded {
			o.logger.Error("pipeline failed at job", "job", job.Name, "attempts", result.Attempts, "err", result.Err)
			return true
		}
		o.logger.Info("job completed", "job", job.Name, "attempts", result.Attempts, "duration", result.Duration)
	}
	return false
}

func (o *Orchestrator) runStageParallel(ctx context.Context, jobs []models.Job, run *PipelineRun) bool {
	results := make([]runner.JobResult, len(jobs))

	var eg errgroup.Group
	eg.SetLimit(o.config.ParallelJobs)
	for i, job := range jobs {
		i, job := i, job
		eg.Go(func() error {
			o.logger.Info("running job", "job", job.Name, "stage", job.Stage)
			results[i] = o.newRunner(job).Run(ctx)
			return nil
		})
	}
	eg.Wait()

	var failed bool
	for _, result := range results {
		run.Results = append(run.Results, result)
		if !result.Succeeded {
			o.logger.Error("pipeline failed at job", "job", result.JobName, "attempts", result.Attempts, "err", result.Err)
			failed = true
		}
	}
	return failed
}
