package ship

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/opnlabs/ship/pkg/deploy"
	"github.com/opnlabs/ship/pkg/models"
	"github.com/opnlabs/ship/pkg/pipeline"
	"github.com/opnlabs/ship/pkg/utils"
	"github.com/opnlabs/ship/pkg/workflow"
	"github.com/spf13/cobra"
)

const statusReportFile = "pipeline-status.json"

var (
	environment          string
	autoDeploy           bool
	validateOnly         bool
	createWorkflow       bool
	deployArtifacts      bool
	parallelJobs         int
	timeoutMinutes       int
	port                 int
	host                 string
	buildDir             string
	jobFilePath          string
	useDocker            bool
	logLevel             string
	envVars              []string
	environmentVariables []models.Variable = make([]models.Variable, 0)
	validate             *validator.Validate = validator.New(validator.WithRequiredStructEnabled())
)

var rootCmd = &cobra.Command{
	Use:   "ship",
	Short: "Ship is a deployment pipeline runner",
	Long: `Ship runs a staged deployment pipeline for web applications: it validates
the environment, builds the front-end bundle through npm with bounded retries per
job, and serves the built assets behind security headers. It can also generate a
GitHub Actions workflow describing the same pipeline.`,

	Run: func(cmd *cobra.Command, args []string) {

		if len(envVars) > 0 {
			for _, v := range envVars {
				variables := strings.SplitN(v, "=", 2)
				if len(variables) != 2 {
					log.Fatalf("variables should be defined as KEY=VALUE: %s", v)
				}

				m := make(map[string]any)
				m[variables[0]] = variables[1]
				environmentVariables = append(environmentVariables, m)
			}
		}

		run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&environment, "environment", "development", "Target environment. development, staging or production")
	rootCmd.Flags().BoolVar(&autoDeploy, "auto-deploy", false, "Deploy automatically after a successful build.")
	rootCmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Only validate the environment and configuration.")
	rootCmd.Flags().BoolVar(&createWorkflow, "create-workflow", false, "Generate the GitHub Actions workflow file and exit.")
	rootCmd.Flags().BoolVar(&deployArtifacts, "deploy-artifacts", false, "Serve existing build artifacts, skipping the build.")
	rootCmd.Flags().IntVar(&parallelJobs, "parallel-jobs", 2, "Maximum concurrent jobs within a stage.")
	rootCmd.Flags().IntVar(&timeoutMinutes, "timeout", 30, "Per-command timeout in minutes.")
	rootCmd.Flags().IntVar(&port, "port", 5000, "Server port.")
	rootCmd.Flags().StringVar(&host, "host", "localhost", "Server host.")
	rootCmd.Flags().StringVar(&buildDir, "build-dir", "dist", "Build output directory to serve.")
	rootCmd.Flags().StringVarP(&jobFilePath, "job-file-path", "f", "", "Path to a job file replacing the built-in plan.")
	rootCmd.Flags().BoolVarP(&useDocker, "use-docker", "m", false, "Run jobs that declare an image inside containers.")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level. debug, info, warn or error")

	rootCmd.Flags().StringArrayVarP(&envVars, "environment-variable", "e", make([]string, 0), "Environment variables. KEY=VALUE")

	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func buildConfig() models.Config {
	return models.Config{
		Environment:    models.Environment(environment),
		AutoDeploy:     autoDeploy,
		ParallelJobs:   parallelJobs,
		TimeoutMinutes: timeoutMinutes,
		Port:           port,
		Host:           host,
		BuildDir:       buildDir,
		UseDocker:      useDocker,
		HealthInterval: 30 * time.Second,
	}
}

func run() {
	config := buildConfig()
	if err := validate.Struct(config); err != nil {
		log.Fatalf("Err(s):\n%+v\n", err)
	}

	logger, closer, err := utils.NewRunLogger("logs", logLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case createWorkflow:
		path, err := workflow.WriteFile(".")
		if err != nil {
			logger.Fatal("failed to create workflow file", "err", err)
		}
		logger.Info("GitHub Actions workflow created", "path", path)

	case validateOnly:
		wd, err := os.Getwd()
		if err != nil {
			logger.Fatal("could not determine working directory", "err", err)
		}
		if err := deploy.NewValidation(wd, logger).Run(); err != nil {
			logger.Fatal("validation failed", "err", err)
		}

	case deployArtifacts:
		server := deploy.NewServer(config, logger)
		if err := server.Start(ctx); err != nil {
			logger.Fatal("server error", "err", err)
		}

	default:
		runPipeline(ctx, config, logger)
	}
}

func runPipeline(ctx context.Context, config models.Config, logger *charmlog.Logger) {
	logger.Info("starting deployment pipeline",
		"version", pipeline.PipelineVersion,
		"environment", config.Environment)

	wd, err := os.Getwd()
	if err != nil {
		logger.Fatal("could not determine working directory", "err", err)
	}
	if err := deploy.NewValidation(wd, logger).Run(); err != nil {
		logger.Fatal("validation failed", "err", err)
	}

	jobs, stages := pipeline.BuildPlan(config)
	if jobFilePath != "" {
		jobFile, err := pipeline.LoadJobFile(jobFilePath)
		if err != nil {
			logger.Fatal("could not load job file", "path", jobFilePath, "err", err)
		}
		jobs, stages = jobFile.Jobs, jobFile.Stages
	}

	orchestrator := pipeline.NewOrchestrator(config, logger).WithEnv(environmentVariables)
	run := orchestrator.Run(ctx, jobs, stages)

	report := pipeline.NewReport(run, config.Environment)
	if err := report.Write(statusReportFile); err != nil {
		logger.Error("could not write status report", "err", err)
	} else {
		logger.Info("status report saved", "path", statusReportFile)
	}

	if ctx.Err() != nil {
		logger.Info("pipeline interrupted by user")
		return
	}

	if !run.OverallSuccess {
		logger.Fatal("pipeline failed",
			"duration", run.Duration,
			"jobs_completed", len(run.Results))
	}

	logger.Info("pipeline completed successfully",
		"duration", run.Duration,
		"jobs_completed", len(run.Results))

	if size, err := utils.DirSize(config.BuildDir); err == nil {
		logger.Info("build output", "dir", config.BuildDir, "size_mb", float64(size)/1024/1024)
	}
}
