package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/opnlabs/ship/pkg/artifacts"
	"github.com/opnlabs/ship/pkg/models"
	"github.com/opnlabs/ship/pkg/utils"
)

const (
	BUILD_DIR     = ".ship"
	ARTIFACTS_DIR = ".artifacts"
	WORKING_DIR   = "/app"
)

// DockerRunner runs a job's commands inside a container. It honors the same
// retry and timeout semantics as ShellRunner: each attempt is a fresh
// container running the full command script.
type DockerRunner struct {
	name             string
	jobName          string
	image            string
	src              string
	env              []string
	cmd              []string
	containerID      string
	workingDirectory string
	timeout          time.Duration
	retries          int
	backoff          time.Duration
	artifacts        []string
	artifactManager  artifacts.ArtifactManager
	logOptions       LogOptions
}

func NewDockerRunner(name string, artifactManager artifacts.ArtifactManager, logOptions LogOptions) *DockerRunner {
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

	return &DockerRunner{
		name:             slug.Make(name + uuid.NewString()),
		jobName:          name,
		workingDirectory: wd,
		timeout:          15 * time.Minute,
		backoff:          RetryBackoff,
		artifactManager:  artifactManager,
		logOptions:       logOptions,
	}
}

func (d *DockerRunner) WithImage(image string) *DockerRunner {
	d.image = image
	return d
}

func (d *DockerRunner) WithSrc(src string) *DockerRunner {
	d.src = filepath.Clean(src)
	return d
}

func (d *DockerRunner) WithEnv(env []models.Variable) *DockerRunner {
	variables := make([]string, 0)
	for _, v := range env {
		if len(v) > 1 {
			log.Fatal("variables should be defined as a key value pair")
		}
		for k, v := range v {
			variables = append(variables, fmt.Sprintf("%s=%s", k, v))
		}
	}
	d.env = variables
	return d
}

func (d *DockerRunner) WithCmd(cmd []string) *DockerRunner {
	d.cmd = cmd
	return d
}

func (d *DockerRunner) WithTimeout(timeout time.Duration) *DockerRunner {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

func (d *DockerRunner) WithRetries(retries int) *DockerRunner {
	if retries >= 0 {
		d.retries = retries
	}
	return d
}

func (d *DockerRunner) WithBackoff(backoff time.Duration) *DockerRunner {
	d.backoff = backoff
	return d
}

func (d *DockerRunner) CreatesArtifacts(artifacts []string) *DockerRunner {
	d.artifacts = artifacts
	return d
}

func (d *DockerRunner) Run(ctx context.Context) JobResult {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= d.retries+1; attempt++ {
		lastErr = d.runAttempt(ctx)
		if lastErr == nil {
			return JobResult{
				JobName:   d.jobName,
				Succeeded: true,
				Duration:  time.Since(start),
				Attempts:  attempt,
			}
		}

		if errors.Is(lastErr, context.Canceled) || attempt > d.retries {
			return JobResult{
				JobName:  d.jobName,
				Duration: time.Since(start),
				Attempts: attempt,
				Err:      lastErr,
			}
		}

		fmt.Fprintf(d.logOptions.Stderr, "attempt %d/%d failed, retrying: %v\n", attempt, d.retries+1, lastErr)
		select {
		case <-ctx.Done():
			return JobResult{
				JobName:  d.jobName,
				Duration: time.Since(start),
				Attempts: attempt,
				Err:      ctx.Err(),
			}
		case <-time.After(d.backoff):
		}
	}

	return JobResult{JobName: d.jobName, Duration: time.Since(start), Err: lastErr}
}

func (d *DockerRunner) runAttempt(ctx context.Context) error {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("unable to create docker client to create container %s: %v", d.name, err)
	}
	defer cli.Close()

	reader, err := cli.ImagePull(attemptCtx, d.image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("unable to pull image to create container %s: %v", d.name, err)
	}
	defer reader.Close()
	if d.logOptions.ShowImagePull {
		if _, err := io.Copy(d.logOptions.Stdout, reader); err != nil {
			return fmt.Errorf("unable to read image pull logs for %s: %v", d.name, err)
		}
	}

	if err := d.createSrcDirectories(); err != nil {
		return fmt.Errorf("unable to create source directories for %s: %v", d.name, err)
	}

	commandScript := strings.Join(d.cmd, "\n")
	resp, err := cli.ContainerCreate(attemptCtx, &container.Config{
		Image:      d.image,
		Env:        d.env,
		Cmd:        []string{"/bin/sh", "-ec", commandScript},
		WorkingDir: WORKING_DIR,
	}, &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: filepath.Join(d.workingDirectory, BUILD_DIR, fmt.Sprintf("src-%s", d.name)),
				Target: WORKING_DIR,
			},
		},
	}, nil, nil, fmt.Sprintf("%s-%s", d.name, uuid.NewString()[:8]))
	if err != nil {
		return fmt.Errorf("unable to create container %s: %v", d.name, err)
	}
	d.containerID = resp.ID
	defer cli.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true})

	if err := d.artifactManager.RetrieveArtifact(d.containerID, nil); err != nil {
		return fmt.Errorf("unable to retrieve artifacts for %s: %v", d.name, err)
	}

	if err := cli.ContainerStart(attemptCtx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("unable to start container %s: %v", d.name, err)
	}

	logs, err := cli.ContainerLogs(attemptCtx, resp.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("unable to attach logs for %s: %v", d.name, err)
	}
	defer logs.Close()

	if _, err := io.Copy(d.logOptions.Stdout, logs); err != nil {
		return fmt.Errorf("unable to read container logs from %s: %v", d.name, err)
	}

	statusCh, errCh := cli.ContainerWait(attemptCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("error waiting for container %s to stop: %v", d.name, err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("%w: container %s exited with status %d", ErrCommandFailed, d.name, status.StatusCode)
		}
		if err := d.publishArtifacts(); err != nil {
			return fmt.Errorf("unable to publish artifacts for %s: %v", d.name, err)
		}
	case <-attemptCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: container %s", ErrCommandTimedOut, d.name)
	}

	return nil
}

func (d *DockerRunner) createSrcDirectories() error {
	return utils.TarCopy(d.src, filepath.Join(BUILD_DIR, fmt.Sprintf("src-%s", d.name)), "")
}

func (d *DockerRunner) publishArtifacts() error {
	for _, v := range d.artifacts {
		if _, err := d.artifactManager.PublishArtifact(d.containerID, filepath.Join(WORKING_DIR, v)); err != nil {
			return err
		}
	}
	return nil
}
