// Package workflow emits a GitHub Actions workflow for the deployment
// pipeline.
package workflow

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const FileName = "deploy-pipeline.yml"

type Workflow struct {
	Name string            `yaml:"name"`
	On   Triggers          `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	Jobs map[string]Job    `yaml:"jobs"`
}

type Triggers struct {
	Push             BranchFilter `yaml:"push"`
	PullRequest      BranchFilter `yaml:"pull_request"`
	WorkflowDispatch struct{}     `yaml:"workflow_dispatch"`
}

type BranchFilter struct {
	Branches []string `yaml:"branches"`
}

type Job struct {
	Name        string `yaml:"name"`
	RunsOn      string `yaml:"runs-on"`
	Needs       string `yaml:"needs,omitempty"`
	If          string `yaml:"if,omitempty"`
	Environment string `yaml:"environment,omitempty"`
	Steps       []Step `yaml:"steps"`
}

type Step struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
}

// Generate builds the pipeline workflow: one validate-and-build job plus
// branch-gated staging and production deploy jobs.
func Generate() Workflow {
	checkout := Step{Name: "Checkout Repository", Uses: "actions/checkout@v4"}
	download := Step{
		Name: "Download Build Artifacts",
		Uses: "actions/download-artifact@v4",
		With: map[string]string{
			"name": "ship-build-${{ github.sha }}",
			"path": "dist/",
		},
	}

	return Workflow{
		Name: "Deployment Pipeline",
		On: Triggers{
			Push:        BranchFilter{Branches: []string{"main", "develop"}},
			PullRequest: BranchFilter{Branches: []string{"main"}},
		},
		Env: map[string]string{
			"NODE_VERSION": "18",
			"GO_VERSION":   "1.21",
		},
		Jobs: map[string]Job{
			"validate-and-build": {
				Name:   "Validate & Build",
				RunsOn: "ubuntu-latest",
				Steps: []Step{
					checkout,
					{
						Name: "Setup Node.js",
						Uses: "actions/setup-node@v4",
						With: map[string]string{
							"node-version": "${{ env.NODE_VERSION }}",
							"cache":        "npm",
						},
					},
					{
						Name: "Setup Go",
						Uses: "actions/setup-go@v4",
						With: map[string]string{
							"go-version": "${{ env.GO_VERSION }}",
						},
					},
					{Name: "Build Pipeline Tool", Run: "go build -o ship ."},
					{Name: "Validate Environment", Run: "./ship --validate-only"},
					{Name: "Install Dependencies", Run: "npm ci"},
					{Name: "Build Application", Run: "./ship"},
					{
						Name: "Upload Build Artifacts",
						Uses: "actions/upload-artifact@v4",
						With: map[string]string{
							"name":           "ship-build-${{ github.sha }}",
							"path":           "dist/",
							"retention-days": "${{ vars.ARTIFACTS_RETENTION_DAYS || 30 }}",
						},
					},
				},
			},
			"deploy-staging": {
				Name:        "Deploy to Staging",
				RunsOn:      "ubuntu-latest",
				Needs:       "validate-and-build",
				If:          "github.ref == 'refs/heads/develop'",
				Environment: "staging",
				Steps: []Step{
					checkout,
					download,
					{Name: "Deploy to Staging Environment", Run: "go run . --environment staging --deploy-artifacts"},
				},
			},
			"deploy-production": {
				Name:        "Deploy to Production",
				RunsOn:      "ubuntu-latest",
				Needs:       "validate-and-build",
				If:          "github.ref == 'refs/heads/main'",
				Environment: "production",
				Steps: []Step{
					checkout,
					download,
					{Name: "Deploy to Production Environment", Run: "go run . --environment production --deploy-artifacts"},
				},
			},
		},
	}
}

// Render marshals the workflow document.
func Render() ([]byte, error) {
	return yaml.Marshal(Generate())
}

// WriteFile writes the workflow under root/.github/workflows.
func WriteFile(root string) (string, error) {
	dir := filepath.Join(root, ".github", "workflows")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	contents, err := Render()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return "", err
	}
	return path, nil
}
