// Package deploy serves the built bundle and validates the environment
// around it.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
)

var ErrValidationFailed = errors.New("deploy: validation failed")

// Validation checks that the tools and files a deployment needs are present
// before any pipeline job runs.
type Validation struct {
	Root   string
	Tools  []string
	Files  []string
	logger *log.Logger
}

func NewValidation(root string, logger *log.Logger) *Validation {
	return &Validation{
		Root:   root,
		Tools:  []string{"node", "npm"},
		Files:  []string{"package.json", "vite.config.ts", "src/App.tsx", "tailwind.config.js"},
		logger: logger,
	}
}

func (v *Validation) Run() error {
	v.logger.Info("validating deployment environment", "root", v.Root)

	for _, tool := range v.Tools {
		path, err := exec.LookPath(tool)
		if err != nil {
			return fmt.Errorf("%w: %s not found on PATH", ErrValidationFailed, tool)
		}
		v.logger.Debug("tool detected", "tool", tool, "path", path)
	}

	for _, file := range v.Files {
		if _, err := os.Stat(filepath.Join(v.Root, file)); err != nil {
			return fmt.Errorf("%w: required file missing: %s", ErrValidationFailed, file)
		}
	}

	v.logger.Info("environment validation successful")
	return nil
}
