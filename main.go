// Ship is a deployment pipeline runner for web applications.
//
// Ship validates the build environment, builds the front-end bundle through
// npm, serves the built assets with security headers, and can generate a
// GitHub Actions workflow for the same pipeline.
package main

import (
	"github.com/opnlabs/ship/cmd/ship"
)

func main() {
	ship.Execute()
}
