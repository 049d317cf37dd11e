package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestGenerate(t *testing.T) {
	w := Generate()

	if len(w.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(w.Jobs))
	}

	build, ok := w.Jobs["validate-and-build"]
	if !ok {
		t.Fatal("missing validate-and-build job")
	}
	if build.Needs != "" {
		t.Error("build job should not depend on anything")
	}

	for _, name := range []string{"deploy-staging", "deploy-production"} {
		job, ok := w.Jobs[name]
		if !ok {
			t.Fatalf("missing %s job", name)
		}
		if job.Needs != "validate-and-build" {
			t.Errorf("%s must depend on the build job, got %q", name, job.Needs)
		}
		if job.If == "" {
			t.Errorf("%s must be branch gated", name)
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	contents, err := Render()
	if err != nil {
		t.Fatal(err)
	}

	var w Workflow
	if err := yaml.Unmarshal(contents, &w); err != nil {
		t.Fatalf("rendered workflow is not valid yaml: %v", err)
	}
	if w.Name != "Deployment Pipeline" {
		t.Errorf("unexpected workflow name: %s", w.Name)
	}
	if len(w.On.Push.Branches) != 2 {
		t.Errorf("push trigger branches did not round-trip: %v", w.On.Push.Branches)
	}
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()

	path, err := WriteFile(root)
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(root, ".github", "workflows", FileName)
	if path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("workflow file was not written: %v", err)
	}
}
