package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Manifest is an optional extra-build-steps file a submission may check
// in alongside its Dockerfile: named steps, each with a command and an
// optional dependency list, applied as additive Dockerfile RUN
// instructions so a manifest step still runs inside the same
// network-isolated image build as everything else.
type Manifest struct {
	Name  string `yaml:"name"`
	Steps []struct {
		Name         string   `yaml:"name"`
		Dependencies []string `yaml:"dependencies,omitempty"`
		Cmd          string   `yaml:"command"`
	} `yaml:"steps"`
}

const manifestFilename = ".tourney.yml"

// LoadManifest reads a submission's optional manifest. A missing file is
// not an error: the bare Dockerfile build path always works on its own.
func LoadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", manifestFilename, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", manifestFilename, err)
	}
	return &m, nil
}

// ApplyManifest appends each manifest step as a RUN instruction to the
// submission's Dockerfile. It runs after the DockerfilePolicy check has
// passed, and the caller runs DockerfilePolicy again on the result, so
// extra steps never bypass the base-image/USER/forbidden-instruction
// checks.
func ApplyManifest(dir string, m *Manifest) error {
	if m == nil || len(m.Steps) == 0 {
		return nil
	}
	dockerfilePath := filepath.Join(dir, "Dockerfile")
	existing, err := os.ReadFile(dockerfilePath)
	if err != nil {
		return fmt.Errorf("reading Dockerfile: %w", err)
	}

	content := string(existing)
	for _, step := range m.Steps {
		for _, dep := range step.Dependencies {
			content += fmt.Sprintf("\nRUN %s\n", dep)
		}
		if step.Cmd != "" {
			content += fmt.Sprintf("RUN %s\n", step.Cmd)
		}
	}

	return os.WriteFile(dockerfilePath, []byte(content), 0o644)
}
