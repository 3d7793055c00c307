package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifestReturnsNilWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	m, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLoadManifestParsesSteps(t *testing.T) {
	dir := t.TempDir()
	content := "name: build\nsteps:\n  - name: deps\n    dependencies:\n      - \"pip install -r requirements.txt\"\n    command: \"python setup.py build\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tourney.yml"), []byte(content), 0o644))

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "build", m.Name)
	require.Len(t, m.Steps, 1)
	assert.Equal(t, "python setup.py build", m.Steps[0].Cmd)
	assert.Equal(t, []string{"pip install -r requirements.txt"}, m.Steps[0].Dependencies)
}

func TestApplyManifestAppendsRunInstructions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.11-slim\nUSER nobody\n"), 0o644))

	m := &Manifest{Steps: []struct {
		Name         string   `yaml:"name"`
		Dependencies []string `yaml:"dependencies,omitempty"`
		Cmd          string   `yaml:"command"`
	}{
		{Name: "deps", Dependencies: []string{"pip install -r requirements.txt"}, Cmd: "python setup.py build"},
	}}

	require.NoError(t, ApplyManifest(dir, m))

	out, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "RUN pip install -r requirements.txt")
	assert.Contains(t, string(out), "RUN python setup.py build")
}

func TestApplyManifestNoopWhenNil(t *testing.T) {
	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(dockerfile, []byte("FROM python:3.11-slim\n"), 0o644))

	require.NoError(t, ApplyManifest(dir, nil))

	out, err := os.ReadFile(dockerfile)
	require.NoError(t, err)
	assert.Equal(t, "FROM python:3.11-slim\n", string(out))
}
