package validator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func validDockerfile() string {
	return "FROM python:3.11-slim\nWORKDIR /app\nCOPY . .\nUSER nobody\nCMD [\"python\", \"main.py\"]\n"
}

func TestValidatePassesCleanSubmission(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	writeFile(t, dir, "main.py", "print('hello')\n")

	v, err := Validate(dir)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFilePolicyMissingDockerfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.py", "print('hi')\n")

	v, err := FilePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "missing_required_file", v.Kind)
}

func TestFilePolicyDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	writeFile(t, dir, "payload.exe", "binary")

	v, err := FilePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "disallowed_extension", v.Kind)
}

func TestFilePolicyTooManyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	for i := 0; i < maxFiles+1; i++ {
		writeFile(t, dir, filepath.Join("pkg", "f"+itoa(i)+".py"), "x = 1\n")
	}

	v, err := FilePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "too_many_files", v.Kind)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func TestFilePolicyIgnoresGitInternals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	writeFile(t, dir, "main.py", "print('hi')\n")
	writeFile(t, dir, filepath.Join(".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, dir, filepath.Join(".git", "objects", "pack", "pack-abc.pack"), "binary")

	v, err := FilePolicy(dir)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCodePolicyBlocksSubprocess(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	writeFile(t, dir, "main.py", "import subprocess\nsubprocess.run(['ls'])\n")

	v, err := CodePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestCodePolicyBlocksGoOsExecImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	writeFile(t, dir, "main.go", "package main\n\nimport \"os/exec\"\n\nfunc main() {\n\t_ = exec.Command\n}\n")

	v, err := CodePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "dangerous_import", v.Kind)
}

func TestCodePolicyAllowsCleanGo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", validDockerfile())
	writeFile(t, dir, "main.go", "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n")

	v, err := CodePolicy(dir)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDockerfilePolicyRejectsPrivileged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", "FROM python:3.11-slim\n# docker run --privileged\nUSER nobody\n")

	v, err := DockerfilePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "forbidden_instruction", v.Kind)
}

func TestDockerfilePolicyRejectsDisallowedBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", "FROM scratch\nUSER nobody\n")

	v, err := DockerfilePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "disallowed_base_image", v.Kind)
}

func TestDockerfilePolicyRequiresUser(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", "FROM python:3.11-slim\nCMD [\"python\", \"main.py\"]\n")

	v, err := DockerfilePolicy(dir)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "missing_user", v.Kind)
}
