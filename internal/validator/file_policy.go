// Package validator implements C3: the file, code and Dockerfile policies
// a submission must pass before it is built (spec.md §4.3).
//
// Grounded directly on original_source/evaluation/security/file_validator.py,
// code_scanner.py and dockerfile_validator.py, translated field for field
// into Go's os/filepath walk idiom instead of Python's pathlib.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxFileSizeMB  = 10.0
	maxTotalSizeMB = 100.0
	maxFiles       = 500
)

var allowedExtensions = map[string]bool{
	".py": true, ".go": true, ".txt": true, ".md": true, ".json": true,
	".yaml": true, ".yml": true, ".toml": true, ".cfg": true, ".ini": true,
	".sh": true, ".dockerfile": true, ".gitignore": true, ".dockerignore": true,
	".parquet": true, ".csv": true, ".mod": true, ".sum": true,
}

var allowedBareNames = map[string]bool{
	"dockerfile": true, "requirements.txt": true, "setup.py": true,
	"pyproject.toml": true, "go.mod": true, "go.sum": true,
}

// Violation is one policy failure. FilePolicy returns the first one it
// finds; the validator surfaces only the first-violation message per
// spec.md §4.3.
type Violation struct {
	Kind    string
	Message string
}

// FilePolicy checks §4.3.1: required Dockerfile, extension allowlist,
// per-file/total size caps, file-count cap.
func FilePolicy(dir string) (*Violation, error) {
	if _, err := os.Stat(filepath.Join(dir, "Dockerfile")); os.IsNotExist(err) {
		return &Violation{Kind: "missing_required_file", Message: "missing required file: Dockerfile"}, nil
	}

	var files []string
	var totalSize int64

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		files = append(files, path)
		totalSize += info.Size()

		sizeMB := float64(info.Size()) / (1024 * 1024)
		if sizeMB > maxFileSizeMB {
			return errViolation{&Violation{
				Kind:    "file_too_large",
				Message: fmt.Sprintf("%s: %.2fMB exceeds %.2fMB", path, sizeMB, maxFileSizeMB),
			}}
		}
		if !isAllowedFile(info.Name()) {
			return errViolation{&Violation{
				Kind:    "disallowed_extension",
				Message: fmt.Sprintf("disallowed file type: %s", path),
			}}
		}
		return nil
	})
	if v, ok := asViolation(err); ok {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walking submission tree: %w", err)
	}

	if len(files) > maxFiles {
		return &Violation{Kind: "too_many_files", Message: fmt.Sprintf("found %d files, max is %d", len(files), maxFiles)}, nil
	}

	totalMB := float64(totalSize) / (1024 * 1024)
	if totalMB > maxTotalSizeMB {
		return &Violation{Kind: "total_size_exceeded", Message: fmt.Sprintf("total size %.2fMB exceeds %.2fMB", totalMB, maxTotalSizeMB)}, nil
	}

	return nil, nil
}

func isAllowedFile(name string) bool {
	lower := strings.ToLower(name)
	if allowedBareNames[lower] {
		return true
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// errViolation lets filepath.Walk's callback short-circuit with a
// violation instead of an I/O error, unwrapped by asViolation.
type errViolation struct{ v *Violation }

func (e errViolation) Error() string { return e.v.Message }

func asViolation(err error) (*Violation, bool) {
	if err == nil {
		return nil, false
	}
	if ev, ok := err.(errViolation); ok {
		return ev.v, true
	}
	return nil, false
}
