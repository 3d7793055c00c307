// Package executor implements C2: cloning a participant's repository,
// building and running it inside an isolated container, and recovering
// its output artifacts.
//
// Grounded on codepr-narwhal's core/container.go, backend/runner.go
// (docker client usage, go-git cloning) and original_source's
// evaluation/managers/docker_manager.py (hierarchical data layout,
// isolation flags, timeout/kill/rm lifecycle).
package executor

import (
	"path/filepath"
)

// Layout mirrors docker_manager.py's hierarchical directory scheme:
// {dataRoot}/tournaments/{tournamentID}/rounds/{round}/{network}/{date}/
// with a shared input/ at that level and per-participant output/{key}/.
type Layout struct {
	root string
}

func NewLayout(dataRoot, tournamentID string, round int, network, testDate string) Layout {
	return Layout{root: filepath.Join(
		dataRoot, "tournaments", tournamentID,
		"rounds", itoa(round), network, testDate,
	)}
}

func (l Layout) InputDir() string { return filepath.Join(l.root, "input") }

func (l Layout) TransfersPath() string { return filepath.Join(l.InputDir(), "transfers.parquet") }

func (l Layout) GroundTruthPath() string { return filepath.Join(l.InputDir(), "ground_truth.parquet") }

func (l Layout) OutputDir(participantKey string) string {
	return filepath.Join(l.root, "output", participantKey)
}

func (l Layout) FeaturesPath(participantKey string) string {
	return filepath.Join(l.OutputDir(participantKey), "features.parquet")
}

func (l Layout) PatternsPath(participantKey string) string {
	return filepath.Join(l.OutputDir(participantKey), "patterns.parquet")
}

func (l Layout) PatternsGlob(participantKey string) string {
	return filepath.Join(l.OutputDir(participantKey), "patterns_*.parquet")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
