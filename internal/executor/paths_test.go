package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutSharesInputAcrossParticipants(t *testing.T) {
	id := "11111111-1111-1111-1111-111111111111"
	l := NewLayout("/data", id, 2, "testnet", "2026-07-01")

	assert.Equal(t, l.TransfersPath(), l.TransfersPath())
	assert.Contains(t, l.InputDir(), "rounds/2/testnet/2026-07-01/input")
	assert.Contains(t, l.OutputDir("hotkey-a"), "output/hotkey-a")
	assert.NotEqual(t, l.OutputDir("hotkey-a"), l.OutputDir("hotkey-b"))
}

func TestLayoutFeaturesAndPatternsPaths(t *testing.T) {
	id := "22222222-2222-2222-2222-222222222222"
	l := NewLayout("/data", id, 0, "mainnet", "2026-07-01")

	assert.Contains(t, l.FeaturesPath("k1"), "features.parquet")
	assert.Contains(t, l.PatternsPath("k1"), "patterns.parquet")
	assert.Contains(t, l.PatternsGlob("k1"), "patterns_*.parquet")
}
