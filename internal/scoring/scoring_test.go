package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhal-subnet/tourney/internal/parquetio"
)

func cfgS1() Config {
	return Config{
		Weights:             DefaultWeights,
		BaselineFeatureTime: 30,
		MaxFeatureTime:      600,
		NoveltyCapRatio:     0.5,
	}
}

func features(addrs ...string) []parquetio.Feature {
	out := make([]parquetio.Feature, len(addrs))
	for i, a := range addrs {
		out[i] = parquetio.Feature{Address: a}
	}
	return out
}

func gt(addrs ...string) []parquetio.GroundTruth {
	out := make([]parquetio.GroundTruth, len(addrs))
	for i, a := range addrs {
		out[i] = parquetio.GroundTruth{Address: a}
	}
	return out
}

func transfer(from, to string) parquetio.Transfer {
	return parquetio.Transfer{From: from, To: to}
}

// S1 — happy path, single participant, single round.
func TestScoreS1HappyPath(t *testing.T) {
	engine := NewEngine(cfgS1())

	in := Inputs{
		Features:          features("A", "B", "C", "D"),
		FeatureColumns:    5,
		PatternsHasSchema: true,
		Patterns: []parquetio.Pattern{
			{PatternID: "p1", PatternType: "cycle", Addresses: []string{"A", "X"}},
			{PatternID: "p2", PatternType: "cycle", Addresses: []string{"Y", "Z"}},
		},
		Transfers:      []parquetio.Transfer{transfer("A", "X"), transfer("Y", "Z")},
		GroundTruth:    gt("A", "B", "C", "D"),
		FeatureTimeSec: 30,
		PatternTimeSec: 120,
	}

	result := engine.Score(in)

	require.True(t, result.OutputSchemaValid)
	assert.Equal(t, 1, result.GTFound)
	assert.Equal(t, 1, result.NoveltyValid)
	assert.Equal(t, 0, result.NoveltyInvalid)
	assert.InDelta(t, 0.25, result.SyntheticScore, 1e-9)
	assert.InDelta(t, 0.5, result.NoveltyScore, 1e-9)
	assert.InDelta(t, 0.5, result.FeatureScore, 1e-9)
	assert.InDelta(t, 0.375, result.FinalScore, 1e-9)

	ranked := Rank([]Ranked{{ParticipantKey: "p1", FinalScore: result.FinalScore}})
	assert.Equal(t, 1, ranked[0].Rank)
	assert.InDelta(t, 1.0, ranked[0].Weight, 1e-9)
}

// S2 — anti-cheat trip: a pattern edge that does not exist in transfers.
func TestScoreS2AntiCheatTrip(t *testing.T) {
	engine := NewEngine(cfgS1())

	in := Inputs{
		Features:          features("A", "B", "C", "D"),
		FeatureColumns:    5,
		PatternsHasSchema: true,
		Patterns: []parquetio.Pattern{
			{PatternID: "p1", PatternType: "cycle", Addresses: []string{"A", "B"}},
		},
		Transfers:      []parquetio.Transfer{transfer("Y", "Z")},
		GroundTruth:    gt("A", "B", "C", "D"),
		FeatureTimeSec: 30,
		PatternTimeSec: 120,
	}

	result := engine.Score(in)

	assert.Equal(t, 1, result.NoveltyInvalid)
	assert.Equal(t, 0.0, result.FinalScore)
	assert.Equal(t, 0.0, result.FeatureScore)
	assert.Equal(t, 0.0, result.SyntheticScore)
	assert.Equal(t, 0.0, result.NoveltyScore)
}

// S4 — schema gate: patterns table missing pattern_id.
func TestScoreS4SchemaGate(t *testing.T) {
	engine := NewEngine(cfgS1())

	in := Inputs{
		Features:          features("A", "B", "C", "D"),
		FeatureColumns:    5,
		PatternsHasSchema: false, // missing pattern_id
		GroundTruth:       gt("A"),
	}

	result := engine.Score(in)

	assert.False(t, result.OutputSchemaValid)
	assert.Equal(t, 0.0, result.FinalScore)
}

func TestBoundaryGTExpectedZero(t *testing.T) {
	engine := NewEngine(cfgS1())
	in := Inputs{
		Features:          features("A", "B", "C", "D"),
		FeatureColumns:    5,
		PatternsHasSchema: true,
		GroundTruth:       nil,
		FeatureTimeSec:    30,
	}
	result := engine.Score(in)
	assert.InDelta(t, 1.0, result.SyntheticScore, 1e-9)
	assert.Equal(t, 0.0, result.NoveltyScore)
}

func TestBoundaryNoPatternsReported(t *testing.T) {
	engine := NewEngine(cfgS1())
	in := Inputs{
		Features:          features("A", "B", "C", "D"),
		FeatureColumns:    5,
		PatternsHasSchema: true,
		GroundTruth:       gt("A", "B"),
		FeatureTimeSec:    30,
	}
	result := engine.Score(in)
	assert.False(t, result.PatternExistence)
	assert.InDelta(t, result.FeatureScore*DefaultWeights.Feature, result.FinalScore, 1e-9)
}

func TestBoundaryFeatureTimeAtMax(t *testing.T) {
	engine := NewEngine(cfgS1())
	in := Inputs{
		Features:          features("A", "B", "C", "D"),
		FeatureColumns:    5,
		PatternsHasSchema: true,
		GroundTruth:       gt("A"),
		FeatureTimeSec:    600,
	}
	result := engine.Score(in)
	assert.Equal(t, 0.0, result.FeatureScore)
}

func TestRankTieBreakIsLexicographic(t *testing.T) {
	ranked := Rank([]Ranked{
		{ParticipantKey: "zeta", FinalScore: 0.5},
		{ParticipantKey: "alpha", FinalScore: 0.5},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "alpha", ranked[0].ParticipantKey)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "zeta", ranked[1].ParticipantKey)
	assert.Equal(t, 2, ranked[1].Rank)
}
