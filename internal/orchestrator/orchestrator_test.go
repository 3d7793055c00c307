package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/narwhal-subnet/tourney/internal/store/model"
)

func TestNetworkForRoundRepeatsLastNetworkPastConfiguredList(t *testing.T) {
	networks := []string{"finney", "testnet"}
	assert.Equal(t, "finney", networkForRound(networks, 0))
	assert.Equal(t, "testnet", networkForRound(networks, 1))
	assert.Equal(t, "testnet", networkForRound(networks, 2))
	assert.Equal(t, "testnet", networkForRound(networks, 5))
}

func TestNetworkForRoundEmptyList(t *testing.T) {
	assert.Equal(t, "", networkForRound(nil, 0))
}

func TestAggregateRunsDisqualifiesOnAnyFailedRun(t *testing.T) {
	runs := []model.EvaluationRun{
		{Status: model.RunCompleted, FinalScore: 0.8},
		{Status: model.RunFailed},
	}
	_, disqualified, reason := aggregateRuns(runs, 2)
	assert.True(t, disqualified)
	assert.Equal(t, "disqualified: 1 failed/timeout runs", reason)
}

func TestAggregateRunsDisqualifiesOnTimeout(t *testing.T) {
	runs := []model.EvaluationRun{
		{Status: model.RunCompleted, FinalScore: 0.8},
		{Status: model.RunTimeout},
	}
	_, disqualified, _ := aggregateRuns(runs, 2)
	assert.True(t, disqualified)
}

func TestAggregateRunsDisqualifiesOnIncompleteRoundCount(t *testing.T) {
	runs := []model.EvaluationRun{
		{Status: model.RunCompleted, FinalScore: 0.8},
	}
	_, disqualified, reason := aggregateRuns(runs, 3)
	assert.True(t, disqualified)
	assert.Equal(t, "incomplete", reason)
}

func TestAggregateRunsComputesMeansAcrossCompletedRuns(t *testing.T) {
	runs := []model.EvaluationRun{
		{Status: model.RunCompleted, FeatureScore: 0.6, SyntheticScore: 0.4, NoveltyScore: 0.2, FinalScore: 0.5, GTFound: 3, NoveltyValid: 1},
		{Status: model.RunCompleted, FeatureScore: 1.0, SyntheticScore: 0.6, NoveltyScore: 0.4, FinalScore: 0.7, GTFound: 5, NoveltyValid: 3},
	}
	agg, disqualified, reason := aggregateRuns(runs, 2)
	assert.False(t, disqualified)
	assert.Empty(t, reason)
	assert.InDelta(t, 0.8, agg.meanFeature, 1e-9)
	assert.InDelta(t, 0.5, agg.meanSynthetic, 1e-9)
	assert.InDelta(t, 0.3, agg.meanNovelty, 1e-9)
	assert.InDelta(t, 0.6, agg.meanFinal, 1e-9)
	assert.Equal(t, 8, agg.gtFoundTotal)
	assert.Equal(t, 4, agg.noveltyValidTotal)
	assert.Equal(t, 2, agg.runsCompleted)
}
