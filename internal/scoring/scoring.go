// Package scoring implements C4: the two strict gates, the three scored
// components, the final-score formula, and ranking (spec.md §4.4).
//
// Grounded on original_source/evaluation/managers/scoring_manager.py for
// the overall shape (a stateless engine holding only its weight
// configuration, computing a ScoreResult-equivalent from an output frame
// and a ground-truth frame) generalized from that file's single-recall
// rubric to the full gate + flow-tracing + novelty rubric spec.md §4.4
// specifies.
package scoring

import (
	"math"

	"github.com/narwhal-subnet/tourney/internal/parquetio"
)

// Weights are the final-score component weights. They must sum to 1.0.
type Weights struct {
	Feature   float64
	Synthetic float64
	Novelty   float64
}

// DefaultWeights matches spec.md §4.4's defaults.
var DefaultWeights = Weights{Feature: 0.25, Synthetic: 0.50, Novelty: 0.25}

// Config parameterizes one Engine.
type Config struct {
	Weights             Weights
	BaselineFeatureTime float64
	MaxFeatureTime      float64
	NoveltyCapRatio     float64
}

// Engine is the stateless scoring engine (§4.4).
type Engine struct {
	cfg Config
}

// NewEngine builds an Engine. Weights that don't sum to ~1.0 are an
// operator configuration error the caller should have already validated;
// the engine trusts its input rather than re-checking it.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Inputs bundles everything one (submission, round) score needs.
type Inputs struct {
	Features         []parquetio.Feature
	FeatureColumns   int
	Patterns         []parquetio.Pattern
	PatternsHasSchema bool
	Transfers        []parquetio.Transfer
	GroundTruth      []parquetio.GroundTruth
	FeatureTimeSec   float64
	PatternTimeSec   float64
}

// Result is everything an EvaluationRun's scoring fields (§3) record.
type Result struct {
	OutputSchemaValid bool

	GTExpected       int
	GTFound          int
	NoveltyValid     int
	NoveltyInvalid   int
	PatternsReported int

	FeatureScore     float64
	SyntheticScore   float64
	NoveltyScore     float64
	PatternExistence bool
	FinalScore       float64
}

// zero returns the all-zero Result a gate failure produces, carrying
// whatever counts were already computed for audit (§7: "a zero-scored run
// is visible with component metrics intact").
func zero(schemaValid bool, gtExpected, gtFound, noveltyValid, noveltyInvalid, reported int) Result {
	return Result{
		OutputSchemaValid: schemaValid,
		GTExpected:        gtExpected,
		GTFound:           gtFound,
		NoveltyValid:      noveltyValid,
		NoveltyInvalid:    noveltyInvalid,
		PatternsReported:  reported,
	}
}

// Score runs the full rubric: G1, pattern extraction + flow tracing, G2,
// then the three component scores and the final formula.
func (e *Engine) Score(in Inputs) Result {
	if !validFeatureSchema(in.Features, in.FeatureColumns) || !in.PatternsHasSchema || !validPatternTypes(in.Patterns) {
		return zero(false, len(in.GroundTruth), 0, 0, 0, len(in.Patterns))
	}

	gt := groundTruthSet(in.GroundTruth)
	edges := transferEdges(in.Transfers)
	anyAddr := anyAddressSet(in.Transfers)

	foundGT := map[string]bool{}
	noveltyValid := 0
	noveltyInvalid := 0

	for _, p := range in.Patterns {
		seq := p.AddressSequence()
		if len(seq) == 0 {
			noveltyInvalid++
			continue
		}
		if !flowTraceValid(seq, edges, anyAddr) {
			noveltyInvalid++
			continue
		}
		overlap := false
		for _, addr := range seq {
			if gt[addr] {
				foundGT[addr] = true
				overlap = true
			}
		}
		if !overlap {
			noveltyValid++
		}
	}

	gtExpected := len(gt)
	gtFound := len(foundGT)
	patternsReported := len(in.Patterns)

	if noveltyInvalid > 0 {
		return zero(true, gtExpected, gtFound, noveltyValid, noveltyInvalid, patternsReported)
	}

	feature := e.featureScore(in.FeatureTimeSec)
	synthetic := syntheticScore(gtFound, gtExpected)
	novelty := e.noveltyScore(noveltyValid, gtExpected)
	existence := gtFound+noveltyValid > 0

	var final float64
	if existence {
		final = e.cfg.Weights.Feature*feature + e.cfg.Weights.Synthetic*synthetic + e.cfg.Weights.Novelty*novelty
	} else {
		final = e.cfg.Weights.Feature * feature
	}

	return Result{
		OutputSchemaValid: true,
		GTExpected:        gtExpected,
		GTFound:           gtFound,
		NoveltyValid:      noveltyValid,
		NoveltyInvalid:    noveltyInvalid,
		PatternsReported:  patternsReported,
		FeatureScore:      feature,
		SyntheticScore:    synthetic,
		NoveltyScore:      novelty,
		PatternExistence:  existence,
		FinalScore:        final,
	}
}

// featureScore is a sigmoid-ratio of baseline/actual feature time, clamped
// to [0,1] and forced to 0 past the max-time cutoff.
func (e *Engine) featureScore(featureTime float64) float64 {
	if featureTime <= 0 || featureTime >= e.cfg.MaxFeatureTime {
		return 0
	}
	ratio := e.cfg.BaselineFeatureTime / featureTime
	score := 1 / (1 + math.Exp(-ratio+1))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func syntheticScore(gtFound, gtExpected int) float64 {
	if gtExpected == 0 {
		return 1.0
	}
	return float64(gtFound) / float64(gtExpected)
}

func (e *Engine) noveltyScore(noveltyValid, gtExpected int) float64 {
	cap := int(math.Floor(float64(gtExpected) * e.cfg.NoveltyCapRatio))
	if cap == 0 {
		return 0
	}
	n := noveltyValid
	if n > cap {
		n = cap
	}
	return float64(n) / float64(cap)
}

func validFeatureSchema(features []parquetio.Feature, columnCount int) bool {
	if columnCount < 5 { // address + >=4 additional
		return false
	}
	for _, f := range features {
		if f.Address == "" {
			return false
		}
	}
	return true
}

func validPatternTypes(patterns []parquetio.Pattern) bool {
	for _, p := range patterns {
		if !parquetio.AllowedPatternTypes[p.PatternType] {
			return false
		}
	}
	return true
}

func groundTruthSet(rows []parquetio.GroundTruth) map[string]bool {
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		set[r.Address] = true
	}
	return set
}

type edgeKey struct{ from, to string }

func transferEdges(rows []parquetio.Transfer) map[edgeKey]bool {
	edges := make(map[edgeKey]bool, len(rows))
	for _, r := range rows {
		edges[edgeKey{r.From, r.To}] = true
	}
	return edges
}

func anyAddressSet(rows []parquetio.Transfer) map[string]bool {
	set := make(map[string]bool, len(rows)*2)
	for _, r := range rows {
		set[r.From] = true
		set[r.To] = true
	}
	return set
}

// flowTraceValid implements §4.4's anti-cheat check: for a multi-address
// pattern every adjacent pair must be a directed edge in transfers; a
// single-address pattern is valid only if that address appears anywhere in
// transfers.
func flowTraceValid(seq []string, edges map[edgeKey]bool, anyAddr map[string]bool) bool {
	if len(seq) == 1 {
		return anyAddr[seq[0]]
	}
	for i := 0; i < len(seq)-1; i++ {
		if !edges[edgeKey{seq[i], seq[i+1]}] {
			return false
		}
	}
	return true
}
