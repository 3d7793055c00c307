package scoring

import "sort"

// Ranked is one participant's aggregate standing going into ranking.
type Ranked struct {
	ParticipantKey string
	FinalScore     float64
}

// RankedOut is a Ranked entry plus its computed rank and normalized weight.
type RankedOut struct {
	ParticipantKey string
	FinalScore     float64
	Rank           int
	Weight         float64
}

// Rank implements §4.4's ranking rule: sort descending by final_score with
// a lexicographic tie-break on participant key, assign ranks 1..K by sorted
// position, and normalize each score by the sum to produce a weight (0 when
// the sum is 0). Ranks form a permutation of 1..K over the ranked
// participants (spec.md's invariant 2): equal scores get distinct ranks in
// tie-break order, never a shared rank.
func Rank(entries []Ranked) []RankedOut {
	sorted := make([]Ranked, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FinalScore != sorted[j].FinalScore {
			return sorted[i].FinalScore > sorted[j].FinalScore
		}
		return sorted[i].ParticipantKey < sorted[j].ParticipantKey
	})

	var total float64
	for _, e := range sorted {
		total += e.FinalScore
	}

	out := make([]RankedOut, len(sorted))
	for i, e := range sorted {
		weight := 0.0
		if total > 0 {
			weight = e.FinalScore / total
		}
		out[i] = RankedOut{
			ParticipantKey: e.ParticipantKey,
			FinalScore:     e.FinalScore,
			Rank:           i + 1,
			Weight:         weight,
		}
	}
	return out
}
