// Package orchestrator implements C6: the tournament state machine, round
// barrier fan-out and post-round aggregation.
//
// Grounded on original_source/evaluation/tasks/epoch_orchestrator_task.py
// for the phase ordering (wait for submissions, run each round, finalize)
// and on codepr-narwhal's core/pool.go RunnerPool for the
// bounded-channel dispatch shape, adapted from a continuous forwarding
// loop into a per-round barrier (a buffered error channel drained once
// per round) since the orchestrator must wait for every dispatched task
// in a round before opening the next one.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/narwhal-subnet/tourney/internal/errkind"
	"github.com/narwhal-subnet/tourney/internal/queue"
	"github.com/narwhal-subnet/tourney/internal/scoring"
	"github.com/narwhal-subnet/tourney/internal/store"
	"github.com/narwhal-subnet/tourney/internal/store/model"
)

// Dispatcher enqueues one evaluation task and blocks until the worker pool
// reports it terminal, so the orchestrator can wait on an entire round by
// draining one error per submission.
type Dispatcher interface {
	Dispatch(ctx context.Context, task queue.Task) (model.EvaluationRun, error)
}

type Orchestrator struct {
	Store        *store.Store
	Dispatcher   Dispatcher
	InterRound   time.Duration
	BeatBaseline float64
	Log          *logrus.Entry
}

// RunTournament drives one Tournament from in_progress through evaluating
// to completed/failed. It assumes collecting→in_progress already happened
// (C7's responsibility) and exits once the tournament reaches a terminal
// state.
func (o *Orchestrator) RunTournament(ctx context.Context, tournamentID string) error {
	tour, err := o.Store.GetLatest(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading tournament: %v", errkind.ErrStore, err)
	}
	if tour.ID != tournamentID {
		return fmt.Errorf("%w: tournament %s is not the latest", errkind.ErrStore, tournamentID)
	}

	if err := o.Store.UpdateTournamentStatus(ctx, tournamentID, model.TournamentEvaluating); err != nil {
		return err
	}

	submissions, err := o.Store.ListValidSubmissions(ctx, tournamentID)
	if err != nil {
		return o.fail(ctx, tournamentID, err)
	}

	for round := 0; round < tour.Config.RoundCount; round++ {
		network := networkForRound(tour.Config.TestNetworks, round)
		if err := o.runRound(ctx, tour, submissions, round, network); err != nil {
			return o.fail(ctx, tournamentID, err)
		}
		if round < tour.Config.RoundCount-1 {
			select {
			case <-ctx.Done():
				return o.fail(ctx, tournamentID, ctx.Err())
			case <-time.After(o.InterRound):
			}
		}
	}

	if err := o.finalize(ctx, tour); err != nil {
		return o.fail(ctx, tournamentID, err)
	}
	return o.Store.UpdateTournamentStatus(ctx, tournamentID, model.TournamentCompleted)
}

// networkForRound implements spec.md §4.6: extra rounds repeat the last
// configured test network.
func networkForRound(networks []string, round int) string {
	if len(networks) == 0 {
		return ""
	}
	if round >= len(networks) {
		return networks[len(networks)-1]
	}
	return networks[round]
}

func (o *Orchestrator) runRound(ctx context.Context, tour model.Tournament, submissions []model.Submission, round int, network string) error {
	testDate := time.Now().UTC().Format("2006-01-02")
	results := make(chan error, len(submissions))

	for _, sub := range submissions {
		sub := sub
		go func() {
			_, err := o.Dispatcher.Dispatch(ctx, queue.Task{
				SubmissionID:   sub.ID,
				TournamentID:   tour.ID,
				ParticipantKey: sub.ParticipantKey,
				RepoURL:        sub.RepoURL,
				CommitRef:      sub.CommitRef,
				Round:          round,
				Network:        network,
				TestDate:       testDate,
			})
			results <- err
		}()
	}

	// Dispatch blocks until the run reaches a terminal status and records
	// pass/fail on the EvaluationRun itself; an error here means the
	// dispatch infrastructure (queue, store) failed, not that the
	// submission's run failed, so it aborts the round.
	var firstErr error
	for range submissions {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (o *Orchestrator) fail(ctx context.Context, tournamentID string, cause error) error {
	o.Log.WithError(cause).Error("tournament_failed")
	if err := o.Store.UpdateTournamentStatus(ctx, tournamentID, model.TournamentFailed); err != nil {
		o.Log.WithError(err).Error("failed_to_mark_tournament_failed")
	}
	return cause
}

// finalize implements the strict multi-round disqualification and ranking
// rule from spec.md §4.6.
func (o *Orchestrator) finalize(ctx context.Context, tour model.Tournament) error {
	submissions, err := o.Store.ListValidSubmissions(ctx, tour.ID)
	if err != nil {
		return err
	}

	var ranked []scoring.Ranked
	aggregates := map[string]aggregate{}

	for _, sub := range submissions {
		runs, err := o.Store.ListRunsBySubmission(ctx, sub.ID)
		if err != nil {
			return err
		}
		agg, disqualified, reason := aggregateRuns(runs, tour.Config.RoundCount)
		if disqualified {
			_ = o.Store.SetSubmissionStatus(ctx, sub.ID, model.SubmissionInvalid, "", reason)
			continue
		}
		agg.participantUID = sub.ParticipantUID
		aggregates[sub.ParticipantKey] = agg
		ranked = append(ranked, scoring.Ranked{ParticipantKey: sub.ParticipantKey, FinalScore: agg.meanFinal})
	}

	rankedOut := scoring.Rank(ranked)

	results := make([]model.Result, 0, len(rankedOut))
	for _, ro := range rankedOut {
		agg := aggregates[ro.ParticipantKey]
		results = append(results, model.Result{
			TournamentID:       tour.ID,
			ParticipantKey:     ro.ParticipantKey,
			ParticipantUID:     agg.participantUID,
			MeanFeatureScore:   agg.meanFeature,
			MeanSyntheticScore: agg.meanSynthetic,
			MeanNoveltyScore:   agg.meanNovelty,
			GTFoundTotal:       agg.gtFoundTotal,
			NoveltyValidTotal:  agg.noveltyValidTotal,
			RunsCompleted:      agg.runsCompleted,
			FinalScore:         ro.FinalScore,
			Rank:               ro.Rank,
			BeatBaseline:       ro.FinalScore > o.BeatBaseline,
			IsWinner:           ro.Rank == 1,
		})
	}

	return o.Store.ReplaceResults(ctx, tour.ID, results)
}

type aggregate struct {
	participantUID    int64
	meanFeature       float64
	meanSynthetic     float64
	meanNovelty       float64
	meanFinal         float64
	gtFoundTotal      int
	noveltyValidTotal int
	runsCompleted     int
}

// aggregateRuns implements the disqualification rule: any failed/timeout
// run disqualifies the submission outright; otherwise every round must
// have produced a completed run.
func aggregateRuns(runs []model.EvaluationRun, roundCount int) (agg aggregate, disqualified bool, reason string) {
	completed := 0
	badRuns := 0
	for _, r := range runs {
		switch r.Status {
		case model.RunFailed, model.RunTimeout:
			badRuns++
		case model.RunCompleted:
			completed++
			agg.meanFeature += r.FeatureScore
			agg.meanSynthetic += r.SyntheticScore
			agg.meanNovelty += r.NoveltyScore
			agg.meanFinal += r.FinalScore
			agg.gtFoundTotal += r.GTFound
			agg.noveltyValidTotal += r.NoveltyValid
		}
	}
	if badRuns > 0 {
		return aggregate{}, true, fmt.Sprintf("disqualified: %d failed/timeout runs", badRuns)
	}
	if completed != roundCount {
		return aggregate{}, true, "incomplete"
	}
	agg.runsCompleted = completed
	agg.meanFeature /= float64(completed)
	agg.meanSynthetic /= float64(completed)
	agg.meanNovelty /= float64(completed)
	agg.meanFinal /= float64(completed)
	return agg, false, ""
}
