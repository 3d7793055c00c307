// Package controller implements C7: the validator controller peer that
// drives participant polling ahead of a tournament and weight publication
// after one completes. It runs alongside, not inside, the C6 state
// machine, coordinating through the shared store only.
//
// Grounded on spec.md §4.7 directly for the PRE_TOURNAMENT/AWAITING_WEIGHTS
// behavior, and on codepr-narwhal's backend/dispatcher.go for the
// net/rpc.Dial + Client.Call transport shape used by the production
// SubmissionSource.
package controller

import (
	"context"
	"fmt"
	"net/rpc"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/narwhal-subnet/tourney/internal/errkind"
	"github.com/narwhal-subnet/tourney/internal/store"
	"github.com/narwhal-subnet/tourney/internal/store/model"
)

var (
	repoURLPattern   = regexp.MustCompile(`^https://github\.com/[A-Za-z0-9_-]+/[A-Za-z0-9_.-]+(?:\.git)?$`)
	commitShaPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)
	branchRefPattern = regexp.MustCompile(`^[\w\-./]{1,255}$`)
)

// ParticipantPointer is one participant's self-reported submission.
type ParticipantPointer struct {
	ParticipantKey string
	ParticipantUID int64
	RepoURL        string
	CommitRef      string
}

// SubmissionSource polls every known participant for its current
// submission pointer.
type SubmissionSource interface {
	ListParticipants(ctx context.Context) ([]ParticipantPointer, error)
}

// WeightPublisher sends the final normalized weight vector on-chain.
type WeightPublisher interface {
	PublishWeights(ctx context.Context, weights map[int64]float64) error
}

// TournamentStarter decides what config a freshly observed epoch should
// run with, since the controller (not the orchestrator) creates the
// pending→collecting Tournament row per spec.md §4.6.
type TournamentStarter interface {
	NextEpoch(ctx context.Context) (epoch int64, cfg model.TournamentConfig, err error)
}

// Controller runs the PRE_TOURNAMENT and AWAITING_WEIGHTS loops.
type Controller struct {
	Store        *store.Store
	Submissions  SubmissionSource
	Weights      WeightPublisher
	Starter      TournamentStarter
	PollInterval time.Duration
	Log          *logrus.Entry

	// OnCollectingClosed is invoked once the submission window elapses and
	// the controller has transitioned a Tournament to in_progress, so the
	// caller can hand it to the C6 orchestrator.
	OnCollectingClosed func(tournamentID string)
}

// Run polls forever until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.tick(ctx); err != nil {
			c.Log.WithError(err).Warn("controller_tick_failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) tick(ctx context.Context) error {
	tour, err := c.Store.GetActive(ctx)
	if err != nil {
		return c.startNewTournament(ctx)
	}

	switch tour.Status {
	case model.TournamentPending, model.TournamentCollecting:
		return c.pollParticipants(ctx, tour)
	case model.TournamentCompleted:
		if tour.WeightsPublishedAt == nil {
			return c.publishWeights(ctx, tour)
		}
	}
	return nil
}

func (c *Controller) startNewTournament(ctx context.Context) error {
	epoch, cfg, err := c.Starter.NextEpoch(ctx)
	if err != nil {
		return fmt.Errorf("%w: determining next epoch: %v", errkind.ErrStore, err)
	}
	tour, err := c.Store.CreateTournament(ctx, epoch, cfg)
	if err != nil {
		return err
	}
	return c.Store.UpdateTournamentStatus(ctx, tour.ID, model.TournamentCollecting)
}

func (c *Controller) pollParticipants(ctx context.Context, tour model.Tournament) error {
	if tour.StartedAt != nil && time.Since(*tour.StartedAt) >= time.Duration(tour.Config.SubmissionWindowSeconds)*time.Second {
		if err := c.Store.UpdateTournamentStatus(ctx, tour.ID, model.TournamentInProgress); err != nil {
			return err
		}
		if c.OnCollectingClosed != nil {
			c.OnCollectingClosed(tour.ID)
		}
		return nil
	}

	participants, err := c.Submissions.ListParticipants(ctx)
	if err != nil {
		// A single failed poll is recoverable on the next tick.
		return fmt.Errorf("%w: %v", errkind.ErrRPC, err)
	}

	for _, p := range participants {
		if !validRepoURL(p.RepoURL) || !validCommitRef(p.CommitRef) {
			c.Log.WithFields(logrus.Fields{
				"participant": p.ParticipantKey,
				"repo_url":    p.RepoURL,
				"commit_ref":  p.CommitRef,
			}).Warn("participant_pointer_rejected")
			continue
		}
		if _, err := c.Store.UpsertSubmission(ctx, tour.ID, p.ParticipantKey, p.ParticipantUID, p.RepoURL, p.CommitRef); err != nil {
			c.Log.WithError(err).WithField("participant", p.ParticipantKey).Warn("submission_upsert_failed")
		}
	}
	return nil
}

func validRepoURL(url string) bool {
	return repoURLPattern.MatchString(url)
}

func validCommitRef(ref string) bool {
	return commitShaPattern.MatchString(ref) || branchRefPattern.MatchString(ref)
}

func (c *Controller) publishWeights(ctx context.Context, tour model.Tournament) error {
	results, err := c.Store.GetResults(ctx, tour.ID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	var total float64
	for _, r := range results {
		total += r.FinalScore
	}

	weights := make(map[int64]float64, len(results))
	for _, r := range results {
		if total > 0 {
			weights[r.ParticipantUID] = r.FinalScore / total
		} else {
			weights[r.ParticipantUID] = 0
		}
	}

	if err := c.Weights.PublishWeights(ctx, weights); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrWeightPublish, err)
	}
	return c.Store.MarkWeightsPublished(ctx, tour.ID)
}

// RPCSubmissionSource is the production SubmissionSource, dialing each
// participant's RPC endpoint the way codepr-narwhal's backend/dispatcher.go
// dials runners for heartbeats.
type RPCSubmissionSource struct {
	Addrs map[string]int64 // participant address -> participant UID
}

type SubmissionRequest struct{}

// SubmissionReply is what a participant's RPC server returns for its
// current submission pointer.
type SubmissionReply struct {
	RepoURL   string
	CommitRef string
}

func (s *RPCSubmissionSource) ListParticipants(ctx context.Context) ([]ParticipantPointer, error) {
	out := make([]ParticipantPointer, 0, len(s.Addrs))
	for addr, uid := range s.Addrs {
		client, err := rpc.Dial("tcp", addr)
		if err != nil {
			continue
		}
		var reply SubmissionReply
		callErr := client.Call("Submission.Get", SubmissionRequest{}, &reply)
		client.Close()
		if callErr != nil {
			continue
		}
		out = append(out, ParticipantPointer{
			ParticipantKey: addr,
			ParticipantUID: uid,
			RepoURL:        reply.RepoURL,
			CommitRef:      reply.CommitRef,
		})
	}
	return out, nil
}
