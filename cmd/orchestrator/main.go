// Command orchestrator runs the tournament state machine and the
// validator controller side by side in one process: two cooperating
// goroutines over the same store, not alternate deployments.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narwhal-subnet/tourney/internal/config"
	"github.com/narwhal-subnet/tourney/internal/controller"
	"github.com/narwhal-subnet/tourney/internal/logging"
	"github.com/narwhal-subnet/tourney/internal/orchestrator"
	"github.com/narwhal-subnet/tourney/internal/queue"
	"github.com/narwhal-subnet/tourney/internal/store"
	"github.com/narwhal-subnet/tourney/internal/store/model"
)

func main() {
	log := logging.New("orchestrator")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config_load_failed")
	}

	st, err := store.Open(cfg.StoreDSN)
	if err != nil {
		log.WithError(err).Fatal("store_open_failed")
	}
	defer st.Close()

	taskQueue := queue.NewAmqpQueue(cfg.BrokerURL, "tourney-evaluations")

	orch := &orchestrator.Orchestrator{
		Store:        st,
		Dispatcher:   &queueDispatcher{queue: taskQueue, store: st},
		InterRound:   time.Duration(cfg.Defaults.InterRoundSeconds) * time.Second,
		BeatBaseline: cfg.Defaults.BeatBaselineThresh,
		Log:          log,
	}

	ctl := &controller.Controller{
		Store:        st,
		Submissions:  &controller.RPCSubmissionSource{Addrs: map[string]int64{}},
		Weights:      noopWeightPublisher{},
		Starter:      epochStarter{cfg: cfg, store: st},
		PollInterval: 30 * time.Second,
		Log:          log,
	}
	ctl.OnCollectingClosed = func(tournamentID string) {
		go func() {
			if err := orch.RunTournament(context.Background(), tournamentID); err != nil {
				log.WithError(err).WithField("tournament_id", tournamentID).Error("tournament_run_failed")
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := ctl.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("controller_run_failed")
	}
}

// queueDispatcher implements orchestrator.Dispatcher by publishing the
// task and then polling the store until the resulting Run is terminal,
// matching the interface's "blocks until terminal" contract without
// requiring a separate RPC back-channel from the worker pool.
type queueDispatcher struct {
	queue *queue.AmqpQueue
	store *store.Store
}

func (d *queueDispatcher) Dispatch(ctx context.Context, task queue.Task) (model.EvaluationRun, error) {
	if err := d.queue.Produce(ctx, task); err != nil {
		return model.EvaluationRun{}, err
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return model.EvaluationRun{}, ctx.Err()
		case <-ticker.C:
			run, err := d.store.GetRun(ctx, task.SubmissionID, task.Round, task.Network, task.TestDate)
			if err == nil && run.Status.Terminal() {
				return run, nil
			}
		}
	}
}

type epochStarter struct {
	cfg   config.Config
	store *store.Store
}

func (e epochStarter) NextEpoch(ctx context.Context) (int64, model.TournamentConfig, error) {
	latest, err := e.store.GetLatest(ctx)
	epoch := int64(1)
	if err == nil {
		epoch = latest.Epoch + 1
	}
	return epoch, model.TournamentConfig{
		SubmissionWindowSeconds: e.cfg.Defaults.SubmissionWindowSec,
		RoundCount:              e.cfg.Defaults.RoundCount,
		InterRoundSeconds:       e.cfg.Defaults.InterRoundSeconds,
		BaselineRepo:            e.cfg.Defaults.BaselineRepo,
		TestNetworks:            e.cfg.Defaults.TestNetworks,
	}, nil
}

type noopWeightPublisher struct{}

func (noopWeightPublisher) PublishWeights(ctx context.Context, weights map[int64]float64) error {
	return nil
}
