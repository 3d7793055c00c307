// Command worker drains the evaluation-task queue and executes each task
// to completion: clone, build, run, report.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/docker/client"
	"github.com/google/go-github/v32/github"

	"github.com/narwhal-subnet/tourney/internal/config"
	"github.com/narwhal-subnet/tourney/internal/evaluation"
	"github.com/narwhal-subnet/tourney/internal/executor"
	"github.com/narwhal-subnet/tourney/internal/logging"
	"github.com/narwhal-subnet/tourney/internal/queue"
	"github.com/narwhal-subnet/tourney/internal/scoring"
	"github.com/narwhal-subnet/tourney/internal/store"
)

func main() {
	log := logging.New("worker")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config_load_failed")
	}

	st, err := store.Open(cfg.StoreDSN)
	if err != nil {
		log.WithError(err).Fatal("store_open_failed")
	}
	defer st.Close()

	builder, err := executor.NewBuilder()
	if err != nil {
		log.WithError(err).Fatal("builder_init_failed")
	}

	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		log.WithError(err).Fatal("docker_client_init_failed")
	}

	engine := scoring.NewEngine(scoring.Config{
		Weights: scoring.Weights{
			Feature:   cfg.Defaults.FeatureWeight,
			Synthetic: cfg.Defaults.SyntheticWeight,
			Novelty:   cfg.Defaults.NoveltyWeight,
		},
		BaselineFeatureTime: cfg.Defaults.BaselineFeatureTime,
		MaxFeatureTime:      cfg.Defaults.MaxFeatureTime,
		NoveltyCapRatio:     cfg.Defaults.NoveltyCapRatio,
	})

	deps := evaluation.Deps{
		Store:         st,
		Builder:       builder,
		Docker:        docker,
		Engine:        engine,
		GitHub:        github.NewClient(nil),
		DataRoot:      cfg.DataRoot,
		BuildTimeout:  cfg.BuildTimeout,
		RunTimeout:    cfg.RunTimeout,
		MemoryLimitMB: cfg.MemoryLimitMB,
		CPUQuota:      cfg.CPUQuota,
		Log:           log,
	}

	taskQueue := queue.NewAmqpQueue(cfg.BrokerURL, "tourney-evaluations")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = taskQueue.Consume(ctx, func(task queue.Task) error {
		spec := evaluation.Spec{
			SubmissionID:   task.SubmissionID,
			TournamentID:   task.TournamentID,
			ParticipantKey: task.ParticipantKey,
			RepoURL:        task.RepoURL,
			CommitRef:      task.CommitRef,
			Round:          task.Round,
			Network:        task.Network,
			TestDate:       task.TestDate,
		}
		_, runErr := evaluation.Run(ctx, deps, spec)
		if runErr != nil {
			log.WithError(runErr).WithField("submission_id", task.SubmissionID).Warn("evaluation_task_failed")
		}
		return runErr
	})
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("queue_consume_failed")
	}
}
