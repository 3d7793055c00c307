// Package evaluation implements C5: the per-(submission, round, network,
// date) unit of work that validates, builds, runs, scores and persists one
// participant's submission, then cleans up after itself.
//
// Grounded on original_source/evaluation/tasks/evaluation_task.py's step
// ordering (validate-or-skip, clone/build, run, score, persist, cleanup)
// and on codepr-narwhal's backend/runner.go RunCommitJob for the
// clone-build-run-cleanup-with-defer shape.
package evaluation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"
	"github.com/google/go-github/v32/github"
	"github.com/sirupsen/logrus"

	"github.com/narwhal-subnet/tourney/internal/errkind"
	"github.com/narwhal-subnet/tourney/internal/executor"
	"github.com/narwhal-subnet/tourney/internal/parquetio"
	"github.com/narwhal-subnet/tourney/internal/scoring"
	"github.com/narwhal-subnet/tourney/internal/store"
	"github.com/narwhal-subnet/tourney/internal/store/model"
	"github.com/narwhal-subnet/tourney/internal/validator"
)

// Spec names the unit of work a queue message carries.
type Spec struct {
	SubmissionID   string
	TournamentID   string
	ParticipantKey string
	RepoURL        string
	CommitRef      string
	Round          int
	Network        string
	TestDate       string
}

// Deps are the task's external collaborators, injected by the process
// entry point (cmd/worker) rather than reached for as globals.
type Deps struct {
	Store         *store.Store
	Builder       *executor.Builder
	Docker        *client.Client
	Engine        *scoring.Engine
	// GitHub is optional; when set, buildSubmission logs a soft warning
	// (not a hard validation failure) if the submitted repository looks
	// unreachable or empty before cloning it.
	GitHub        *github.Client
	DataRoot      string
	BuildTimeout  time.Duration
	RunTimeout    time.Duration
	MemoryLimitMB int64
	CPUQuota      float64
	Log           *logrus.Entry
}

// Run executes the full lifecycle for one evaluation task. It is safe to
// call more than once for the same Spec: an already-terminal run is
// returned as-is without re-executing the container, and a submission
// already known valid is not cloned or built again.
func Run(ctx context.Context, deps Deps, spec Spec) (model.EvaluationRun, error) {
	existing, err := deps.Store.GetRun(ctx, spec.SubmissionID, spec.Round, spec.Network, spec.TestDate)
	if err == nil && existing.Status.Terminal() {
		return existing, nil
	}

	sub, err := deps.Store.GetSubmissionByKey(ctx, spec.TournamentID, spec.ParticipantKey)
	if err != nil {
		return model.EvaluationRun{}, err
	}
	if sub.Status == model.SubmissionInvalid {
		return model.EvaluationRun{}, fmt.Errorf("%w: submission already invalid: %s", errkind.ErrValidation, sub.ValidationError)
	}

	layout := executor.NewLayout(deps.DataRoot, spec.TournamentID, spec.Round, spec.Network, spec.TestDate)
	tag := imageTag(spec)

	if sub.Status != model.SubmissionValid {
		cloneDir, buildErr := buildSubmission(ctx, deps, spec, layout)
		if cloneDir != "" {
			defer executor.Cleanup(cloneDir)
		}
		if buildErr != nil {
			_ = deps.Store.SetSubmissionStatus(ctx, sub.ID, model.SubmissionInvalid, "", buildErr.Error())
			return model.EvaluationRun{}, buildErr
		}
		if err := deps.Store.SetSubmissionStatus(ctx, sub.ID, model.SubmissionValid, tag, ""); err != nil {
			return model.EvaluationRun{}, err
		}
	}

	run, err := deps.Store.CreateRun(ctx, spec.SubmissionID, spec.Round, spec.Network, spec.TestDate)
	if err != nil {
		return model.EvaluationRun{}, err
	}

	runResult, runErr := executeContainer(ctx, deps, spec, layout)
	if runErr != nil {
		run.Status = model.RunFailed
		run.ErrorMessage = runErr.Error()
		_ = deps.Store.UpdateRun(ctx, run)
		return run, runErr
	}
	run.ExitCode = int(runResult.ExitCode)
	// The container does not separately report per-phase timing, so total
	// wall-clock is apportioned 20% feature extraction / 80% pattern
	// discovery (spec.md §9 design note).
	totalSeconds := runResult.Duration.Seconds()
	run.FeatureTimeSeconds = 0.2 * totalSeconds
	run.PatternTimeSeconds = 0.8 * totalSeconds

	if runResult.TimedOut {
		run.Status = model.RunTimeout
		run.ErrorMessage = "evaluation run exceeded wall-clock timeout"
		_ = deps.Store.UpdateRun(ctx, run)
		return run, fmt.Errorf("%w: submission %s round %d", errkind.ErrContainerTimeout, spec.SubmissionID, spec.Round)
	}
	if runResult.ExitCode != 0 {
		run.Status = model.RunFailed
		run.ErrorMessage = fmt.Sprintf("container exited %d", runResult.ExitCode)
		_ = deps.Store.UpdateRun(ctx, run)
		return run, fmt.Errorf("%w: exit code %d", errkind.ErrContainerFailure, runResult.ExitCode)
	}

	scored, scoreErr := scoreRun(deps, spec, layout, run.FeatureTimeSeconds, run.PatternTimeSeconds)
	if scoreErr != nil {
		run.Status = model.RunFailed
		run.ErrorMessage = scoreErr.Error()
		_ = deps.Store.UpdateRun(ctx, run)
		return run, scoreErr
	}

	applyScore(&run, scored)
	run.Status = model.RunCompleted
	if err := deps.Store.UpdateRun(ctx, run); err != nil {
		return run, err
	}

	if err := executor.Cleanup(layout.OutputDir(spec.ParticipantKey)); err != nil {
		deps.Log.WithError(err).Warn("output_cleanup_failed")
	}

	return run, nil
}

func buildSubmission(ctx context.Context, deps Deps, spec Spec, layout executor.Layout) (string, error) {
	if deps.GitHub != nil {
		if err := executor.CheckRepoLiveness(ctx, deps.GitHub, spec.RepoURL); err != nil {
			deps.Log.WithError(err).WithField("repo_url", spec.RepoURL).Warn("repo_liveness_check_failed")
		}
	}

	cloneDir, err := executor.CloneAt(deps.DataRoot, spec.RepoURL, spec.CommitRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errkind.ErrBuild, err)
	}

	if v, err := validator.Validate(cloneDir); err != nil {
		return cloneDir, fmt.Errorf("%w: %v", errkind.ErrValidation, err)
	} else if v != nil {
		return cloneDir, fmt.Errorf("%w: %s", errkind.ErrValidation, v.Message)
	}

	manifest, err := executor.LoadManifest(cloneDir)
	if err != nil {
		return cloneDir, fmt.Errorf("%w: %v", errkind.ErrValidation, err)
	}
	if err := executor.ApplyManifest(cloneDir, manifest); err != nil {
		return cloneDir, fmt.Errorf("%w: %v", errkind.ErrBuild, err)
	}
	if manifest != nil {
		if v, err := validator.DockerfilePolicy(cloneDir); err != nil {
			return cloneDir, fmt.Errorf("%w: %v", errkind.ErrValidation, err)
		} else if v != nil {
			return cloneDir, fmt.Errorf("%w: %s", errkind.ErrValidation, v.Message)
		}
	}

	buildCtx, cancel := context.WithTimeout(ctx, deps.BuildTimeout)
	defer cancel()

	tag := imageTag(spec)
	if err := deps.Builder.BuildImage(buildCtx, cloneDir, tag); err != nil {
		return cloneDir, fmt.Errorf("%w: %v", errkind.ErrBuild, err)
	}
	return cloneDir, nil
}

func executeContainer(ctx context.Context, deps Deps, spec Spec, layout executor.Layout) (executor.RunResult, error) {
	return executor.Run(ctx, deps.Docker, executor.RunSpec{
		Image:         imageTag(spec),
		ContainerName: fmt.Sprintf("tourney-%s-r%d", spec.ParticipantKey, spec.Round),
		InputDir:      layout.InputDir(),
		OutputDir:     layout.OutputDir(spec.ParticipantKey),
		MemoryLimitMB: deps.MemoryLimitMB,
		CPUQuota:      deps.CPUQuota,
		Timeout:       deps.RunTimeout,
	})
}

func scoreRun(deps Deps, spec Spec, layout executor.Layout, featureTimeSec, patternTimeSec float64) (scoring.Result, error) {
	patternPieces, _ := filepath.Glob(layout.PatternsGlob(spec.ParticipantKey))
	_, featErr := os.Stat(layout.FeaturesPath(spec.ParticipantKey))
	_, patErr := os.Stat(layout.PatternsPath(spec.ParticipantKey))
	if featErr != nil || (patErr != nil && len(patternPieces) == 0) {
		return scoring.Result{}, fmt.Errorf("%w: missing_output_files", errkind.ErrMissingArtifact)
	}

	transfers, err := parquetio.LoadTransfers(layout.TransfersPath())
	if err != nil {
		return scoring.Result{}, fmt.Errorf("%w: loading transfers: %v", errkind.ErrMissingArtifact, err)
	}
	groundTruth, err := parquetio.LoadGroundTruth(layout.GroundTruthPath())
	if err != nil {
		return scoring.Result{}, fmt.Errorf("%w: loading ground truth: %v", errkind.ErrMissingArtifact, err)
	}

	features, columns, err := parquetio.LoadFeatures(layout.FeaturesPath(spec.ParticipantKey))
	if err != nil {
		return scoring.Result{}, fmt.Errorf("%w: loading features: %v", errkind.ErrMissingArtifact, err)
	}
	patterns, hasSchema, err := parquetio.LoadPatterns(
		layout.PatternsPath(spec.ParticipantKey),
		patternPieces,
	)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("%w: loading patterns: %v", errkind.ErrMissingArtifact, err)
	}

	return deps.Engine.Score(scoring.Inputs{
		Features:          features,
		FeatureColumns:    columns,
		Patterns:          patterns,
		PatternsHasSchema: hasSchema,
		Transfers:         transfers,
		GroundTruth:       groundTruth,
		FeatureTimeSec:    featureTimeSec,
		PatternTimeSec:    patternTimeSec,
	}), nil
}

func applyScore(run *model.EvaluationRun, r scoring.Result) {
	run.OutputSchemaValid = r.OutputSchemaValid
	run.GTExpected = r.GTExpected
	run.GTFound = r.GTFound
	run.NoveltyValid = r.NoveltyValid
	run.NoveltyInvalid = r.NoveltyInvalid
	run.PatternsReported = r.PatternsReported
	run.FeatureScore = r.FeatureScore
	run.SyntheticScore = r.SyntheticScore
	run.NoveltyScore = r.NoveltyScore
	run.PatternExistence = r.PatternExistence
	run.FinalScore = r.FinalScore
}

func imageTag(spec Spec) string {
	return fmt.Sprintf("tourney-submission-%s:%s", spec.ParticipantKey, spec.CommitRef[:min(8, len(spec.CommitRef))])
}
