package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhal-subnet/tourney/internal/errkind"
	"github.com/narwhal-subnet/tourney/internal/store/model"
)

func (s *Store) CreateRun(ctx context.Context, submissionID string, round int, network, testDate string) (model.EvaluationRun, error) {
	startedAt := time.Now().UTC()
	run := model.EvaluationRun{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Round:        round,
		Network:      network,
		TestDate:     testDate,
		Status:       model.RunRunning,
		StartedAt:    &startedAt,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_runs (id, submission_id, round, network, test_date, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, run.SubmissionID, run.Round, run.Network, run.TestDate, run.Status, run.StartedAt)
	if err != nil {
		return model.EvaluationRun{}, fmt.Errorf("%w: create run: %v", errkind.ErrStore, err)
	}
	return run, nil
}

// GetRun finds an existing run for (submission, round, network, date) if
// one exists, so a retried evaluation task can resume rather than double
// count it.
func (s *Store) GetRun(ctx context.Context, submissionID string, round int, network, testDate string) (model.EvaluationRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, submission_id, round, network, test_date, status,
		       gt_expected, gt_found, novelty_valid, novelty_invalid, patterns_reported,
		       output_schema_valid, feature_score, synthetic_score, novelty_score,
		       pattern_existence, final_score, feature_time_seconds, pattern_time_seconds,
		       exit_code, error_message, started_at, completed_at
		FROM evaluation_runs
		WHERE submission_id = $1 AND round = $2 AND network = $3 AND test_date = $4
	`, submissionID, round, network, testDate)
	return scanRun(row)
}

func (s *Store) UpdateRun(ctx context.Context, run model.EvaluationRun) error {
	var completedAt *time.Time
	if run.Status.Terminal() {
		now := time.Now().UTC()
		completedAt = &now
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE evaluation_runs SET
			status = $2, gt_expected = $3, gt_found = $4, novelty_valid = $5,
			novelty_invalid = $6, patterns_reported = $7, output_schema_valid = $8,
			feature_score = $9, synthetic_score = $10, novelty_score = $11,
			pattern_existence = $12, final_score = $13, feature_time_seconds = $14,
			pattern_time_seconds = $15, exit_code = $16, error_message = $17,
			completed_at = COALESCE($18, completed_at)
		WHERE id = $1
	`, run.ID, run.Status, run.GTExpected, run.GTFound, run.NoveltyValid, run.NoveltyInvalid,
		run.PatternsReported, run.OutputSchemaValid, run.FeatureScore, run.SyntheticScore,
		run.NoveltyScore, run.PatternExistence, run.FinalScore, run.FeatureTimeSeconds,
		run.PatternTimeSeconds, run.ExitCode, run.ErrorMessage, completedAt)
	if err != nil {
		return fmt.Errorf("%w: update run: %v", errkind.ErrStore, err)
	}
	return expectRowAffected(res, "evaluation_run", run.ID)
}

func (s *Store) ListRunsBySubmission(ctx context.Context, submissionID string) ([]model.EvaluationRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, round, network, test_date, status,
		       gt_expected, gt_found, novelty_valid, novelty_invalid, patterns_reported,
		       output_schema_valid, feature_score, synthetic_score, novelty_score,
		       pattern_existence, final_score, feature_time_seconds, pattern_time_seconds,
		       exit_code, error_message, started_at, completed_at
		FROM evaluation_runs
		WHERE submission_id = $1
		ORDER BY round
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", errkind.ErrStore, err)
	}
	defer rows.Close()

	var out []model.EvaluationRun
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row *sql.Row) (model.EvaluationRun, error) {
	var r model.EvaluationRun
	var startedAt, completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&r.ID, &r.SubmissionID, &r.Round, &r.Network, &r.TestDate, &r.Status,
		&r.GTExpected, &r.GTFound, &r.NoveltyValid, &r.NoveltyInvalid, &r.PatternsReported,
		&r.OutputSchemaValid, &r.FeatureScore, &r.SyntheticScore, &r.NoveltyScore,
		&r.PatternExistence, &r.FinalScore, &r.FeatureTimeSeconds, &r.PatternTimeSeconds,
		&r.ExitCode, &errMsg, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EvaluationRun{}, fmt.Errorf("%w: run not found", errkind.ErrStore)
	}
	if err != nil {
		return model.EvaluationRun{}, fmt.Errorf("%w: scan run: %v", errkind.ErrStore, err)
	}
	r.ErrorMessage = errMsg.String
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

func scanRunRows(rows *sql.Rows) (model.EvaluationRun, error) {
	var r model.EvaluationRun
	var startedAt, completedAt sql.NullTime
	var errMsg sql.NullString

	err := rows.Scan(&r.ID, &r.SubmissionID, &r.Round, &r.Network, &r.TestDate, &r.Status,
		&r.GTExpected, &r.GTFound, &r.NoveltyValid, &r.NoveltyInvalid, &r.PatternsReported,
		&r.OutputSchemaValid, &r.FeatureScore, &r.SyntheticScore, &r.NoveltyScore,
		&r.PatternExistence, &r.FinalScore, &r.FeatureTimeSeconds, &r.PatternTimeSeconds,
		&r.ExitCode, &errMsg, &startedAt, &completedAt)
	if err != nil {
		return model.EvaluationRun{}, fmt.Errorf("%w: scan run: %v", errkind.ErrStore, err)
	}
	r.ErrorMessage = errMsg.String
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}
