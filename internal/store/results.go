package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhal-subnet/tourney/internal/errkind"
	"github.com/narwhal-subnet/tourney/internal/store/model"
)

// ReplaceResults atomically drops any existing results for a tournament
// and inserts the freshly computed set, mirroring
// delete_results_by_tournament followed by per-row create_result — done
// here in one transaction so a crash mid-recompute never leaves a stale
// partial ranking visible.
func (s *Store) ReplaceResults(ctx context.Context, tournamentID string, results []model.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin results tx: %v", errkind.ErrStore, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("%w: delete results: %v", errkind.ErrStore, err)
	}

	now := time.Now().UTC()
	for _, r := range results {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.TournamentID = tournamentID
		r.CalculatedAt = now
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO results (
				id, tournament_id, participant_key, participant_uid,
				mean_feature_score, mean_synthetic_score, mean_novelty_score,
				gt_found_total, novelty_valid_total, runs_completed,
				final_score, rank, beat_baseline, is_winner, calculated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, r.ID, r.TournamentID, r.ParticipantKey, r.ParticipantUID,
			r.MeanFeatureScore, r.MeanSyntheticScore, r.MeanNoveltyScore,
			r.GTFoundTotal, r.NoveltyValidTotal, r.RunsCompleted,
			r.FinalScore, r.Rank, r.BeatBaseline, r.IsWinner, r.CalculatedAt); err != nil {
			return fmt.Errorf("%w: insert result: %v", errkind.ErrStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit results tx: %v", errkind.ErrStore, err)
	}
	return nil
}

func (s *Store) GetResults(ctx context.Context, tournamentID string) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tournament_id, participant_key, participant_uid,
		       mean_feature_score, mean_synthetic_score, mean_novelty_score,
		       gt_found_total, novelty_valid_total, runs_completed,
		       final_score, rank, beat_baseline, is_winner, calculated_at
		FROM results
		WHERE tournament_id = $1
		ORDER BY rank
	`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("%w: get results: %v", errkind.ErrStore, err)
	}
	defer rows.Close()

	var out []model.Result
	for rows.Next() {
		var r model.Result
		if err := rows.Scan(&r.ID, &r.TournamentID, &r.ParticipantKey, &r.ParticipantUID,
			&r.MeanFeatureScore, &r.MeanSyntheticScore, &r.MeanNoveltyScore,
			&r.GTFoundTotal, &r.NoveltyValidTotal, &r.RunsCompleted,
			&r.FinalScore, &r.Rank, &r.BeatBaseline, &r.IsWinner, &r.CalculatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan result: %v", errkind.ErrStore, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
