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

// UpsertSubmission inserts a new submission, or on a (tournament_id,
// participant_key) conflict updates the repo/commit it points at and
// resets it to pending — a participant may resubmit during the
// submission window, per spec.md §4.1. An unchanged (repo_url,
// commit_ref) pair is a no-op: status, validation_error and submitted_at
// are left exactly as stored, so a controller poll that re-observes the
// same pointer does not bump submitted_at or discard a prior validation
// result.
func (s *Store) UpsertSubmission(ctx context.Context, tournamentID, participantKey string, participantUID int64, repoURL, commitRef string) (model.Submission, error) {
	sub := model.Submission{
		ID:             uuid.NewString(),
		TournamentID:   tournamentID,
		ParticipantKey: participantKey,
		ParticipantUID: participantUID,
		RepoURL:        repoURL,
		CommitRef:      commitRef,
		Status:         model.SubmissionPending,
		SubmittedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, tournament_id, participant_key, participant_uid, repo_url, commit_ref, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tournament_id, participant_key) DO UPDATE SET
			repo_url = EXCLUDED.repo_url,
			commit_ref = EXCLUDED.commit_ref,
			status = CASE
				WHEN (submissions.repo_url, submissions.commit_ref) IS DISTINCT FROM (EXCLUDED.repo_url, EXCLUDED.commit_ref)
				THEN EXCLUDED.status
				ELSE submissions.status
			END,
			validation_error = CASE
				WHEN (submissions.repo_url, submissions.commit_ref) IS DISTINCT FROM (EXCLUDED.repo_url, EXCLUDED.commit_ref)
				THEN NULL
				ELSE submissions.validation_error
			END,
			submitted_at = CASE
				WHEN (submissions.repo_url, submissions.commit_ref) IS DISTINCT FROM (EXCLUDED.repo_url, EXCLUDED.commit_ref)
				THEN EXCLUDED.submitted_at
				ELSE submissions.submitted_at
			END
	`, sub.ID, sub.TournamentID, sub.ParticipantKey, sub.ParticipantUID, sub.RepoURL, sub.CommitRef, sub.Status, sub.SubmittedAt)
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: upsert submission: %v", errkind.ErrStore, err)
	}
	return s.GetSubmissionByKey(ctx, tournamentID, participantKey)
}

func (s *Store) GetSubmissionByKey(ctx context.Context, tournamentID string, participantKey string) (model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tournament_id, participant_key, participant_uid, repo_url, commit_ref,
		       image_digest, status, validation_error, submitted_at, validated_at
		FROM submissions
		WHERE tournament_id = $1 AND participant_key = $2
	`, tournamentID, participantKey)
	return scanSubmission(row)
}

func (s *Store) ListSubmissions(ctx context.Context, tournamentID string) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tournament_id, participant_key, participant_uid, repo_url, commit_ref,
		       image_digest, status, validation_error, submitted_at, validated_at
		FROM submissions
		WHERE tournament_id = $1
		ORDER BY submitted_at
	`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list submissions: %v", errkind.ErrStore, err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmissionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) ListValidSubmissions(ctx context.Context, tournamentID string) ([]model.Submission, error) {
	all, err := s.ListSubmissions(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	var valid []model.Submission
	for _, sub := range all {
		if sub.Status == model.SubmissionValid {
			valid = append(valid, sub)
		}
	}
	return valid, nil
}

// SetSubmissionStatus transitions a submission's status, optionally
// recording an image digest (on success) or a validation error message
// (on failure). Re-applying the same status succeeds rather than erroring;
// for valid/invalid it refreshes validated_at.
func (s *Store) SetSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus, imageDigest, validationError string) error {
	var validatedAt *time.Time
	if status == model.SubmissionValid || status == model.SubmissionInvalid {
		now := time.Now().UTC()
		validatedAt = &now
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET
			status = $2,
			image_digest = CASE WHEN $3 <> '' THEN $3 ELSE image_digest END,
			validation_error = CASE WHEN $4 <> '' THEN $4 ELSE validation_error END,
			validated_at = COALESCE($5, validated_at)
		WHERE id = $1
	`, id, status, imageDigest, validationError, validatedAt)
	if err != nil {
		return fmt.Errorf("%w: set submission status: %v", errkind.ErrStore, err)
	}
	return expectRowAffected(res, "submission", id)
}

func scanSubmission(row *sql.Row) (model.Submission, error) {
	var sub model.Submission
	var imageDigest, validationError sql.NullString
	var validatedAt sql.NullTime

	err := row.Scan(&sub.ID, &sub.TournamentID, &sub.ParticipantKey, &sub.ParticipantUID,
		&sub.RepoURL, &sub.CommitRef, &imageDigest, &sub.Status, &validationError,
		&sub.SubmittedAt, &validatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Submission{}, fmt.Errorf("%w: submission not found", errkind.ErrStore)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: scan submission: %v", errkind.ErrStore, err)
	}
	sub.ImageDigest = imageDigest.String
	sub.ValidationError = validationError.String
	if validatedAt.Valid {
		sub.ValidatedAt = &validatedAt.Time
	}
	return sub, nil
}

func scanSubmissionRows(rows *sql.Rows) (model.Submission, error) {
	var sub model.Submission
	var imageDigest, validationError sql.NullString
	var validatedAt sql.NullTime

	err := rows.Scan(&sub.ID, &sub.TournamentID, &sub.ParticipantKey, &sub.ParticipantUID,
		&sub.RepoURL, &sub.CommitRef, &imageDigest, &sub.Status, &validationError,
		&sub.SubmittedAt, &validatedAt)
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: scan submission: %v", errkind.ErrStore, err)
	}
	sub.ImageDigest = imageDigest.String
	sub.ValidationError = validationError.String
	if validatedAt.Valid {
		sub.ValidatedAt = &validatedAt.Time
	}
	return sub, nil
}
