package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/narwhal-subnet/tourney/internal/store/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func TestCreateTournamentInsertsPendingStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO tournaments`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cfg := model.TournamentConfig{RoundCount: 3, TestNetworks: []string{"mainnet"}}
	tour, err := s.CreateTournament(context.Background(), 7, cfg)
	require.NoError(t, err)
	require.Equal(t, model.TournamentPending, tour.Status)
	require.Equal(t, int64(7), tour.Epoch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveReturnsNonTerminalTournament(t *testing.T) {
	s, mock := newMockStore(t)

	cfgJSON := []byte(`{"round_count":2,"test_networks":["mainnet"]}`)
	rows := sqlmock.NewRows([]string{
		"id", "epoch", "status", "started_at", "completed_at", "weights_published_at",
		"total_submissions", "total_runs", "config",
	}).AddRow("t1", int64(5), model.TournamentInProgress, time.Now().UTC(), nil, nil, 3, 6, cfgJSON)

	mock.ExpectQuery(`SELECT id, epoch, status`).WillReturnRows(rows)

	tour, err := s.GetActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.TournamentInProgress, tour.Status)
	require.Equal(t, 2, tour.Config.RoundCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTournamentStatusSetsCompletedAtOnTerminal(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE tournaments SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateTournamentStatus(context.Background(), "t1", model.TournamentCompleted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTournamentStatusNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE tournaments SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateTournamentStatus(context.Background(), "missing", model.TournamentFailed)
	require.Error(t, err)
}

func TestUpsertSubmissionThenFetchByKey(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO submissions`).WillReturnResult(sqlmock.NewResult(1, 1))
	rows := sqlmock.NewRows([]string{
		"id", "tournament_id", "participant_key", "participant_uid", "repo_url", "commit_ref",
		"image_digest", "status", "validation_error", "submitted_at", "validated_at",
	}).AddRow("s1", "t1", "hotkey-a", int64(42), "https://github.com/x/y", "deadbeef",
		nil, model.SubmissionPending, nil, time.Now().UTC(), nil)
	mock.ExpectQuery(`SELECT id, tournament_id, participant_key`).WillReturnRows(rows)

	sub, err := s.UpsertSubmission(context.Background(), "t1", "hotkey-a", 42, "https://github.com/x/y", "deadbeef")
	require.NoError(t, err)
	require.Equal(t, model.SubmissionPending, sub.Status)
	require.Equal(t, int64(42), sub.ParticipantUID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubmissionGuardsUnchangedPointerFromBumpingState(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`(?s)ON CONFLICT \(tournament_id, participant_key\) DO UPDATE SET.*IS DISTINCT FROM`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	rows := sqlmock.NewRows([]string{
		"id", "tournament_id", "participant_key", "participant_uid", "repo_url", "commit_ref",
		"image_digest", "status", "validation_error", "submitted_at", "validated_at",
	}).AddRow("s1", "t1", "hotkey-a", int64(42), "https://github.com/x/y", "deadbeef",
		"tourney-submission-hotkey-a:deadbeef", model.SubmissionValid, nil, time.Now().UTC(), time.Now().UTC())
	mock.ExpectQuery(`SELECT id, tournament_id, participant_key`).WillReturnRows(rows)

	sub, err := s.UpsertSubmission(context.Background(), "t1", "hotkey-a", 42, "https://github.com/x/y", "deadbeef")
	require.NoError(t, err)
	require.Equal(t, model.SubmissionValid, sub.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceResultsIsTransactional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM results WHERE tournament_id`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO results`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.ReplaceResults(context.Background(), "t1", []model.Result{
		{ParticipantKey: "hotkey-a", FinalScore: 0.8, Rank: 1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
