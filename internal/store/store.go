// Package store implements C1: the persistence layer behind tournaments,
// submissions, evaluation runs and results.
//
// Grounded on original_source/evaluation/repositories/tournament_repository.py
// for the operation set, and on r3e-network-service_layer's
// packages/com.r3e.services.gasbank/store_postgres.go for the idiomatic Go
// shape: a *sql.DB held in a struct, context.Context threaded through every
// call, $N placeholders, uuid.NewString() IDs and time.Now().UTC() stamps.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/narwhal-subnet/tourney/internal/errkind"
	"github.com/narwhal-subnet/tourney/internal/store/model"
)

// Store is a PostgreSQL-backed implementation of C1's operations.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store: %v", errkind.ErrStore, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateTournament(ctx context.Context, epoch int64, cfg model.TournamentConfig) (model.Tournament, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return model.Tournament{}, fmt.Errorf("%w: marshal config: %v", errkind.ErrStore, err)
	}

	startedAt := time.Now().UTC()
	t := model.Tournament{
		ID:        uuid.NewString(),
		Epoch:     epoch,
		Status:    model.TournamentPending,
		StartedAt: &startedAt,
		Config:    cfg,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tournaments (id, epoch, status, started_at, config)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Epoch, t.Status, t.StartedAt, cfgJSON)
	if err != nil {
		return model.Tournament{}, fmt.Errorf("%w: insert tournament: %v", errkind.ErrStore, err)
	}
	return t, nil
}

// GetActive returns the tournament currently in a non-terminal state, if
// any. At most one may exist at a time (spec.md invariant 1).
func (s *Store) GetActive(ctx context.Context) (model.Tournament, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, epoch, status, started_at, completed_at, weights_published_at,
		       total_submissions, total_runs, config
		FROM tournaments
		WHERE status NOT IN ('completed', 'failed')
		ORDER BY started_at DESC
		LIMIT 1
	`)
	return scanTournament(row)
}

func (s *Store) GetLatest(ctx context.Context) (model.Tournament, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, epoch, status, started_at, completed_at, weights_published_at,
		       total_submissions, total_runs, config
		FROM tournaments
		ORDER BY started_at DESC
		LIMIT 1
	`)
	return scanTournament(row)
}

func (s *Store) GetByEpoch(ctx context.Context, epoch int64) (model.Tournament, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, epoch, status, started_at, completed_at, weights_published_at,
		       total_submissions, total_runs, config
		FROM tournaments
		WHERE epoch = $1
	`, epoch)
	return scanTournament(row)
}

func (s *Store) UpdateTournamentStatus(ctx context.Context, id string, status model.TournamentStatus) error {
	var completedAt *time.Time
	if status.IsTerminal() {
		now := time.Now().UTC()
		completedAt = &now
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tournaments SET status = $2, completed_at = COALESCE($3, completed_at)
		WHERE id = $1
	`, id, status, completedAt)
	if err != nil {
		return fmt.Errorf("%w: update tournament status: %v", errkind.ErrStore, err)
	}
	return expectRowAffected(res, "tournament", id)
}

func (s *Store) MarkWeightsPublished(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tournaments SET weights_published_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: mark weights published: %v", errkind.ErrStore, err)
	}
	return expectRowAffected(res, "tournament", id)
}

func scanTournament(row *sql.Row) (model.Tournament, error) {
	var t model.Tournament
	var cfgJSON []byte
	var startedAt, completedAt, weightsPublishedAt sql.NullTime

	err := row.Scan(&t.ID, &t.Epoch, &t.Status, &startedAt, &completedAt, &weightsPublishedAt,
		&t.TotalSubmissions, &t.TotalRuns, &cfgJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tournament{}, fmt.Errorf("%w: tournament not found", errkind.ErrStore)
	}
	if err != nil {
		return model.Tournament{}, fmt.Errorf("%w: scan tournament: %v", errkind.ErrStore, err)
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if weightsPublishedAt.Valid {
		t.WeightsPublishedAt = &weightsPublishedAt.Time
	}
	if err := json.Unmarshal(cfgJSON, &t.Config); err != nil {
		return model.Tournament{}, fmt.Errorf("%w: unmarshal config: %v", errkind.ErrStore, err)
	}
	return t, nil
}

func expectRowAffected(res sql.Result, kind string, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", errkind.ErrStore, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s not found", errkind.ErrStore, kind, id)
	}
	return nil
}
