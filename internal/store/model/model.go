// Package model holds the entities of §3: Tournament, Submission,
// EvaluationRun and Result, plus their status enums. These are the
// authoritative column set the read-API (out of scope here) is built
// against.
package model

import "time"

// TournamentStatus is the state-machine status of a Tournament (§4.6).
type TournamentStatus string

const (
	TournamentPending    TournamentStatus = "pending"
	TournamentCollecting TournamentStatus = "collecting"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentEvaluating TournamentStatus = "evaluating"
	TournamentCompleted  TournamentStatus = "completed"
	TournamentFailed     TournamentStatus = "failed"
)

// IsTerminal reports whether status ends the tournament's lifecycle.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentCompleted || s == TournamentFailed
}

// TournamentConfig is the configuration map carried on a Tournament row.
type TournamentConfig struct {
	SubmissionWindowSeconds int      `json:"submission_window_seconds"`
	RoundCount              int      `json:"round_count"`
	InterRoundSeconds       int      `json:"inter_round_seconds"`
	BaselineRepo            string   `json:"baseline_repo"`
	TestNetworks            []string `json:"test_networks"`
}

// Tournament is one scheduled evaluation cycle bounded by an epoch number.
type Tournament struct {
	ID                 string
	Epoch              int64
	Status             TournamentStatus
	StartedAt          *time.Time
	CompletedAt        *time.Time
	WeightsPublishedAt *time.Time
	TotalSubmissions   int
	TotalRuns          int
	Config             TournamentConfig
}

// SubmissionStatus is the lifecycle status of a Submission (§3).
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionValidating SubmissionStatus = "validating"
	SubmissionValid      SubmissionStatus = "valid"
	SubmissionInvalid    SubmissionStatus = "invalid"
)

// Submission is a participant's (repository, commit) pointer plus the
// derived built artifact.
type Submission struct {
	ID              string
	TournamentID    string
	ParticipantKey  string
	ParticipantUID  int64
	RepoURL         string
	CommitRef       string
	ImageDigest     string
	Status          SubmissionStatus
	ValidationError string
	SubmittedAt     time.Time
	ValidatedAt     *time.Time
}

// RunStatus is the lifecycle status of an EvaluationRun (§3).
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunTimeout   RunStatus = "timeout"
)

// Terminal reports whether a run status ends that run's lifecycle without
// further mutation expected.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunTimeout
}

// EvaluationRun is one execution of one submission against one
// (round, network, date) slice of the synthetic corpus.
type EvaluationRun struct {
	ID           string
	SubmissionID string
	Round        int
	Network      string
	TestDate     string // YYYY-MM-DD
	Status       RunStatus

	// Scoring inputs/outputs, see §4.4.
	GTExpected         int
	GTFound            int
	NoveltyValid       int
	NoveltyInvalid     int
	PatternsReported   int
	OutputSchemaValid  bool
	FeatureScore       float64
	SyntheticScore     float64
	NoveltyScore       float64
	PatternExistence   bool
	FinalScore         float64
	FeatureTimeSeconds float64
	PatternTimeSeconds float64

	ExitCode       int
	ErrorMessage   string
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Result is a denormalization of Runs + Submissions for one participant in
// one Tournament, rewritten atomically on finalization.
type Result struct {
	ID           string
	TournamentID string
	ParticipantKey string
	ParticipantUID int64

	MeanFeatureScore   float64
	MeanSyntheticScore float64
	MeanNoveltyScore   float64
	GTFoundTotal       int
	NoveltyValidTotal  int
	RunsCompleted      int

	FinalScore    float64
	Rank          int
	BeatBaseline  bool
	IsWinner      bool
	CalculatedAt  time.Time
}
