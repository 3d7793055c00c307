// Package errkind defines the closed set of error kinds the orchestration
// engine distinguishes between when deciding how to react to a failure:
// localize it on a Run/Submission, retry it, or escalate a Tournament to
// failed.
package errkind

import "errors"

var (
	// ErrValidation means C3 rejected a submission. Recoverable by the
	// participant on resubmission.
	ErrValidation = errors.New("validation_error")

	// ErrBuild means a clone or image build failed.
	ErrBuild = errors.New("build_error")

	// ErrContainerTimeout means a single run exceeded its wall-clock budget.
	ErrContainerTimeout = errors.New("container_timeout")

	// ErrContainerFailure means a single run exited non-zero.
	ErrContainerFailure = errors.New("container_failure")

	// ErrMissingArtifact means a run exited zero but expected outputs were
	// absent or unreadable. Treated as ErrContainerFailure by callers.
	ErrMissingArtifact = errors.New("missing_artifact")

	// ErrScoringGate means G1 or G2 tripped.
	ErrScoringGate = errors.New("scoring_gate_failure")

	// ErrStore wraps a store adapter failure. Store operations are not
	// retried with backoff; the error propagates to the caller.
	ErrStore = errors.New("store_error")

	// ErrRPC means a participant RPC call failed. Logged and the
	// participant is skipped for this poll only.
	ErrRPC = errors.New("rpc_error")

	// ErrWeightPublish means the on-chain weight publish call failed.
	ErrWeightPublish = errors.New("weight_publish_error")
)
