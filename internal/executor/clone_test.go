package executor

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
)

func TestCheckoutOptionsForHexSHAPinsExactCommit(t *testing.T) {
	opts := checkoutOptionsFor("deadbeefcafefeed0011223344556677deadbee")
	assert.Equal(t, plumbing.NewHash("deadbeefcafefeed0011223344556677deadbee"), opts.Hash)
	assert.Empty(t, opts.Branch)
}

func TestCheckoutOptionsForShortHexSHAPinsExactCommit(t *testing.T) {
	opts := checkoutOptionsFor("deadbee")
	assert.Equal(t, plumbing.NewHash("deadbee"), opts.Hash)
	assert.Empty(t, opts.Branch)
}

func TestCheckoutOptionsForBranchNameChecksOutBranch(t *testing.T) {
	opts := checkoutOptionsFor("feature/my-submission")
	assert.True(t, opts.Hash.IsZero())
	assert.Equal(t, plumbing.NewBranchReferenceName("feature/my-submission"), opts.Branch)
}

func TestCheckoutOptionsForMainBranchChecksOutBranch(t *testing.T) {
	opts := checkoutOptionsFor("main")
	assert.True(t, opts.Hash.IsZero())
	assert.Equal(t, plumbing.NewBranchReferenceName("main"), opts.Branch)
}
