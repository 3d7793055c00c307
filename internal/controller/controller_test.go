package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRepoURLAcceptsCanonicalGithubURL(t *testing.T) {
	assert.True(t, validRepoURL("https://github.com/acme/subnet-miner"))
	assert.True(t, validRepoURL("https://github.com/acme/subnet-miner.git"))
}

func TestValidRepoURLRejectsNonGithubHost(t *testing.T) {
	assert.False(t, validRepoURL("https://gitlab.com/acme/subnet-miner"))
	assert.False(t, validRepoURL("http://github.com/acme/subnet-miner"))
	assert.False(t, validRepoURL("not a url"))
}

func TestValidCommitRefAcceptsHexSha(t *testing.T) {
	assert.True(t, validCommitRef("a1b2c3d"))
	assert.True(t, validCommitRef("0123456789abcdef0123456789abcdef01234567"))
}

func TestValidCommitRefAcceptsBranchName(t *testing.T) {
	assert.True(t, validCommitRef("feature/my-branch_1"))
}

func TestValidCommitRefAcceptsTooShortHexAsBranchName(t *testing.T) {
	assert.True(t, validCommitRef("abcdef"), "6 hex chars still matches the branch-name fallback pattern")
}

func TestValidCommitRefRejectsEmpty(t *testing.T) {
	assert.False(t, validCommitRef(""))
}
