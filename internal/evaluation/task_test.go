package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageTagTruncatesCommitRef(t *testing.T) {
	tag := imageTag(Spec{ParticipantKey: "hotkey-a", CommitRef: "deadbeefcafefeed"})
	assert.Equal(t, "tourney-submission-hotkey-a:deadbeef", tag)
}

func TestImageTagHandlesShortCommitRef(t *testing.T) {
	tag := imageTag(Spec{ParticipantKey: "hotkey-a", CommitRef: "ab"})
	assert.Equal(t, "tourney-submission-hotkey-a:ab", tag)
}
