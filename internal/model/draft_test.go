package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftStatus_Terminal(t *testing.T) {
	assert.False(t, StatusDraft.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusPosted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestDraftStatus_Valid(t *testing.T) {
	for _, s := range []DraftStatus{StatusDraft, StatusApproved, StatusRejected, StatusPosted, StatusFailed} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, DraftStatus("published").Valid())
	assert.False(t, DraftStatus("").Valid())
}
