package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeoStatusLabel(t *testing.T) {
	assert.Equal(t, "Planning", BeoStatusPlanning.Label())
	assert.Equal(t, "Sent to Kanit", BeoStatusSentToKanit.Label())
	assert.Equal(t, "Approved", BeoStatusApproved.Label())
	assert.Equal(t, "Needs Revision", BeoStatusNeedsRevision.Label())
	assert.Equal(t, "UNKNOWN", BeoStatus("UNKNOWN").Label())
}

func TestCanSend(t *testing.T) {
	assert.True(t, canSend(BeoStatusPlanning))
	assert.True(t, canSend(BeoStatusNeedsRevision))
	assert.False(t, canSend(BeoStatusSentToKanit))
	assert.False(t, canSend(BeoStatusApproved))
}
