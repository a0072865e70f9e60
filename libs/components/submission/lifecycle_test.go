package submission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formvault/formvault/libs/components/envelope"
)

func newTestSubmission() *FormSubmission {
	return NewFormSubmission(
		"55555555-5555-5555-5555-555555555555",
		envelope.Envelope{EncryptedData: "ZGF0YQ==", EncryptedKey: "a2V5"},
		Metadata{IPAddress: "203.0.113.7"},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
	)
}

func TestNewFormSubmission(t *testing.T) {
	sub := newTestSubmission()

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, StatusNew, sub.Status())
	assert.Nil(t, sub.FailureReason())
	assert.Equal(t, time.UTC, sub.CreatedAt.Location())
	assert.Equal(t, 11, sub.CreatedAt.Hour())
	assert.NotEqual(t, sub.ID, newTestSubmission().ID)
}

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusNew, StatusProcessing, StatusDelivered, StatusFailed, StatusArchived}
	allowed := map[Status]map[Status]bool{
		StatusNew:        {StatusProcessing: true},
		StatusProcessing: {StatusDelivered: true, StatusFailed: true},
		StatusDelivered:  {StatusArchived: true},
		StatusFailed:     {StatusProcessing: true, StatusArchived: true},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestHappyPathLifecycle(t *testing.T) {
	sub := newTestSubmission()

	require.NoError(t, sub.MarkProcessing())
	require.NoError(t, sub.MarkDelivered())
	require.NoError(t, sub.Archive())
	assert.Equal(t, StatusArchived, sub.Status())
	assert.Nil(t, sub.FailureReason())
}

func TestFailureReasonFollowsStatus(t *testing.T) {
	sub := newTestSubmission()
	require.NoError(t, sub.MarkProcessing())
	require.NoError(t, sub.MarkFailed("status code 503"))

	reason := sub.FailureReason()
	require.NotNil(t, reason)
	assert.Equal(t, "status code 503", *reason)

	*reason = "mutated"
	assert.Equal(t, "status code 503", *sub.FailureReason())

	require.NoError(t, sub.MarkProcessing())
	assert.Nil(t, sub.FailureReason())
}

func TestInvalidTransitionLeavesSubmissionUntouched(t *testing.T) {
	sub := newTestSubmission()

	err := sub.MarkDelivered()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusNew, terr.From)
	assert.Equal(t, StatusDelivered, terr.To)
	assert.Equal(t, StatusNew, sub.Status())

	assert.ErrorIs(t, sub.Archive(), ErrInvalidTransition)
	assert.ErrorIs(t, sub.MarkFailed("nope"), ErrInvalidTransition)
	assert.Nil(t, sub.FailureReason())
}

func TestArchivedIsTerminal(t *testing.T) {
	sub := newTestSubmission()
	require.NoError(t, sub.MarkProcessing())
	require.NoError(t, sub.MarkFailed("boom"))
	require.NoError(t, sub.Archive())

	assert.ErrorIs(t, sub.MarkProcessing(), ErrInvalidTransition)
	assert.ErrorIs(t, sub.Archive(), ErrInvalidTransition)
	assert.Equal(t, StatusArchived, sub.Status())
}

func TestRestoreFormSubmission(t *testing.T) {
	reason := "status code 500"
	snap := newTestSubmission().Snapshot()
	snap.Status = StatusFailed
	snap.FailureReason = &reason

	sub, err := RestoreFormSubmission(snap)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, sub.Status())
	assert.Equal(t, reason, *sub.FailureReason())

	bad := snap
	bad.FailureReason = nil
	_, err = RestoreFormSubmission(bad)
	assert.Error(t, err)

	bad = snap
	bad.Status = StatusDelivered
	_, err = RestoreFormSubmission(bad)
	assert.Error(t, err)

	bad = snap
	bad.Status = "pending"
	_, err = RestoreFormSubmission(bad)
	assert.Error(t, err)

	bad = snap
	bad.EncryptedKey = ""
	_, err = RestoreFormSubmission(bad)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" Delivered ")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, status)

	_, err = ParseStatus("unknown")
	assert.Error(t, err)
}

func TestToDTOOmitsReasonUnlessFailed(t *testing.T) {
	sub := newTestSubmission()
	dto := sub.ToDTO()
	assert.Equal(t, StatusNew, dto["status"])
	assert.NotContains(t, dto, "failureReason")

	require.NoError(t, sub.MarkProcessing())
	require.NoError(t, sub.MarkFailed("timeout"))
	assert.Equal(t, "timeout", sub.ToDTO()["failureReason"])
}
