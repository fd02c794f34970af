package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thevladbog/idento-sub000/internal/checkin"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "db", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	records := []checkin.Record{
		{SessionID: "s1", EventID: "ev1", Code: "A", AttendeeID: "1", Status: checkin.StatusSuccess, Message: checkin.MsgCheckedIn, At: base},
		{SessionID: "s1", EventID: "ev1", Code: "A", AttendeeID: "1", Status: checkin.StatusWarning, Message: checkin.MsgAlreadyCheckedIn, At: base.Add(time.Minute)},
		{SessionID: "s1", EventID: "ev1", Code: "Z", Status: checkin.StatusError, Message: checkin.MsgNotFound, At: base.Add(2 * time.Minute)},
		{SessionID: "s2", EventID: "ev2", Code: "B", AttendeeID: "9", Status: checkin.StatusSuccess, Message: checkin.MsgCheckedIn, At: base.Add(3 * time.Minute)},
	}
	for _, r := range records {
		require.NoError(t, j.Record(ctx, r))
	}

	entries, err := j.Recent(ctx, "ev1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Z", entries[0].Code)
	assert.Equal(t, "", entries[0].AttendeeID)
	assert.Equal(t, "success", entries[2].Status)

	all, err := j.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ev2", all[0].EventID)

	counts, err := j.Counts(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, map[checkin.Status]int{
		checkin.StatusSuccess: 1,
		checkin.StatusWarning: 1,
		checkin.StatusError:   1,
	}, counts)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, checkin.Record{EventID: "ev1", Code: "A", Status: checkin.StatusSuccess, At: time.Now()}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Recent(ctx, "ev1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
