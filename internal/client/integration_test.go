package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorewheel/internal/backup"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/server"
	"github.com/dukerupert/chorewheel/internal/tracker"
)

func setupRemote(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := server.New(db, backup.Config{}, testLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

// Wednesday of the test week.
func testClock() time.Time {
	return testWeek.AddDate(0, 0, 2).Add(9 * time.Hour)
}

func TestTrackerOverHTTP(t *testing.T) {
	_, ts := setupRemote(t)
	ctx := context.Background()

	tr := tracker.New(New(ts.URL, testLogger()), testLogger(), tracker.WithClock(testClock))
	require.NoError(t, tr.LoadAll(ctx))

	alice, err := tr.AddMember(ctx, "Alice", "#FF0000")
	require.NoError(t, err)
	bob, err := tr.AddMember(ctx, "Bob", "")
	require.NoError(t, err)

	trash, err := tr.AddChore(ctx, "Trash", 1, []int64{alice.ID, bob.ID})
	require.NoError(t, err)

	assigned := tr.AssignedMember(trash.ID, testWeek)
	require.NotNil(t, assigned)
	assert.Equal(t, alice.ID, assigned.ID)
	assert.Equal(t, bob.ID, tr.AssignedMember(trash.ID, testWeek.AddDate(0, 0, 7)).ID)

	rec, err := tr.Toggle(ctx, trash.ID, testWeek)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Completed)
	assert.False(t, rec.Pending)
	assert.True(t, tr.CompletionStatus(trash.ID, testWeek))

	// A second device sees the same state after loading.
	other := tracker.New(New(ts.URL, testLogger()), testLogger(), tracker.WithClock(testClock))
	require.NoError(t, other.LoadAll(ctx))
	assert.True(t, other.CompletionStatus(trash.ID, testWeek))
	assert.Len(t, other.Members(), 2)
	assert.Len(t, other.Roster(trash.ID), 2)

	// Reassigning the rotation changes who the server accepts.
	require.NoError(t, tr.SetAssignees(ctx, trash.ID, []int64{bob.ID}))
	assert.Equal(t, bob.ID, tr.AssignedMember(trash.ID, testWeek).ID)

	require.NoError(t, tr.DeleteChore(ctx, trash.ID))
	assert.Empty(t, tr.Templates())
}

func TestToggleConflictRestoresState(t *testing.T) {
	_, ts := setupRemote(t)
	ctx := context.Background()

	tr := tracker.New(New(ts.URL, testLogger()), testLogger(), tracker.WithClock(testClock))
	alice, err := tr.AddMember(ctx, "Alice", "")
	require.NoError(t, err)
	bob, err := tr.AddMember(ctx, "Bob", "")
	require.NoError(t, err)
	trash, err := tr.AddChore(ctx, "Trash", 1, []int64{alice.ID})
	require.NoError(t, err)
	require.NoError(t, tr.LoadAll(ctx))

	// Another device moves the rotation; this tracker still thinks Alice has it.
	remote := New(ts.URL, testLogger())
	require.NoError(t, remote.ReplaceRoster(ctx, trash.ID, []int64{bob.ID}))

	_, err = tr.Toggle(ctx, trash.ID, testWeek)
	require.ErrorIs(t, err, tracker.ErrStoreRejected)
	assert.False(t, tr.CompletionStatus(trash.ID, testWeek))
	_, present := tr.Completion(trash.ID, testWeek)
	assert.False(t, present)

	notice := tr.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, tracker.NoticeFailure, notice.Kind)
}

func TestSyncerFollowsFeed(t *testing.T) {
	srv, ts := setupRemote(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := tracker.New(New(ts.URL, testLogger()), testLogger(), tracker.WithClock(testClock))
	alice, err := writer.AddMember(ctx, "Alice", "")
	require.NoError(t, err)
	trash, err := writer.AddChore(ctx, "Trash", 1, []int64{alice.ID})
	require.NoError(t, err)
	require.NoError(t, writer.LoadAll(ctx))

	rc := New(ts.URL, testLogger())
	reader := tracker.New(rc, testLogger(), tracker.WithClock(testClock))
	require.NoError(t, reader.LoadAll(ctx))

	syncer := tracker.NewSyncer(reader, rc, time.Hour, testLogger())
	require.NoError(t, syncer.Start(ctx))
	defer syncer.Stop()
	require.Eventually(t, func() bool {
		return syncer.Subscribed() && srv.Hub().ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = writer.Toggle(ctx, trash.ID, testWeek)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return reader.CompletionStatus(trash.ID, testWeek)
	}, 3*time.Second, 20*time.Millisecond)

	_, err = writer.AddMember(ctx, "Bob", "")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return len(reader.Members()) == 2
	}, 3*time.Second, 20*time.Millisecond)
}
