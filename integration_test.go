package tempgroup_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tempgroup "github.com/goliatone/go-tempgroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Full cycle against the real file store: assign, wait for the deadline,
// verify the revert cleaned up memory and the durable image.
func TestAssignExpireRevertCycle(t *testing.T) {
	ctx := context.Background()
	actor := tempgroup.ActorRef{ID: "console", Type: "test"}

	directory := new(MockDirectory)
	path := filepath.Join(t.TempDir(), tempgroup.DefaultStateFile)
	store := tempgroup.NewFileStore(path, tempgroup.WithStoreLogger(silentLogger{}))

	sink := &capturingSink{}
	scheduler := tempgroup.NewScheduler(store, directory,
		tempgroup.WithLogger(silentLogger{}),
		tempgroup.WithActivitySink(sink),
	)

	directory.On("CurrentGroup", ctx, "Steve").Return("member", nil).Once()
	directory.On("SetGroup", ctx, "Steve", "vip").Return(nil).Once()
	directory.On("SetGroup", mock.Anything, "Steve", "member").Return(nil).Once()

	entry, err := scheduler.Assign(ctx, actor, "Steve", "vip", "1s")
	require.NoError(t, err)
	assert.Equal(t, "member", entry.OriginalGroup)

	require.Eventually(t, func() bool {
		_, ok := store.Get("Steve")
		return !ok
	}, 5*time.Second, 25*time.Millisecond)

	reloaded, err := tempgroup.NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, reloaded)

	directory.AssertExpectations(t)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, tempgroup.ActivityEventGroupAssigned, events[0].EventType)
	assert.Equal(t, tempgroup.ActivityEventGroupReverted, events[1].EventType)
}

// Restart simulation: a fresh store and scheduler over the same image pick up
// where the previous process left off.
func TestRestartResumesPendingTimers(t *testing.T) {
	ctx := context.Background()
	actor := tempgroup.ActorRef{ID: "console", Type: "test"}
	path := filepath.Join(t.TempDir(), tempgroup.DefaultStateFile)

	// First process: set a timer, then "crash" without firing it.
	first := new(MockDirectory)
	first.On("CurrentGroup", ctx, "Steve").Return("member", nil).Once()
	first.On("SetGroup", ctx, "Steve", "vip").Return(nil).Once()

	store := tempgroup.NewFileStore(path, tempgroup.WithStoreLogger(silentLogger{}))
	scheduler := tempgroup.NewScheduler(store, first, tempgroup.WithLogger(silentLogger{}))

	_, err := scheduler.Assign(ctx, actor, "Steve", "vip", "1h")
	require.NoError(t, err)
	first.AssertExpectations(t)

	// Second process: resume arms the survivor with its remaining delay.
	second := new(MockDirectory)
	store2 := tempgroup.NewFileStore(path, tempgroup.WithStoreLogger(silentLogger{}))
	scheduler2 := tempgroup.NewScheduler(store2, second, tempgroup.WithLogger(silentLogger{}))

	scheduler2.Resume(ctx)

	remaining, err := scheduler2.Remaining("Steve")
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), remaining.Seconds(), 5)

	second.AssertNotCalled(t, "SetGroup", mock.Anything, mock.Anything, mock.Anything)
}
