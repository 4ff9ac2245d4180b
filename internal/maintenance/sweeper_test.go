package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/geocam/internal/gateway"
	"github.com/starford/geocam/internal/photostore"
	"github.com/starford/geocam/internal/testutil"
)

func TestSweepRemovesOnlyOldOrphans(t *testing.T) {
	ctx := context.Background()
	_, files := testutil.TestFiles(t)
	gw := gateway.New(files)
	store := photostore.New(testutil.TestKV(t), gw)

	kept, err := store.Commit(ctx, testutil.JPEG, nil)
	require.NoError(t, err)
	orphan, err := gw.WriteFileBytes(ctx, testutil.PNG)
	require.NoError(t, err)

	// Everything on disk is younger than the grace period.
	s := NewSweeper(gw, store, WithGrace(time.Hour))
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	later := NewSweeper(gw, store, WithGrace(time.Minute), WithClock(func() time.Time {
		return time.Now().Add(2 * time.Hour)
	}))
	n, err = later.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	listed, err := gw.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, kept.FilePath, listed[0].Path)
	assert.NotEqual(t, orphan, listed[0].Path)
}

func TestSweepEmpty(t *testing.T) {
	_, files := testutil.TestFiles(t)
	gw := gateway.New(files)
	store := photostore.New(testutil.TestKV(t), gw)

	n, err := NewSweeper(gw, store, WithGrace(0)).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(DefaultSchedule))
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.Error(t, ValidateSchedule("every tuesday"))
}

func TestRunStopsWithContext(t *testing.T) {
	_, files := testutil.TestFiles(t)
	gw := gateway.New(files)
	s := NewSweeper(gw, photostore.New(testutil.TestKV(t), gw))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, DefaultSchedule) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	_, files := testutil.TestFiles(t)
	gw := gateway.New(files)
	s := NewSweeper(gw, photostore.New(testutil.TestKV(t), gw))
	assert.Error(t, s.Run(context.Background(), "nope"))
}
