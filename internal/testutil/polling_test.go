package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitForState_Timeout(t *testing.T) {
	t.Parallel()
	_, err := WaitForState(context.Background(), func() bool { return false }, func(ok bool) bool { return ok }, 20*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "timeout after 20ms waiting for bool state, last false")
}

func TestWaitForState_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	_, err := WaitForState(ctx, func() int32 {
		n := calls.Add(1)
		if n == 2 {
			cancel()
		}
		return n
	}, func(int32) bool { return false }, 5*time.Second, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForState_ReturnsAcceptedValue(t *testing.T) {
	t.Parallel()
	var n atomic.Int64
	go func() {
		for i := 0; i < 10; i++ {
			n.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()
	got, err := WaitForState(context.Background(), n.Load, func(v int64) bool { return v >= 5 }, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got, int64(5))
}
