package client

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEnsureReady_ImmediateSuccess(t *testing.T) {
	ran := false
	err := EnsureReady(context.Background(),
		func() bool { return true },
		func() error { ran = true; return nil },
		3, time.Millisecond)
	require.NoError(t, err)
	require.True(t, ran)
}

func TestEnsureReady_SucceedsAfterRetries(t *testing.T) {
	probes := 0
	ran := false
	err := EnsureReady(context.Background(),
		func() bool { probes++; return probes >= 3 },
		func() error { ran = true; return nil },
		10, time.Millisecond)
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, 3, probes)
}

func TestEnsureReady_Exhaustion(t *testing.T) {
	ran := false
	err := EnsureReady(context.Background(),
		func() bool { return false },
		func() error { ran = true; return nil },
		4, time.Millisecond)
	require.ErrorIs(t, err, ErrNotReady)
	require.False(t, ran)
}

func TestEnsureReady_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := EnsureReady(ctx,
		func() bool { return false },
		func() error { return nil },
		100, 50*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, ErrNotReady))
}

func TestEnsureReady_ActionErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	err := EnsureReady(context.Background(),
		func() bool { return true },
		func() error { return boom },
		3, time.Millisecond)
	require.ErrorIs(t, err, boom)
}
