package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank_ledger/internal/domain"
)

func TestWalletLocks(t *testing.T) {
	l := newWalletLocks()
	ctx := context.Background()

	release, err := l.acquire(ctx, 2, 1, 2)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(short, 3, 1)
	assert.ErrorIs(t, err, domain.ErrLedgerBusy)

	// The failed attempt must not keep wallet 3.
	release3, err := l.acquire(ctx, 3)
	require.NoError(t, err)
	release3()

	// Nor wallet 4 when it times out waiting for wallet 5.
	release5, err := l.acquire(ctx, 5)
	require.NoError(t, err)
	short2, cancel2 := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel2()
	_, err = l.acquire(short2, 5, 4)
	assert.ErrorIs(t, err, domain.ErrLedgerBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	release4, err := l.acquire(ctx, 4)
	require.NoError(t, err)
	release4()
	release5()

	done := make(chan struct{})
	go func() {
		r, err := l.acquire(ctx, 1, 2)
		assert.NoError(t, err)
		r()
		close(done)
	}()
	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken after release")
	}
}
