package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"bank_ledger/internal/domain"
)

// walletLocks holds one weight-1 semaphore per wallet id. Multi-wallet
// acquisitions go in ascending id order so two transfers over the same pair
// can never hold one wallet each and wait on the other.
type walletLocks struct {
	mu   sync.Mutex
	sems map[uint]*semaphore.Weighted
}

func newWalletLocks() *walletLocks {
	return &walletLocks{sems: make(map[uint]*semaphore.Weighted)}
}

func (l *walletLocks) sem(id uint) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[id]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.sems[id] = s
	}
	return s
}

// acquire blocks until every id is held or ctx is done. On ctx expiry nothing
// stays held and the error matches domain.ErrLedgerBusy.
func (l *walletLocks) acquire(ctx context.Context, ids ...uint) (func(), error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*semaphore.Weighted, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, id := range ids {
		s := l.sem(id)
		if err := s.Acquire(ctx, 1); err != nil {
			release()
			return nil, fmt.Errorf("%w: waiting for wallet %d: %w", domain.ErrLedgerBusy, id, err)
		}
		held = append(held, s)
	}
	return release, nil
}
