package core

import (
	"sync"
	"testing"
)

func gapBlock(t *testing.T, seed byte, height uint64, previous BlockHash) *TxBlock {
	t.Helper()
	var account Account
	account[0] = seed
	return NewTxBlock(OpcodeSend, 0, 0, 1600000000, height, account, previous, account, NewBalance(0), [32]byte{}, nil)
}

func TestGapCacheResolveResubmitsWaiters(t *testing.T) {
	var mu sync.Mutex
	var resubmitted []Block
	g := NewGapCache(func(b Block) {
		mu.Lock()
		resubmitted = append(resubmitted, b)
		mu.Unlock()
	})

	missing := Blake2b256([]byte("missing-previous"))
	waiter := gapBlock(t, 1, 5, missing)
	g.Add(waiter, NewError(ErrBlockGapPrevious, "missing previous"))

	if got := g.Size(); got != 1 {
		t.Fatalf("expected 1 cached entry, got %d", got)
	}

	g.Resolve(missing)

	mu.Lock()
	defer mu.Unlock()
	if len(resubmitted) != 1 || resubmitted[0].Hash() != waiter.Hash() {
		t.Fatalf("expected waiter to be resubmitted, got %d entries", len(resubmitted))
	}
	if got := g.Size(); got != 0 {
		t.Fatalf("expected cache to drain after resolve, got %d", got)
	}
}

func TestGapCacheEvictsOldestOnPerAccountCap(t *testing.T) {
	g := NewGapCache(func(Block) {})
	var account Account
	account[0] = 9

	for i := 0; i < GapCachePerAccountLimit+4; i++ {
		missing := Blake2b256([]byte{byte(i)})
		b := NewTxBlock(OpcodeSend, 0, 0, 1600000000, uint64(i), account, missing, account, NewBalance(0), [32]byte{}, nil)
		g.Add(b, NewError(ErrBlockGapPrevious, "missing previous"))
	}

	if got := g.Size(); got != GapCachePerAccountLimit {
		t.Fatalf("expected cache capped at %d for one account, got %d", GapCachePerAccountLimit, got)
	}
}
