package app

import (
	"testing"

	"github.com/raicore/raicore/core"
)

type recordingSubscriber struct {
	blocks   []core.Block
	forks    []core.ForkRecord
	confirms int
}

func (r *recordingSubscriber) OnBlock(b core.Block)                                   { r.blocks = append(r.blocks, b) }
func (r *recordingSubscriber) OnFork(record core.ForkRecord)                          { r.forks = append(r.forks, record) }
func (r *recordingSubscriber) OnConfirm(account core.Account, height uint64, b core.Block) { r.confirms++ }

func testBlock(account core.Account, height uint64) core.Block {
	return core.NewTxBlock(core.OpcodeSend, 0, 0, 1600000000, height, account, core.BlockHash{}, account, core.Balance{}, [32]byte{}, nil)
}

func TestAfterSubscribeReportsFirstInterestOnly(t *testing.T) {
	s := NewSubscriptions()
	sub := &recordingSubscriber{}
	var account core.Account
	account[0] = 1

	if first := s.AfterSubscribe(sub, account); !first {
		t.Fatalf("expected the first subscription to report first=true")
	}
	var other core.Account
	other[0] = 2
	if first := s.AfterSubscribe(sub, other); first {
		t.Fatalf("expected a second interest from the same subscriber to report first=false")
	}
}

func TestOnBlockObserverNotifiesOnlyInterestedSubscribers(t *testing.T) {
	s := NewSubscriptions()
	interested := &recordingSubscriber{}
	uninterested := &recordingSubscriber{}
	var watched, other core.Account
	watched[0], other[0] = 1, 2

	s.AfterSubscribe(interested, watched)
	s.AfterSubscribe(uninterested, other)

	b := testBlock(watched, 1)
	s.OnBlockObserver(core.BlockProcessResult{}, b)

	if len(interested.blocks) != 1 {
		t.Fatalf("expected the interested subscriber to be notified once, got %d", len(interested.blocks))
	}
	if len(uninterested.blocks) != 0 {
		t.Fatalf("expected the uninterested subscriber not to be notified")
	}
}

func TestOnBlockObserverSkipsErroredResults(t *testing.T) {
	s := NewSubscriptions()
	sub := &recordingSubscriber{}
	var account core.Account
	account[0] = 1
	s.AfterSubscribe(sub, account)

	s.OnBlockObserver(core.BlockProcessResult{Error: core.NewError(core.ErrBlockFork, "conflict")}, testBlock(account, 1))

	if len(sub.blocks) != 0 {
		t.Fatalf("expected no notification for an errored result")
	}
}

func TestPreUnsubscribeDropsInterestAndNotifications(t *testing.T) {
	s := NewSubscriptions()
	sub := &recordingSubscriber{}
	var account core.Account
	account[0] = 1
	s.AfterSubscribe(sub, account)

	s.PreUnsubscribe(sub, account)
	s.OnBlockObserver(core.BlockProcessResult{}, testBlock(account, 1))

	if len(sub.blocks) != 0 {
		t.Fatalf("expected no notification after unsubscribing")
	}
}

func TestOnForkObserverNotifiesByFirstBlockAccount(t *testing.T) {
	s := NewSubscriptions()
	sub := &recordingSubscriber{}
	var account core.Account
	account[0] = 1
	s.AfterSubscribe(sub, account)

	first := testBlock(account, 1)
	second := testBlock(account, 1)
	s.OnForkObserver(true, first, second)

	if len(sub.forks) != 1 {
		t.Fatalf("expected 1 fork notification, got %d", len(sub.forks))
	}
	if sub.forks[0].Account != account || sub.forks[0].Height != 1 {
		t.Fatalf("unexpected fork record: %+v", sub.forks[0])
	}
}

func TestOnConfirmObserverNotifiesInterestedSubscriber(t *testing.T) {
	s := NewSubscriptions()
	sub := &recordingSubscriber{}
	var account core.Account
	account[0] = 1
	s.AfterSubscribe(sub, account)

	s.OnConfirmObserver(account, 3, testBlock(account, 3))

	if sub.confirms != 1 {
		t.Fatalf("expected 1 confirm notification, got %d", sub.confirms)
	}
}

func TestViewCacheFallsBackToLookupAndCaches(t *testing.T) {
	calls := 0
	cache := NewViewCache(func(key string) ([]byte, bool) {
		calls++
		return []byte("value-" + key), true
	})

	v, ok := cache.Get("a")
	if !ok || string(v) != "value-a" {
		t.Fatalf("expected lookup fallback to produce value-a, got %q ok=%v", v, ok)
	}
	cache.Get("a")
	if calls != 1 {
		t.Fatalf("expected the lookup to be called once and then cached, called %d times", calls)
	}
}

func TestViewCacheSetOverridesLookup(t *testing.T) {
	cache := NewViewCache(func(key string) ([]byte, bool) { return []byte("fallback"), true })
	cache.Set("k", []byte("explicit"))

	v, ok := cache.Get("k")
	if !ok || string(v) != "explicit" {
		t.Fatalf("expected the explicitly set value to win, got %q", v)
	}
}

func TestViewCacheInvalidateForcesFreshLookup(t *testing.T) {
	calls := 0
	cache := NewViewCache(func(key string) ([]byte, bool) {
		calls++
		return []byte{byte(calls)}, true
	})

	cache.Get("k")
	cache.Invalidate("k")
	cache.Get("k")

	if calls != 2 {
		t.Fatalf("expected invalidation to force a second lookup, got %d calls", calls)
	}
}

func TestViewCacheMissWithoutLookupReturnsFalse(t *testing.T) {
	cache := NewViewCache(nil)
	if _, ok := cache.Get("missing"); ok {
		t.Fatalf("expected a miss with no lookup configured")
	}
}
