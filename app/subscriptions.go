// Package app is the App framework collaborator named in spec.md §4.8:
// application-layer subscription to the processor's block/fork
// observer streams, and the pre/after append/rollback hooks invoked
// inside the processor's write transaction. Grounded on the teacher's
// AccessController (core/access_control.go) cache-over-ledger pattern
// for how a collaborator layers its own view over ledger-backed state
// without touching the processor's internals.
package app

import (
	"sync"

	"github.com/raicore/raicore/core"
)

// Hooks are invoked by the BlockProcessor inside its write transaction,
// in the order an app registers them. Per spec.md §4.8 they must not
// re-enter the processor synchronously.
type Hooks interface {
	PreBlockAppend(b core.Block) error
	AfterBlockAppend(b core.Block)
	PreBlockRollback(account core.Account, height uint64) error
	AfterBlockRollback(account core.Account, height uint64)
}

// Subscriber receives fanned-out notifications once a subscription is
// registered.
type Subscriber interface {
	OnBlock(b core.Block)
	OnFork(record core.ForkRecord)
	OnConfirm(account core.Account, height uint64, b core.Block)
}

// Subscriptions manages a set of app-layer subscribers and their
// per-account interest. Method names follow the .cpp-authoritative
// shape named in SPEC_FULL.md §9 (resolving a naming disagreement
// between two declarations in the original source): AfterSubscribe
// returns a bool indicating whether this is the subscriber's first
// interest registration, and removal is PreUnsubscribe (which drops the
// subscriber once its last interest is removed).
type Subscriptions struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]map[core.Account]struct{}
}

// NewSubscriptions builds an empty subscription table.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{subscribers: make(map[Subscriber]map[core.Account]struct{})}
}

// AfterSubscribe registers sub's interest in account, returning
// whether this is sub's first interest of any kind — the (bool) form
// named authoritative in SPEC_FULL.md §9, as opposed to a separate
// AfterUnsubscribe-paired declaration the original source also carried.
func (s *Subscriptions) AfterSubscribe(sub Subscriber, account core.Account) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, ok := s.subscribers[sub]
	if !ok {
		accounts = make(map[core.Account]struct{})
		s.subscribers[sub] = accounts
		first = true
	}
	accounts[account] = struct{}{}
	return first
}

// PreUnsubscribe removes sub's interest in account, and drops sub from
// the table once it has no interest left. Nothing is called on sub.
func (s *Subscriptions) PreUnsubscribe(sub Subscriber, account core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, ok := s.subscribers[sub]
	if !ok {
		return
	}
	delete(accounts, account)
	if len(accounts) == 0 {
		delete(s.subscribers, sub)
	}
}

// notify fans msg out to every subscriber interested in account.
func (s *Subscriptions) notify(account core.Account, emit func(Subscriber)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub, accounts := range s.subscribers {
		if _, ok := accounts[account]; ok {
			emit(sub)
		}
	}
}

// OnBlockObserver is registered with core.BlockProcessor.BlockObserver
// to fan out append/rollback/confirm notifications to subscribers.
func (s *Subscriptions) OnBlockObserver(result core.BlockProcessResult, b core.Block) {
	if result.Error != nil {
		return
	}
	s.notify(b.Account(), func(sub Subscriber) { sub.OnBlock(b) })
}

// OnForkObserver is registered with core.BlockProcessor.ForkObserver.
func (s *Subscriptions) OnForkObserver(fromLocal bool, first, second core.Block) {
	record := core.ForkRecord{Account: first.Account(), Height: first.Height(), First: first, Second: second}
	s.notify(record.Account, func(sub Subscriber) { sub.OnFork(record) })
}

// OnConfirmObserver is registered with core.Elections.ConfirmObserver.
func (s *Subscriptions) OnConfirmObserver(account core.Account, height uint64, b core.Block) {
	s.notify(account, func(sub Subscriber) { sub.OnConfirm(account, height, b) })
}

// ViewCache is the pattern an app (token, alias, airdrop) layers over
// the ledger: a hook-driven in-memory cache backed by persistent state
// the app owns, read first and filled lazily from a fallback lookup —
// the same shape as core/access_control.go's AccessController cache.
type ViewCache struct {
	mu     sync.Mutex
	values map[string][]byte
	lookup func(key string) ([]byte, bool)
}

// NewViewCache builds a cache falling back to lookup on a miss.
func NewViewCache(lookup func(key string) ([]byte, bool)) *ViewCache {
	return &ViewCache{values: make(map[string][]byte), lookup: lookup}
}

// Get returns the cached value for key, consulting the fallback lookup
// and caching its result on a miss.
func (c *ViewCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		return v, true
	}
	if c.lookup == nil {
		return nil, false
	}
	v, ok := c.lookup(key)
	if ok {
		c.values[key] = v
	}
	return v, ok
}

// Set writes key directly into the cache, used by PreBlockAppend hooks
// that compute a new view value before the underlying write commits.
func (c *ViewCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Invalidate drops a cached entry, used by PreBlockRollback hooks.
func (c *ViewCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}
