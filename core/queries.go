package core

import (
	"crypto/rand"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// QueryBy selects which field identifies the block a query asks for.
type QueryBy uint8

const (
	QueryByHash QueryBy = iota
	QueryByHeight
	QueryByPrevious
)

// QueryStatus is the result a peer reports for a query.
type QueryStatus uint8

const (
	QueryStatusSuccess QueryStatus = iota
	QueryStatusMiss
	QueryStatusPruned
	QueryStatusFork
	QueryStatusTimeout
)

// QueryAck is one peer's response to an outstanding query.
type QueryAck struct {
	Status QueryStatus
	Block  Block
	From   PeerID
}

// QueryCallbackStatus is the caller's per-ack verdict, returned from a
// QueryCallback: continue means keep waiting for quorum, finish retires
// the query.
type QueryCallbackStatus uint8

const (
	QueryContinue QueryCallbackStatus = iota
	QueryFinish
)

// QueryCallback is invoked with the accumulated ack vector; it returns
// one status per ack so quorum/majority logic lives in the caller
// (Syncer, Elections, the cross-chain bridge), per spec.md §4.3.
type QueryCallback func(acks []QueryAck) []QueryCallbackStatus

// PeerID identifies a peer for query routing; defined here rather than
// in the network package to keep BlockQueries free of a network-package
// import cycle. The network package's peer identifiers convert to this
// type at the boundary.
type PeerID string

// Sender abstracts the transport a query is sent over, implemented by
// the network package's Peers/Gossip layer.
type Sender interface {
	SendQuery(to PeerID, q OutgoingQuery) error
	RandomPeer() (PeerID, bool)
}

// OutgoingQuery is the wire payload for a QUERY message, per
// SPEC_FULL.md §6.
type OutgoingQuery struct {
	Sequence uint64
	By       QueryBy
	Account  Account
	Height   uint64
	Hash     BlockHash
}

type trackedQuery struct {
	sequence      uint64
	by            QueryBy
	account       Account
	height        uint64
	hash          BlockHash
	onlyFullNode  bool
	from          []PeerID
	acks          []QueryAck
	attempts      int
	misses        int
	nextWakeup    time.Time
	callback      QueryCallback
}

// queryBackoff doubles the retry delay every three attempts, capped at
// 256s, per spec.md §4.3.
func queryBackoff(attempts int) time.Duration {
	base := time.Second
	doublings := attempts / 3
	if doublings > 8 { // 1s * 2^8 = 256s
		doublings = 8
	}
	return base << uint(doublings)
}

// BlockQueries tracks outstanding block requests, retrying with
// exponential backoff and notifying callers via QueryCallback. Grounded
// on original_source/rai/node/blockquery.hpp and the teacher's ConnPool
// reaper ticker loop.
type BlockQueries struct {
	sender   Sender
	sequence uint64

	mu      sync.Mutex
	queries map[uint64]*trackedQuery

	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewBlockQueries builds a BlockQueries that sends requests through
// sender.
func NewBlockQueries(sender Sender) *BlockQueries {
	return &BlockQueries{
		sender:  sender,
		queries: make(map[uint64]*trackedQuery),
		stopCh:  make(chan struct{}),
	}
}

func (q *BlockQueries) nextSequence() uint64 {
	return atomic.AddUint64(&q.sequence, 1)
}

// QueryByHashFn issues a query for the block with the given hash.
func (q *BlockQueries) QueryByHashFn(account Account, height uint64, hash BlockHash, onlyFullNode bool, cb QueryCallback) {
	q.insert(&trackedQuery{
		sequence: q.nextSequence(), by: QueryByHash, account: account, height: height, hash: hash,
		onlyFullNode: onlyFullNode, callback: cb,
	})
}

// QueryByHeightFn issues a query for the block at the given height.
func (q *BlockQueries) QueryByHeightFn(account Account, height uint64, onlyFullNode bool, cb QueryCallback) {
	q.insert(&trackedQuery{
		sequence: q.nextSequence(), by: QueryByHeight, account: account, height: height,
		onlyFullNode: onlyFullNode, callback: cb,
	})
}

// RequestFor issues the appropriate query for a block that failed to
// append due to a dependency gap, derived from the gap error code.
func (q *BlockQueries) RequestFor(b Block, gapErr error) {
	onlyFullNode := CodeOf(gapErr) == ErrQueryPruned
	switch CodeOf(gapErr) {
	case ErrBlockGapPrevious:
		q.QueryByHeightFn(b.Account(), b.Height()-1, onlyFullNode, nil)
	case ErrBlockGapSource, ErrBlockGapRewardSource:
		var h BlockHash
		link := b.Link()
		copy(h[:], link[:])
		q.QueryByHashFn(b.Account(), InvalidHeight, h, onlyFullNode, nil)
	}
}

// Resolve answers an incoming query against ledger, the responder-side
// mirror of RequestFor: QueryByHeight and QueryByHash resolve directly,
// and QueryByPrevious walks the successor pointer so a peer that only
// holds a block's hash can be told what comes after it without first
// learning the next height, per spec.md §4.1 block_get/block_successor.
func Resolve(ledger *Ledger, q OutgoingQuery) (Block, error) {
	var b Block
	err := ledger.View(func(tx *Tx) error {
		var e error
		switch q.By {
		case QueryByHeight:
			b, e = tx.BlockAt(q.Account, q.Height)
		case QueryByHash:
			b, e = tx.Block(q.Hash)
		case QueryByPrevious:
			b, e = tx.BlockByPrevious(q.Hash)
		default:
			e = NewError(ErrStoreNotFound, "unrecognized query selector")
		}
		return e
	})
	return b, err
}

func (q *BlockQueries) insert(tq *trackedQuery) {
	tq.nextWakeup = time.Now()
	q.mu.Lock()
	q.queries[tq.sequence] = tq
	q.mu.Unlock()
}

// ProcessAck records a peer's response to sequence and invokes the
// callback with every ack received so far, leaving the quorum decision
// to it. A query is
// retired once the callback returns QueryFinish for its latest ack, or
// after three misses.
func (q *BlockQueries) ProcessAck(sequence uint64, status QueryStatus, block Block, from PeerID) {
	q.mu.Lock()
	tq, ok := q.queries[sequence]
	if !ok {
		q.mu.Unlock()
		return
	}
	tq.acks = append(tq.acks, QueryAck{Status: status, Block: block, From: from})
	if status == QueryStatusMiss {
		tq.misses++
	}
	cb := tq.callback
	acks := append([]QueryAck(nil), tq.acks...)
	retire := tq.misses >= 3
	q.mu.Unlock()

	if cb != nil {
		verdicts := cb(acks)
		if len(verdicts) > 0 && verdicts[len(verdicts)-1] == QueryFinish {
			retire = true
		}
	}
	if retire {
		q.retire(sequence)
	}
}

func (q *BlockQueries) retire(sequence uint64) {
	q.mu.Lock()
	delete(q.queries, sequence)
	q.mu.Unlock()
}

// Size reports the number of outstanding queries.
func (q *BlockQueries) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queries)
}

// Run drives retry/backoff for all outstanding queries until Stop is
// called.
func (q *BlockQueries) Run() {
	q.wg.Add(1)
	defer q.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			q.tick()
		case <-q.stopCh:
			return
		}
	}
}

func (q *BlockQueries) tick() {
	now := time.Now()
	var due []*trackedQuery

	q.mu.Lock()
	for _, tq := range q.queries {
		if now.After(tq.nextWakeup) {
			due = append(due, tq)
		}
	}
	q.mu.Unlock()

	for _, tq := range due {
		q.sendQuery(tq)
	}
}

func (q *BlockQueries) sendQuery(tq *trackedQuery) {
	peer, ok := q.pickPeer(tq)
	if !ok {
		return
	}
	msg := OutgoingQuery{Sequence: tq.sequence, By: tq.by, Account: tq.account, Height: tq.height, Hash: tq.hash}
	if err := q.sender.SendQuery(peer, msg); err != nil {
		logrus.WithError(err).Debug("query send failed")
	}

	q.mu.Lock()
	tq.attempts++
	tq.nextWakeup = time.Now().Add(queryBackoff(tq.attempts))
	q.mu.Unlock()
}

func (q *BlockQueries) pickPeer(tq *trackedQuery) (PeerID, bool) {
	if len(tq.from) > 0 {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(tq.from))))
		if err != nil {
			return tq.from[0], true
		}
		return tq.from[idx.Int64()], true
	}
	return q.sender.RandomPeer()
}

// Stop halts the retry goroutine.
func (q *BlockQueries) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()
	close(q.stopCh)
	q.wg.Wait()
}
