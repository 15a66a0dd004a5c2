package core

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxProcessorBlocks and MaxProcessorForkBlocks bound the processor's
// pending queue and fork table, matching
// original_source/rai/node/blockprocessor.hpp MAX_BLOCKS/MAX_BLOCKS_FORK.
const (
	MaxProcessorBlocks     = 256 * 1024
	MaxProcessorForkBlocks = 128 * 1024
	busyPercentage         = 60
)

// BlockProcessResult is delivered to the block observer after a
// submission finishes processing, successfully or not.
type BlockProcessResult struct {
	Operation         BlockOperation
	Error             error
	LastConfirmHeight uint64
}

// queuedBlock is one entry in the processor's priority queue: blocks
// submitted locally are prioritized over ones relayed from peers, and
// FIFO within a priority tier per spec.md §5 ordering guarantees.
type queuedBlock struct {
	priority int
	arrival  time.Time
	block    Block
	index    int
}

type blockHeap []*queuedBlock

func (h blockHeap) Len() int { return len(h) }
func (h blockHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority // higher priority first
	}
	return h[i].arrival.Before(h[j].arrival)
}
func (h blockHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *blockHeap) Push(x interface{}) {
	item := x.(*queuedBlock)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *blockHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// BlockProcessor is the single-writer scheduler that validates and
// applies blocks to the Ledger. It runs a priority queue of pending
// submissions on one goroutine, so every ledger write is totally
// ordered FIFO-within-priority, per spec.md §5. Dependency gaps
// (missing previous/source/reward-source) are resolved by pushing the
// block into GapCache and issuing a BlockQueries request rather than
// blocking the goroutine. Grounded on
// original_source/rai/node/blockprocessor.hpp's dynamic operation model
// and the teacher's ConnPool ticker+mutex loop in connection_pool.go.
type BlockProcessor struct {
	ledger  *Ledger
	gaps    *GapCache
	queries *BlockQueries
	params  NetworkParameters

	mu      sync.Mutex
	cond    *sync.Cond
	queue   blockHeap
	stopped bool
	wg      sync.WaitGroup

	BlockObserver func(BlockProcessResult, Block)
	ForkObserver  func(fromLocal bool, first, second Block)
}

// NewBlockProcessor builds a processor bound to ledger, gaps and
// queries. Callers must call Run in a goroutine to start processing.
func NewBlockProcessor(ledger *Ledger, gaps *GapCache, queries *BlockQueries, params NetworkParameters) *BlockProcessor {
	p := &BlockProcessor{ledger: ledger, gaps: gaps, queries: queries, params: params}
	p.cond = sync.NewCond(&p.mu)
	heap.Init(&p.queue)
	return p
}

// Add submits a block received from a peer for processing, at normal
// priority.
func (p *BlockProcessor) Add(b Block) { p.add(b, 1) }

// AddLocal submits a block originated locally (e.g. by the Rewarder or
// a local RPC call) at elevated priority, so it is processed ahead of
// relayed traffic.
func (p *BlockProcessor) AddLocal(b Block) { p.add(b, 2) }

func (p *BlockProcessor) add(b Block, priority int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if len(p.queue) >= MaxProcessorBlocks {
		logrus.Warn("block processor queue full, dropping submission")
		return
	}
	heap.Push(&p.queue, &queuedBlock{priority: priority, arrival: time.Now(), block: b})
	p.cond.Signal()
}

// Busy reports whether the queue is at or above busyPercentage of
// capacity, the signal the Syncer uses to throttle bootstrap requests.
func (p *BlockProcessor) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)*100 >= MaxProcessorBlocks*busyPercentage
}

// Run processes queued blocks until Stop is called. Intended to be
// launched as `go processor.Run()`.
func (p *BlockProcessor) Run() {
	p.wg.Add(1)
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		item := heap.Pop(&p.queue).(*queuedBlock)
		p.mu.Unlock()

		p.processOne(item.block)
	}
}

// Stop signals Run to exit once the current queue drains, and waits for
// it to finish, per the leaf-first shutdown order in spec.md §5.
func (p *BlockProcessor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// processOne runs the dynamic-dependency-resolution loop for a single
// submitted block: push an append operation, pop and execute it, and
// let execution push further operations (a confirm cascade, a rollback
// of a superseded fork) onto the same stack until it is empty or a gap
// is hit.
func (p *BlockProcessor) processOne(b Block) {
	if err := ValidateStructural(b); err != nil {
		p.notify(BlockProcessResult{Operation: OpAppend, Error: err}, b)
		return
	}
	if err := ValidateTimestamp(b, uint64(time.Now().Unix())); err != nil {
		p.notify(BlockProcessResult{Operation: OpAppend, Error: err}, b)
		return
	}

	result := p.run(newWorkStack(OpAppend, b))
	p.notify(result, b)
}

// ConfirmWinner is invoked once an election settles on a winning
// candidate for (account, height) — wired as Elections.ConfirmObserver.
// If winner is already the block installed at that height, this is a
// plain confirm. Otherwise the installed block lost the election: it is
// rolled back and winner is re-appended in its place before the height
// is confirmed, per spec §3(d)/§4.2 fork resolution.
func (p *BlockProcessor) ConfirmWinner(account Account, height uint64, winner Block) {
	op := OpConfirm
	if installed, err := p.loadBlockAt(account, height); err != nil || installed.Hash() != winner.Hash() {
		op = OpRollback
	}
	result := p.run(newWorkStack(op, winner))
	p.notify(result, winner)
}

// run pops and executes work items until the stack drains, a gap is
// hit, or maxWorkStackSteps is exceeded, shared by processOne (a fresh
// submission) and ConfirmWinner (an election's rollback-and-replace).
func (p *BlockProcessor) run(stack *workStack) BlockProcessResult {
	steps := 0
	var lastConfirm uint64
	var lastErr error
	var lastOp BlockOperation = OpAppend
	var lastBlock Block

	for !stack.empty() && steps < maxWorkStackSteps {
		steps++
		item, _ := stack.pop()
		lastOp = item.op
		lastBlock = item.block

		var err error
		switch item.op {
		case OpAppend:
			err = p.doAppend(stack, item.block)
		case OpRollback:
			err = p.doRollback(stack, item.block)
		case OpConfirm:
			var h uint64
			h, err = p.doConfirm(item.block)
			if err == nil {
				lastConfirm = h
			}
		}

		if err != nil {
			if IsGap(err) {
				p.routeGap(item.block, err)
				lastErr = nil
				break
			}
			if IsMalice(err) {
				logrus.WithField("account", lastBlock.Account().Hex()).Warn("dropping block with invalid signature")
			}
			lastErr = err
			break
		}
	}

	return BlockProcessResult{Operation: lastOp, Error: lastErr, LastConfirmHeight: lastConfirm}
}

func (p *BlockProcessor) doAppend(stack *workStack, b Block) error {
	if !b.CheckSignature() {
		return NewError(ErrBlockSignature, "signature verification failed")
	}

	var fork *ForkRecord
	err := p.ledger.Update(func(tx *Tx) error {
		existing, lookupErr := tx.BlockAt(b.Account(), b.Height())
		if lookupErr == nil {
			if existing.Hash() == b.Hash() {
				return NewError(ErrBlockExists, "duplicate submission")
			}
			info, infoErr := tx.AccountInfo(b.Account())
			if infoErr != nil {
				return infoErr
			}
			if info.HasConfirmed() && b.Height() <= info.ConfirmedHeight {
				return NewError(ErrBlockConfirmedConflict, "height %d already confirmed", b.Height())
			}
			rec := ForkRecord{Account: b.Account(), Height: b.Height(), First: existing, Second: b}
			fork = &rec
			return NewError(ErrBlockFork, "conflicting block at height %d", b.Height())
		}
		return tx.AppendBlock(b)
	})

	if fork != nil {
		if p.ForkObserver != nil {
			p.ForkObserver(true, fork.First, fork.Second)
		}
		return nil
	}
	if err != nil {
		if CodeOf(err) == ErrBlockPrevious && b.Height() > 0 {
			return NewError(ErrBlockGapPrevious, "missing previous for %s height %d", b.Account().Hex(), b.Height())
		}
		if CodeOf(err) == ErrBlockReceivableMissing {
			return NewError(ErrBlockGapSource, "missing source for %s", b.Hash().Hex())
		}
		if CodeOf(err) == ErrBlockRewardableMissing {
			return NewError(ErrBlockGapRewardSource, "missing reward source for %s", b.Hash().Hex())
		}
		return err
	}

	if b.Opcode() == OpcodeReward || b.Opcode() == OpcodeReceive {
		var sourceHash BlockHash
		link := b.Link()
		copy(sourceHash[:], link[:])
		if src, srcErr := p.loadBlock(sourceHash); srcErr == nil {
			stack.push(OpConfirm, src)
		}
	}
	return nil
}

// doRollback removes the losing block installed at b's (account,
// height) and schedules b — the election winner — to be appended and
// confirmed in its place.
func (p *BlockProcessor) doRollback(stack *workStack, b Block) error {
	if err := p.ledger.Update(func(tx *Tx) error {
		return tx.Rollback(b.Account(), b.Height(), b)
	}); err != nil {
		return err
	}
	stack.push(OpConfirm, b)
	stack.push(OpAppend, b)
	return nil
}

func (p *BlockProcessor) doConfirm(b Block) (uint64, error) {
	var height uint64
	err := p.ledger.Update(func(tx *Tx) error {
		if err := tx.Confirm(b.Account(), b.Height()); err != nil {
			return err
		}
		info, err := tx.AccountInfo(b.Account())
		if err != nil {
			return err
		}
		height = info.ConfirmedHeight
		return nil
	})
	return height, err
}

func (p *BlockProcessor) loadBlock(hash BlockHash) (Block, error) {
	var b Block
	err := p.ledger.View(func(tx *Tx) error {
		var e error
		b, e = tx.Block(hash)
		return e
	})
	return b, err
}

func (p *BlockProcessor) loadBlockAt(account Account, height uint64) (Block, error) {
	var b Block
	err := p.ledger.View(func(tx *Tx) error {
		var e error
		b, e = tx.BlockAt(account, height)
		return e
	})
	return b, err
}

func (p *BlockProcessor) routeGap(b Block, gapErr error) {
	p.gaps.Add(b, gapErr)
	if p.queries != nil {
		p.queries.RequestFor(b, gapErr)
	}
}

func (p *BlockProcessor) notify(result BlockProcessResult, b Block) {
	if p.BlockObserver != nil {
		p.BlockObserver(result, b)
	}
}

// Resubmit is called by GapCache when a previously-blocked dependency
// has arrived, re-adding the waiting block to the queue at local
// priority so it is retried promptly.
func (p *BlockProcessor) Resubmit(b Block) { p.AddLocal(b) }
