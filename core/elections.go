package core

import (
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Wakeup intervals for the election scheduler: a contested (forked)
// account is re-tallied every 32s, an uncontested one every 1s so a
// single-block race confirms quickly. Grounded on
// original_source/rai/node/election.hpp FORK_ELECTION_DELAY /
// NON_FORK_ELECTION_DELAY.
const (
	ForkElectionInterval    = 32 * time.Second
	NonForkElectionInterval = 1 * time.Second
)

// Vote is a representative's signed endorsement of a block hash at a
// timestamp, grounded on original_source/rai/node/election.hpp Vote.
type Vote struct {
	Timestamp uint64
	Signature Signature
	Hash      BlockHash
}

// RepVoteInfo tracks one representative's latest vote in an election
// plus whether it has been caught voting for two different hashes
// (conflict).
type RepVoteInfo struct {
	ConflictFound bool
	Weight        Balance
	LastVote      Vote
}

// BlockReference reference-counts a candidate block within an election;
// a block leaves the election once its reference count drops to zero.
type BlockReference struct {
	Refs  uint32
	Block Block
}

// ElectionStatus is the outcome of a tally: Win means a single
// candidate crossed ConfirmWeightPercentage of online weight this
// round; Confirm means it has won enough consecutive rounds to be
// irreversible.
type ElectionStatus struct {
	Win      bool
	Confirm  bool
	Valid    Balance
	Invalid  Balance
	Conflict Balance
	NotVoting Balance
	Block    Block
}

// Election is the per-(account) voting state machine tracking every
// candidate block for the account's next unconfirmed height, the votes
// cast for each, and the fork/confirm bookkeeping that decides when a
// winner becomes irreversible. Grounded on
// original_source/rai/node/election.hpp Election.
type Election struct {
	Account      Account
	Height       uint64
	ForkFound    bool
	Broadcast    bool
	Rounds       uint32
	RoundsFork   uint32
	Wins         uint32
	Confirms     uint32
	Winner       BlockHash
	Wakeup       time.Time

	blocks    map[BlockHash]*BlockReference
	votes     map[Account]RepVoteInfo
	conflicts map[Account]Vote
}

func newElection(account Account, height uint64) *Election {
	return &Election{
		Account: account, Height: height,
		blocks: make(map[BlockHash]*BlockReference),
		votes:  make(map[Account]RepVoteInfo),
		conflicts: make(map[Account]Vote),
	}
}

// AddBlock registers a candidate block, reference-counting duplicates.
func (e *Election) AddBlock(b Block) {
	if ref, ok := e.blocks[b.Hash()]; ok {
		ref.Refs++
		return
	}
	e.blocks[b.Hash()] = &BlockReference{Refs: 1, Block: b}
	if len(e.blocks) > 1 {
		e.ForkFound = true
	}
}

// DelBlock decrements a candidate's reference count, removing it once
// unreferenced.
func (e *Election) DelBlock(hash BlockHash) {
	ref, ok := e.blocks[hash]
	if !ok {
		return
	}
	ref.Refs--
	if ref.Refs == 0 {
		delete(e.blocks, hash)
	}
}

// nextInterval computes the scheduling delay: contested elections recheck
// every ForkElectionInterval, uncontested ones every
// NonForkElectionInterval, per spec.md §4.5 / SPEC_FULL.md §4.5.
func (e *Election) nextInterval() time.Duration {
	if e.ForkFound {
		return ForkElectionInterval
	}
	return NonForkElectionInterval
}

// Elections runs one voting state machine per contested account height,
// tallying representative weight behind each candidate block and
// declaring a winner once it crosses ConfirmWeightPercentage of online
// weight for ConfirmRoundsThreshold consecutive rounds. Grounded on
// original_source/rai/node/election.hpp Elections, with weight storage
// adapted to the Go WeightTable in weights.go.
type Elections struct {
	ledger  *Ledger
	weights *WeightTable

	mu        sync.Mutex
	elections map[Account]*Election
	stopped   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	ConfirmObserver func(Account, uint64, Block)
	ConflictObserver func(account Account, height, heightOther uint64, first, second Block)

	BroadcastVoteRequest func(e *Election)
	BroadcastConfirm     func(account Account, height uint64, winner Block)
}

// NewElections builds an Elections engine reading weights from the
// given WeightTable, updated externally as the ledger's representative
// balances change.
func NewElections(ledger *Ledger, weights *WeightTable) *Elections {
	return &Elections{
		ledger:    ledger,
		weights:   weights,
		elections: make(map[Account]*Election),
		stopCh:    make(chan struct{}),
	}
}

// Add starts or joins an election for b's account/height.
func (el *Elections) Add(b Block) {
	el.mu.Lock()
	defer el.mu.Unlock()

	e, ok := el.elections[b.Account()]
	if !ok {
		e = newElection(b.Account(), b.Height())
		e.Wakeup = time.Now().Add(e.nextInterval())
		el.elections[b.Account()] = e
	}
	if e.Height != b.Height() {
		return // a new height starts only once the current election is confirmed and removed
	}
	e.AddBlock(b)
}

// Size reports the number of live elections.
func (el *Elections) Size() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.elections)
}

// ProcessVote records a representative's vote and re-tallies its
// election immediately; conflicting votes for two different hashes at
// the same height are recorded and surfaced via ConflictObserver.
func (el *Elections) ProcessVote(representative Account, account Account, height uint64, vote Vote) {
	el.mu.Lock()
	e, ok := el.elections[account]
	if !ok || e.Height != height {
		el.mu.Unlock()
		return
	}

	weight := el.weights.Weight(representative)
	info, existed := e.votes[representative]
	conflict := existed && info.LastVote.Hash != vote.Hash && vote.Timestamp <= info.LastVote.Timestamp+MinConfirmInterval
	previousHash := info.LastVote.Hash
	if conflict {
		e.conflicts[representative] = info.LastVote
		info.ConflictFound = true
	}
	info.Weight = weight
	info.LastVote = vote
	e.votes[representative] = info

	status := el.tally(e)
	el.mu.Unlock()

	if conflict {
		first, _ := e.blocks[previousHash]
		second, _ := e.blocks[vote.Hash]
		if first != nil && second != nil && el.ConflictObserver != nil {
			el.ConflictObserver(account, height, height, first.Block, second.Block)
		}
	}
	el.applyStatus(e, status)
}

// tally sums weight behind each candidate and decides win/confirm,
// matching the CONFIRM_WEIGHT_PERCENTAGE threshold in spec.md §4.5.
func (el *Elections) tally(e *Election) ElectionStatus {
	totals := make(map[BlockHash]Balance)
	var valid Balance = NewBalance(0)
	var conflict Balance = NewBalance(0)
	for _, info := range e.votes {
		if info.ConflictFound {
			// a rep caught signing two different blocks contributes its
			// weight to neither candidate: spec §4.5 conflict_weight.
			conflict = conflict.Add(info.Weight)
			continue
		}
		totals[info.LastVote.Hash] = totals[info.LastVote.Hash].Add(info.Weight)
		valid = valid.Add(info.Weight)
	}

	online := el.weights.Total()
	threshold := NewBalance(0)
	if online.Big().Sign() > 0 {
		t := online.Big()
		t.Mul(t, big.NewInt(ConfirmWeightPercentage))
		t.Div(t, big.NewInt(100))
		threshold = BalanceFromBig(t)
	}

	var winner BlockHash
	var winnerWeight Balance = NewBalance(0)
	for hash, w := range totals {
		if w.Cmp(winnerWeight) > 0 {
			winner, winnerWeight = hash, w
		} else if w.Cmp(winnerWeight) == 0 && !hash.IsZero() && hash.Less(winner) {
			winner = hash // lower-hash tie-break, SPEC_FULL.md §9.1
		}
	}

	notVoting := online.Sub(valid).Sub(conflict)
	status := ElectionStatus{Valid: valid, Conflict: conflict, NotVoting: notVoting}
	if ref, ok := e.blocks[winner]; ok {
		status.Block = ref.Block
	}
	if winnerWeight.Cmp(threshold) >= 0 && threshold.Big().Sign() > 0 {
		status.Win = true
		if e.Winner == winner {
			e.Wins++
		} else {
			e.Winner = winner
			e.Wins = 1
		}
		if e.Wins >= ConfirmRoundsThreshold && e.Rounds+1 >= MinElectionAgeRounds {
			status.Confirm = true
		}
	}
	e.Rounds++
	if e.ForkFound {
		e.RoundsFork++
	}
	return status
}

func (el *Elections) applyStatus(e *Election, status ElectionStatus) {
	if status.Block == nil {
		return
	}
	if status.Confirm {
		if el.ConfirmObserver != nil {
			el.ConfirmObserver(e.Account, e.Height, status.Block)
		}
		el.mu.Lock()
		delete(el.elections, e.Account)
		el.mu.Unlock()
		return
	}
	if status.Win && el.BroadcastConfirm != nil {
		el.BroadcastConfirm(e.Account, e.Height, status.Block)
	}
}

// ProcessConflict records an externally-observed fork (e.g. surfaced by
// the processor's append path) against the election for account.
func (el *Elections) ProcessConflict(account Account, height uint64, first, second Block) {
	el.mu.Lock()
	e, ok := el.elections[account]
	if !ok {
		e = newElection(account, height)
		e.Wakeup = time.Now().Add(e.nextInterval())
		el.elections[account] = e
	}
	e.AddBlock(first)
	e.AddBlock(second)
	el.mu.Unlock()

	if el.ConflictObserver != nil {
		el.ConflictObserver(account, height, height, first, second)
	}
}

// Run periodically wakes each election whose scheduled time has passed,
// broadcasting a vote request for every election that is due.
func (el *Elections) Run() {
	el.wg.Add(1)
	defer el.wg.Done()
	ticker := time.NewTicker(NonForkElectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			el.tick()
		case <-el.stopCh:
			return
		}
	}
}

func (el *Elections) tick() {
	now := time.Now()
	var due []*Election

	el.mu.Lock()
	for _, e := range el.elections {
		if now.After(e.Wakeup) {
			due = append(due, e)
			e.Wakeup = now.Add(e.nextInterval())
		}
	}
	el.mu.Unlock()

	for _, e := range due {
		if el.BroadcastVoteRequest != nil {
			el.BroadcastVoteRequest(e)
		}
	}
}

// Stop halts the scheduler goroutine.
func (el *Elections) Stop() {
	el.mu.Lock()
	if el.stopped {
		el.mu.Unlock()
		return
	}
	el.stopped = true
	el.mu.Unlock()
	close(el.stopCh)
	el.wg.Wait()
	logrus.Debug("elections stopped")
}
