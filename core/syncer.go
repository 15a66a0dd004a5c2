package core

import "sync"

// SyncStatus is the per-account sync FSM state: QUERY means the next
// block at that height is being requested from a peer, PROCESS means it
// has been received and handed to the processor and the syncer is
// waiting on the processor's result. Grounded on
// original_source/rai/node/syncer.hpp SyncStatus.
type SyncStatus uint8

const (
	SyncStatusInvalid SyncStatus = iota
	SyncStatusQuery
	SyncStatusProcess
)

// SyncInfo tracks one account's progress walking its chain forward.
type SyncInfo struct {
	Status   SyncStatus
	First    bool
	Height   uint64
	Previous BlockHash
	Current  BlockHash
}

// SyncStat counts query outcomes across the syncer's lifetime.
type SyncStat struct {
	Total uint64
	Miss  uint64
}

// BusySize caps the number of accounts syncing at once, the cap the
// node uses to avoid flooding the processor during bootstrap. Grounded
// on original_source/rai/node/syncer.hpp BUSY_SIZE.
const BusySize = 10240

// Syncer walks each account chain forward by alternating BlockQueries
// requests and BlockProcessor submissions, one SyncInfo state machine
// per account. Grounded on original_source/rai/node/syncer.hpp Syncer.
type Syncer struct {
	processor *BlockProcessor
	queries   *BlockQueries
	ledger    *Ledger

	mu    sync.Mutex
	syncs map[Account]SyncInfo
	stat  SyncStat
}

// NewSyncer builds a Syncer driving processor submissions and queries
// over ledger state.
func NewSyncer(processor *BlockProcessor, queries *BlockQueries, ledger *Ledger) *Syncer {
	return &Syncer{processor: processor, queries: queries, ledger: ledger, syncs: make(map[Account]SyncInfo)}
}

// Busy reports whether the syncer is at its account-concurrency cap.
func (s *Syncer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.syncs) >= BusySize
}

// Empty reports whether no account is currently syncing.
func (s *Syncer) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.syncs) == 0
}

// Size reports the number of accounts currently syncing.
func (s *Syncer) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.syncs)
}

// Add starts syncing account from height, querying for the block at
// that height if not already in progress. When the syncer is at
// BusySize, the request is dropped; the gap-cache age-out sweep will
// eventually re-trigger it.
func (s *Syncer) Add(account Account, height uint64, first bool) {
	s.mu.Lock()
	if _, ok := s.syncs[account]; ok {
		s.mu.Unlock()
		return
	}
	if len(s.syncs) >= BusySize {
		s.mu.Unlock()
		return
	}
	s.syncs[account] = SyncInfo{Status: SyncStatusQuery, First: first, Height: height}
	s.mu.Unlock()

	s.queryAccount(account, height)
}

// Erase stops syncing account, e.g. once it has caught up to the
// network's confirmed height.
func (s *Syncer) Erase(account Account) {
	s.mu.Lock()
	delete(s.syncs, account)
	s.mu.Unlock()
}

func (s *Syncer) queryAccount(account Account, height uint64) {
	s.queries.QueryByHeightFn(account, height, false, func(acks []QueryAck) []QueryCallbackStatus {
		return s.handleAcks(account, acks)
	})
}

func (s *Syncer) handleAcks(account Account, acks []QueryAck) []QueryCallbackStatus {
	verdicts := make([]QueryCallbackStatus, len(acks))
	for i, ack := range acks {
		switch ack.Status {
		case QueryStatusSuccess:
			s.mu.Lock()
			s.stat.Total++
			info, ok := s.syncs[account]
			if ok {
				info.Status = SyncStatusProcess
				info.Current = ack.Block.Hash()
				s.syncs[account] = info
			}
			s.mu.Unlock()
			if ok {
				s.processor.Add(ack.Block)
			}
			verdicts[i] = QueryFinish
		case QueryStatusMiss:
			s.mu.Lock()
			s.stat.Miss++
			s.mu.Unlock()
			verdicts[i] = QueryContinue
		case QueryStatusPruned:
			verdicts[i] = QueryFinish
			s.Erase(account)
		default:
			verdicts[i] = QueryContinue
		}
	}
	return verdicts
}

// ProcessorCallback advances the account's sync state once the
// processor finishes with a submitted block: success walks to the next
// height, a gap error backs off to requerying, and any other error
// stops syncing this account.
func (s *Syncer) ProcessorCallback(result BlockProcessResult, b Block) {
	account := b.Account()
	s.mu.Lock()
	info, ok := s.syncs[account]
	s.mu.Unlock()
	if !ok {
		return
	}

	if result.Error == nil {
		next := info.Height + 1
		s.mu.Lock()
		s.syncs[account] = SyncInfo{Status: SyncStatusQuery, First: false, Height: next, Previous: b.Hash()}
		s.mu.Unlock()
		s.queryAccount(account, next)
		return
	}

	if IsGap(result.Error) {
		s.queryAccount(account, info.Height)
		return
	}

	s.Erase(account)
}

// SyncRelated triggers a sync for the account referenced by b's link
// field (its send/reward source), used when a receive or reward block
// arrives whose source chain the local ledger hasn't caught up to yet.
func (s *Syncer) SyncRelated(b Block) {
	if b.Opcode() != OpcodeReceive && b.Opcode() != OpcodeReward {
		return
	}
	var sourceAccount Account
	err := s.ledger.View(func(tx *Tx) error {
		var sourceHash BlockHash
		link := b.Link()
		copy(sourceHash[:], link[:])
		src, err := tx.Block(sourceHash)
		if err != nil {
			return err
		}
		sourceAccount = src.Account()
		return nil
	})
	if err != nil {
		return
	}
	s.Add(sourceAccount, 0, true)
}

// Stat returns a snapshot of query outcome counters.
func (s *Syncer) Stat() SyncStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stat
}

// ResetStat zeroes the query outcome counters.
func (s *Syncer) ResetStat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stat = SyncStat{}
}
