package core

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Signer produces Ed25519 signatures for the rewarder's own account,
// kept as an interface so the private key never has to live inside
// core.
type Signer interface {
	PublicKey() ed25519.PublicKey
	Sign(message []byte) Signature
}

// RewarderConfig configures the node's own-account emitter.
type RewarderConfig struct {
	Signer            Signer
	DailyForwardTimes int
	ForwardRewardTo   Account
	MinReceiveAmount  Balance
	SendInterval      time.Duration
	Params            NetworkParameters
}

// pendingSend tracks a block this node emitted that has not yet been
// confirmed, so Rewarder knows to republish it.
type pendingSend struct {
	block      Block
	lastSentAt time.Time
}

// Rewarder runs the node's own account chain: it emits reward blocks
// for the Rewardable entries handed to emitReward, expands the daily
// credit budget with credit blocks, receives incoming transfers above a
// minimum, and republishes anything it sent until confirmed. It does not
// scan the ledger for Rewardable entries itself.
// Grounded on spec.md §4.7 and the teacher's ticker-driven worker
// pattern (connection_pool.go reaper).
type Rewarder struct {
	ledger    *Ledger
	processor *BlockProcessor
	cfg       RewarderConfig
	account   Account

	mu          sync.Mutex
	sentToday   int
	dayMark     int64
	pending     map[BlockHash]*pendingSend

	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRewarder builds a Rewarder driving processor submissions for
// cfg.Signer's account.
func NewRewarder(ledger *Ledger, processor *BlockProcessor, cfg RewarderConfig) *Rewarder {
	var account Account
	copy(account[:], cfg.Signer.PublicKey())
	return &Rewarder{
		ledger: ledger, processor: processor, cfg: cfg, account: account,
		pending: make(map[BlockHash]*pendingSend),
		stopCh:  make(chan struct{}),
	}
}

// Confirmed is called by the processor's confirm observer; it clears
// any pending-republish entry for a now-confirmed block this node sent.
func (r *Rewarder) Confirmed(b Block) {
	if b.Account() != r.account {
		return
	}
	r.mu.Lock()
	delete(r.pending, b.Hash())
	r.mu.Unlock()
}

// ReceivedIncoming is called when a send block destined for this node's
// account is confirmed; if its amount clears MinReceiveAmount, the
// rewarder emits a matching receive block.
func (r *Rewarder) ReceivedIncoming(send Block) {
	var dest Account
	link := send.Link()
	copy(dest[:], link[:])
	if dest != r.account {
		return
	}

	var receivable ReceivableInfo
	err := r.ledger.View(func(tx *Tx) error {
		var e error
		receivable, e = tx.Receivable(ReceivableKey{Destination: r.account, Source: send.Hash()})
		return e
	})
	if err != nil {
		return
	}
	if receivable.Amount.Cmp(r.cfg.MinReceiveAmount) < 0 {
		return
	}
	if !r.reserveDailySend() {
		return
	}
	r.emitReceive(send.Hash(), receivable.Amount)
}

// reserveDailySend enforces the daily_forward_times rate limit, reset
// at UTC midnight.
func (r *Rewarder) reserveDailySend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	today := time.Now().UTC().Truncate(24 * time.Hour).Unix()
	if today != r.dayMark {
		r.dayMark = today
		r.sentToday = 0
	}
	if r.sentToday >= r.cfg.DailyForwardTimes {
		return false
	}
	r.sentToday++
	return true
}

func (r *Rewarder) emitReceive(source BlockHash, amount Balance) {
	r.withHead(func(info AccountInfo, headBalance Balance) {
		var link [32]byte
		copy(link[:], source[:])
		b := NewTxBlock(OpcodeReceive, 0, 0, uint64(time.Now().Unix()), info.HeadHeight+1,
			r.account, info.HeadHash, r.account, headBalance.Add(amount), link, nil)
		r.signAndSubmit(b)
	})
}

// emitReward emits a reward block claiming reward for key's source
// block, or does nothing while reward has not matured (ValidFrom still
// in the future). Run does not call it.
func (r *Rewarder) emitReward(key RewardableKey, reward RewardableInfo) {
	r.withHead(func(info AccountInfo, headBalance Balance) {
		now := uint64(time.Now().Unix())
		if now < reward.ValidFrom {
			return
		}
		var link [32]byte
		copy(link[:], key.Source[:])
		b := NewTxBlock(OpcodeReward, 0, 0, now, info.HeadHeight+1,
			r.account, info.HeadHash, r.account, headBalance.Add(reward.Amount), link, nil)
		r.signAndSubmit(b)
	})
}

// emitCredit expands the account's daily transaction budget.
func (r *Rewarder) emitCredit(count uint16) {
	r.withHead(func(info AccountInfo, headBalance Balance) {
		b := NewTxBlock(OpcodeCredit, count, 0, uint64(time.Now().Unix()), info.HeadHeight+1,
			r.account, info.HeadHash, r.account, headBalance, [32]byte{}, nil)
		r.signAndSubmit(b)
	})
}

// withHead looks up the rewarder's current head AccountInfo and the
// balance recorded on that head block, then invokes fn. A brand-new
// account (no blocks yet) is handed a zero head and zero balance.
func (r *Rewarder) withHead(fn func(AccountInfo, Balance)) {
	var info AccountInfo
	var headBalance Balance = NewBalance(0)
	err := r.ledger.View(func(tx *Tx) error {
		var e error
		info, e = tx.AccountInfo(r.account)
		if e != nil {
			return e
		}
		if info.HeadHeight != InvalidHeight {
			head, headErr := tx.Block(info.HeadHash)
			if headErr != nil {
				return headErr
			}
			headBalance = head.Balance()
		}
		return nil
	})
	if err != nil {
		if CodeOf(err) != ErrStoreNotFound {
			logrus.WithError(err).Debug("rewarder: failed to read head")
			return
		}
		info = AccountInfo{HeadHash: ZeroHash, HeadHeight: InvalidHeight}
	}
	fn(info, headBalance)
}

func (r *Rewarder) signAndSubmit(b *TxBlock) {
	sig := r.cfg.Signer.Sign(b.HashBytes())
	b.SetSignature(sig)

	r.mu.Lock()
	r.pending[b.Hash()] = &pendingSend{block: b, lastSentAt: time.Now()}
	r.mu.Unlock()

	r.processor.AddLocal(b)
}

// Run republishes unconfirmed pending sends every cfg.SendInterval
// until Stop is called, per spec.md §4.7's republish-until-confirmed
// rule.
func (r *Rewarder) Run() {
	r.wg.Add(1)
	defer r.wg.Done()
	interval := r.cfg.SendInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.republishPending()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Rewarder) republishPending() {
	r.mu.Lock()
	var due []*pendingSend
	cutoff := time.Now().Add(-r.cfg.SendInterval)
	for _, p := range r.pending {
		if p.lastSentAt.Before(cutoff) {
			due = append(due, p)
		}
	}
	r.mu.Unlock()

	for _, p := range due {
		p.lastSentAt = time.Now()
		r.processor.AddLocal(p.block)
	}
}

// Stop halts the republish goroutine.
func (r *Rewarder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	close(r.stopCh)
	r.wg.Wait()
}
