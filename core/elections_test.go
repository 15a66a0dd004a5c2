package core

import "testing"

func TestWeightTableTopNAndQualified(t *testing.T) {
	w := NewWeightTable()
	var a, b, c Account
	a[0], b[0], c[0] = 1, 2, 3
	w.Set(a, BalanceFromBig(QualifiedRepWeight))
	w.Set(b, NewBalance(1))
	w.Set(c, BalanceFromBig(QualifiedRepWeight).Add(NewBalance(1)))

	top := w.TopN(2)
	if len(top) != 2 || top[0].Account != c || top[1].Account != a {
		t.Fatalf("unexpected top-2 order: %+v", top)
	}
	if !w.Qualified(a) {
		t.Fatalf("account at exactly QualifiedRepWeight should qualify")
	}
	if w.Qualified(b) {
		t.Fatalf("account below QualifiedRepWeight should not qualify")
	}
}

// TestElectionConfirmsAfterConsecutiveWins covers scenario S4 and
// invariant 7: a candidate must win ConfirmRoundsThreshold consecutive
// rounds, and the election must have run at least MinElectionAgeRounds
// rounds, before it is confirmed.
func TestElectionConfirmsAfterConsecutiveWins(t *testing.T) {
	weights := NewWeightTable()
	var rep Account
	rep[0] = 0xAA
	weights.Set(rep, NewBalance(1000))

	el := NewElections(nil, weights)

	var account Account
	account[0] = 1
	b := NewTxBlock(OpcodeSend, 0, 0, 1600000000, 0, account, ZeroHash, account, NewBalance(0), [32]byte{}, nil)
	el.Add(b)

	var confirmed Block
	el.ConfirmObserver = func(_ Account, _ uint64, winner Block) { confirmed = winner }

	for i := 0; i < ConfirmRoundsThreshold-1; i++ {
		el.ProcessVote(rep, account, 0, Vote{Timestamp: uint64(1600000100 + i*1000), Hash: b.Hash()})
		if confirmed != nil {
			t.Fatalf("confirmed too early, after %d rounds", i+1)
		}
	}
	el.ProcessVote(rep, account, 0, Vote{Timestamp: uint64(1600000100 + (ConfirmRoundsThreshold-1)*1000), Hash: b.Hash()})

	if confirmed == nil {
		t.Fatalf("expected confirmation after %d consecutive winning rounds", ConfirmRoundsThreshold)
	}
	if confirmed.Hash() != b.Hash() {
		t.Fatalf("confirmed the wrong block")
	}
	if el.Size() != 0 {
		t.Fatalf("expected election to be retired after confirm")
	}
}

func TestElectionDetectsConflictingVotes(t *testing.T) {
	weights := NewWeightTable()
	var rep Account
	rep[0] = 0xBB
	weights.Set(rep, NewBalance(1000))

	el := NewElections(nil, weights)

	var account Account
	account[0] = 2
	first := NewTxBlock(OpcodeSend, 0, 0, 1600000000, 0, account, ZeroHash, account, NewBalance(0), [32]byte{}, nil)
	second := NewTxBlock(OpcodeChange, 0, 0, 1600000000, 0, account, ZeroHash, account, NewBalance(0), [32]byte{1}, nil)
	el.Add(first)
	el.Add(second)

	var conflicted bool
	el.ConflictObserver = func(Account, uint64, uint64, Block, Block) { conflicted = true }

	el.ProcessVote(rep, account, 0, Vote{Timestamp: 1600000100, Hash: first.Hash()})
	el.ProcessVote(rep, account, 0, Vote{Timestamp: 1600000101, Hash: second.Hash()})

	if !conflicted {
		t.Fatalf("expected a conflict to be reported for same-rep diverging votes")
	}

	// S5: R's weight must be excluded from both candidates' tallies, not
	// counted toward either, once it is caught double-voting.
	el.mu.Lock()
	e := el.elections[account]
	status := el.tally(e)
	el.mu.Unlock()

	if !status.Valid.IsZero() {
		t.Fatalf("expected the conflicting rep's weight excluded from valid tally, got %s", status.Valid)
	}
	if status.Conflict.Cmp(NewBalance(1000)) != 0 {
		t.Fatalf("expected the conflicting rep's weight accounted as conflict_weight, got %s", status.Conflict)
	}
	if status.Win {
		t.Fatalf("expected no candidate to win once its only voter is excluded as conflicting")
	}
}
