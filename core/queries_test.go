package core

import (
	"crypto/ed25519"
	"testing"
)

type fakeSender struct {
	peer PeerID
	sent []OutgoingQuery
}

func (f *fakeSender) SendQuery(to PeerID, q OutgoingQuery) error {
	f.sent = append(f.sent, q)
	return nil
}

func (f *fakeSender) RandomPeer() (PeerID, bool) {
	if f.peer == "" {
		return "", false
	}
	return f.peer, true
}

func TestQueryBackoffDoublesEveryThreeAttempts(t *testing.T) {
	cases := []struct {
		attempts int
		want     int64 // seconds
	}{
		{0, 1}, {1, 1}, {2, 1},
		{3, 2}, {4, 2}, {5, 2},
		{6, 4},
		{100, 256}, // capped
	}
	for _, c := range cases {
		got := queryBackoff(c.attempts)
		if got.Seconds() != float64(c.want) {
			t.Errorf("queryBackoff(%d) = %v, want %ds", c.attempts, got, c.want)
		}
	}
}

func TestProcessAckRetiresAfterThreeMisses(t *testing.T) {
	sender := &fakeSender{peer: "peer-1"}
	q := NewBlockQueries(sender)

	var account Account
	account[0] = 1
	hash := Blake2b256([]byte("target"))
	q.QueryByHashFn(account, InvalidHeight, hash, false, nil)

	if got := q.Size(); got != 1 {
		t.Fatalf("expected 1 outstanding query, got %d", got)
	}

	// Sequence numbers start at 1 (nextSequence pre-increments).
	const seq = 1
	q.ProcessAck(seq, QueryStatusMiss, nil, "peer-1")
	q.ProcessAck(seq, QueryStatusMiss, nil, "peer-2")
	if got := q.Size(); got != 1 {
		t.Fatalf("query retired too early after 2 misses, size=%d", got)
	}
	q.ProcessAck(seq, QueryStatusMiss, nil, "peer-3")
	if got := q.Size(); got != 0 {
		t.Fatalf("expected query retired after 3 misses, size=%d", got)
	}
}

func TestProcessAckCallbackFinishRetires(t *testing.T) {
	sender := &fakeSender{peer: "peer-1"}
	q := NewBlockQueries(sender)

	var account Account
	account[0] = 2
	hash := Blake2b256([]byte("target-2"))
	called := false
	q.QueryByHashFn(account, InvalidHeight, hash, false, func(acks []QueryAck) []QueryCallbackStatus {
		called = true
		verdicts := make([]QueryCallbackStatus, len(acks))
		verdicts[len(verdicts)-1] = QueryFinish
		return verdicts
	})

	const seq = 1
	q.ProcessAck(seq, QueryStatusSuccess, nil, "peer-1")
	if !called {
		t.Fatalf("callback was not invoked")
	}
	if got := q.Size(); got != 0 {
		t.Fatalf("expected query retired after QueryFinish verdict, size=%d", got)
	}
}

func TestRequestForDerivesQueryFromGapKind(t *testing.T) {
	sender := &fakeSender{peer: "peer-1"}
	q := NewBlockQueries(sender)

	var account Account
	account[0] = 3
	b := NewTxBlock(OpcodeSend, 0, 0, 1600000000, 5, account, Blake2b256([]byte("prev")), account, NewBalance(0), [32]byte{}, nil)

	q.RequestFor(b, NewError(ErrBlockGapPrevious, "missing previous"))
	if got := q.Size(); got != 1 {
		t.Fatalf("expected 1 query after RequestFor, got %d", got)
	}
}

// TestResolveAnswersByHeightByHashAndByPrevious covers the responder
// side of spec §4.1's block_get/block_successor_set: Resolve must
// answer all three QueryBy selectors directly against the ledger.
func TestResolveAnswersByHeightByHashAndByPrevious(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)

	genesis := NewTxBlock(OpcodeReceive, 512, 1, 1600000000, 0, account, ZeroHash, account, NewBalance(1000), [32]byte{}, nil)
	dir := t.TempDir()
	ledger, err := OpenLedger(LedgerConfig{DataPath: dir, Genesis: genesis, Parameters: TestNetworkParameters})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	next := signedSend(account, priv, genesis.Hash(), 1, NewBalance(0), account)
	if err := ledger.Update(func(tx *Tx) error { return tx.AppendBlock(next) }); err != nil {
		t.Fatalf("append: %v", err)
	}

	byHeight, err := Resolve(ledger, OutgoingQuery{By: QueryByHeight, Account: account, Height: 1})
	if err != nil {
		t.Fatalf("resolve by height: %v", err)
	}
	if byHeight.Hash() != next.Hash() {
		t.Fatalf("resolve by height returned wrong block")
	}

	byHash, err := Resolve(ledger, OutgoingQuery{By: QueryByHash, Hash: genesis.Hash()})
	if err != nil {
		t.Fatalf("resolve by hash: %v", err)
	}
	if byHash.Hash() != genesis.Hash() {
		t.Fatalf("resolve by hash returned wrong block")
	}

	byPrevious, err := Resolve(ledger, OutgoingQuery{By: QueryByPrevious, Hash: genesis.Hash()})
	if err != nil {
		t.Fatalf("resolve by previous: %v", err)
	}
	if byPrevious.Hash() != next.Hash() {
		t.Fatalf("resolve by previous returned wrong block")
	}
}

// TestResolveByPreviousMissesWithoutSuccessor covers the no-successor-yet
// edge case: a hash with nothing built on top of it yet must surface a
// not-found error rather than a zero-value block.
func TestResolveByPreviousMissesWithoutSuccessor(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)

	genesis := NewTxBlock(OpcodeReceive, 512, 1, 1600000000, 0, account, ZeroHash, account, NewBalance(1000), [32]byte{}, nil)
	dir := t.TempDir()
	ledger, err := OpenLedger(LedgerConfig{DataPath: dir, Genesis: genesis, Parameters: TestNetworkParameters})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	_, err = Resolve(ledger, OutgoingQuery{By: QueryByPrevious, Hash: genesis.Hash()})
	if CodeOf(err) != ErrStoreNotFound {
		t.Fatalf("expected ErrStoreNotFound for a childless hash, got %v", err)
	}
}
