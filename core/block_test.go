package core

import (
	"bytes"
	"crypto/ed25519"
	"testing"
)

func signedTxBlock(t *testing.T) (*TxBlock, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)
	var rep Account
	copy(rep[:], pub)
	link := Blake2b256([]byte("link"))
	b := NewTxBlock(OpcodeSend, 512, 1, 1600000000, 3, account, BlockHash(Blake2b256([]byte("prev"))), rep,
		NewBalance(1000), link, []byte("ext"))
	sig := ed25519.Sign(priv, b.HashBytes())
	var s Signature
	copy(s[:], sig)
	b.SetSignature(s)
	return b, pub
}

func TestTxBlockRoundTrip(t *testing.T) {
	b, _ := signedTxBlock(t)
	wire := b.Serialize()

	got, err := DeserializeTxBlock(wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !bytes.Equal(got.HashBytes(), b.HashBytes()) {
		t.Fatalf("hash bytes mismatch after round trip")
	}
	if got.Hash() != b.Hash() {
		t.Fatalf("hash changed across serialize/deserialize")
	}
	if got.Account() != b.Account() || got.Height() != b.Height() || got.Opcode() != b.Opcode() {
		t.Fatalf("field mismatch after round trip")
	}
	if !got.CheckSignature() {
		t.Fatalf("signature failed to verify after round trip")
	}
}

func TestTxBlockCheckSignatureRejectsTamper(t *testing.T) {
	b, _ := signedTxBlock(t)
	if !b.CheckSignature() {
		t.Fatalf("expected valid signature before tamper")
	}
	b.timestamp++
	if b.CheckSignature() {
		t.Fatalf("signature check should fail after tampering with hashed field")
	}
}

func TestRepBlockRoundTripWithChain(t *testing.T) {
	var account, rep Account
	copy(account[:], bytes.Repeat([]byte{1}, 32))
	copy(rep[:], bytes.Repeat([]byte{2}, 32))
	var link [32]byte
	copy(link[:], rep[:])
	b := NewRepBlock(10, 1, 1600000000, 5, account, BlockHash(Blake2b256([]byte("prev"))), NewBalance(42), link, 7, true)

	wire := b.Serialize()
	got, err := DeserializeRepBlock(wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !got.HasChain() || got.Chain() != 7 {
		t.Fatalf("chain tag lost across round trip")
	}
	if got.Hash() != b.Hash() {
		t.Fatalf("hash changed across serialize/deserialize")
	}
}

func TestRepBlockRoundTripNoChain(t *testing.T) {
	var account Account
	copy(account[:], bytes.Repeat([]byte{3}, 32))
	var link [32]byte
	b := NewRepBlock(10, 1, 1600000000, 5, account, BlockHash(Blake2b256([]byte("prev"))), NewBalance(0), link, 0, false)

	wire := b.Serialize()
	got, err := DeserializeRepBlock(wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.HasChain() {
		t.Fatalf("expected no chain tag")
	}
	if got.Hash() != b.Hash() {
		t.Fatalf("hash changed across serialize/deserialize")
	}
}

func TestAdBlockRoundTrip(t *testing.T) {
	var account, rep Account
	copy(account[:], bytes.Repeat([]byte{4}, 32))
	copy(rep[:], bytes.Repeat([]byte{5}, 32))
	var link [32]byte
	copy(link[:], rep[:])
	b := NewAdBlock(1, 1, 1600000000, 0, account, ZeroHash, rep, NewBalance(9999), link)

	wire := b.Serialize()
	got, err := DeserializeAdBlock(wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Hash() != b.Hash() {
		t.Fatalf("hash changed across serialize/deserialize")
	}
	if got.Opcode() != OpcodeReceive {
		t.Fatalf("airdrop block must carry receive opcode")
	}
}

func TestCheckOpcodeMatrix(t *testing.T) {
	cases := []struct {
		typ BlockType
		op  BlockOpcode
		ok  bool
	}{
		{BlockTypeTx, OpcodeSend, true},
		{BlockTypeTx, OpcodeBind, true},
		{BlockTypeRep, OpcodeChange, true},
		{BlockTypeRep, OpcodeSend, false},
		{BlockTypeAd, OpcodeReceive, true},
		{BlockTypeAd, OpcodeSend, false},
	}
	for _, c := range cases {
		if got := CheckOpcode(c.typ, c.op); got != c.ok {
			t.Errorf("CheckOpcode(%s, %s) = %v, want %v", c.typ, c.op, got, c.ok)
		}
	}
}

func TestValidateStructuralHeightZeroRequiresZeroPrevious(t *testing.T) {
	var account Account
	b := NewTxBlock(OpcodeReceive, 1, 1, 1600000000, 0, account, Blake2b256([]byte("nonzero")), account, NewBalance(1), [32]byte{}, nil)
	if err := ValidateStructural(b); CodeOf(err) != ErrBlockPrevious {
		t.Fatalf("expected ErrBlockPrevious, got %v", err)
	}
}

func TestValidateStructuralExtensionsTooLong(t *testing.T) {
	var account Account
	ext := make([]byte, MaxExtensionsSize+1)
	b := NewTxBlock(OpcodeSend, 1, 1, 1600000000, 1, account, Blake2b256([]byte("prev")), account, NewBalance(1), [32]byte{}, ext)
	if err := ValidateStructural(b); CodeOf(err) != ErrBlockExtensionsLength {
		t.Fatalf("expected ErrBlockExtensionsLength, got %v", err)
	}
}

func TestValidateStructuralCreditZeroRejected(t *testing.T) {
	var account Account
	b := NewTxBlock(OpcodeCredit, 0, 1, 1600000000, 1, account, Blake2b256([]byte("prev")), account, NewBalance(1), [32]byte{}, nil)
	if err := ValidateStructural(b); CodeOf(err) != ErrBlockCreditZero {
		t.Fatalf("expected ErrBlockCreditZero, got %v", err)
	}
}

func TestValidateStructuralRejectsUnknownChain(t *testing.T) {
	var account, rep Account
	copy(account[:], bytes.Repeat([]byte{6}, 32))
	copy(rep[:], bytes.Repeat([]byte{7}, 32))
	var link [32]byte
	copy(link[:], rep[:])
	b := NewRepBlock(1, 1, 1600000000, 1, account, Blake2b256([]byte("prev")), NewBalance(0), link, 999999, true)
	if err := ValidateStructural(b); CodeOf(err) != ErrBlockUnknownChain {
		t.Fatalf("expected ErrBlockUnknownChain, got %v", err)
	}
}

func TestValidateStructuralAcceptsKnownChain(t *testing.T) {
	var account, rep Account
	copy(account[:], bytes.Repeat([]byte{8}, 32))
	copy(rep[:], bytes.Repeat([]byte{9}, 32))
	var link [32]byte
	copy(link[:], rep[:])
	b := NewRepBlock(1, 1, 1600000000, 1, account, Blake2b256([]byte("prev")), NewBalance(0), link, uint32(ChainEthereum), true)
	if err := ValidateStructural(b); err != nil {
		t.Fatalf("unexpected error for known chain: %v", err)
	}
}

func TestValidateTimestampFuture(t *testing.T) {
	var account Account
	now := uint64(1600000000)
	b := NewTxBlock(OpcodeSend, 1, 1, now+MaxTimestampDiff+1, 1, account, Blake2b256([]byte("prev")), account, NewBalance(1), [32]byte{}, nil)
	if err := ValidateTimestamp(b, now); CodeOf(err) != ErrBlockTimestamp {
		t.Fatalf("expected ErrBlockTimestamp, got %v", err)
	}
}
