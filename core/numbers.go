package core

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// Account is a 256-bit Ed25519 public key and the identifier of an
// account chain.
type Account [32]byte

// ZeroAccount is the sentinel "no account" value.
var ZeroAccount Account

func (a Account) Hex() string   { return hex.EncodeToString(a[:]) }
func (a Account) String() string { return a.Hex() }
func (a Account) IsZero() bool  { return a == ZeroAccount }
func (a Account) Bytes() []byte { return a[:] }

// Verify checks an Ed25519 signature over msg using a as the public key.
func (a Account) Verify(msg []byte, sig Signature) bool {
	return ed25519.Verify(a[:], msg, sig[:])
}

// BlockHash is a BLAKE2b-256 digest identifying a block.
type BlockHash [32]byte

var ZeroHash BlockHash

func (h BlockHash) Hex() string    { return hex.EncodeToString(h[:]) }
func (h BlockHash) String() string { return h.Hex() }
func (h BlockHash) IsZero() bool   { return h == ZeroHash }
func (h BlockHash) Bytes() []byte  { return h[:] }

// Less implements the deterministic tie-break used by Elections when two
// votes for different hashes share a timestamp: the lower hash wins.
// See Open Question resolution in SPEC_FULL.md §9.1.
func (h BlockHash) Less(o BlockHash) bool {
	return bytes.Compare(h[:], o[:]) < 0
}

// Blake2b256 hashes data the way every block hash and vote digest in the
// system is computed.
func Blake2b256(data ...[]byte) BlockHash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // only fails on bad key length, which we never pass
	}
	for _, d := range data {
		h.Write(d)
	}
	var out BlockHash
	copy(out[:], h.Sum(nil))
	return out
}

// Signature is a 64-byte Ed25519 signature.
type Signature [64]byte

func (s Signature) Bytes() []byte { return s[:] }

// Balance is a 128-bit unsigned amount, stored big-endian on the wire and
// in the ledger. It wraps math/big.Int for arithmetic.
type Balance struct {
	v *big.Int
}

// NewBalance builds a Balance from a uint64, the common case for tests
// and genesis constants.
func NewBalance(v uint64) Balance {
	return Balance{v: new(big.Int).SetUint64(v)}
}

// BalanceFromBig wraps an existing big.Int. The value must be non-negative
// and fit in 128 bits; callers at the ledger boundary are responsible for
// validating this before it reaches consensus code.
func BalanceFromBig(v *big.Int) Balance {
	return Balance{v: new(big.Int).Set(v)}
}

// big returns the underlying value, treating the zero Balance{} (as
// produced by a fresh map entry or a var declaration) as zero rather
// than a nil dereference.
func (b Balance) big() *big.Int {
	if b.v == nil {
		return new(big.Int)
	}
	return b.v
}

func (b Balance) Big() *big.Int { return new(big.Int).Set(b.big()) }

func (b Balance) Add(o Balance) Balance { return BalanceFromBig(new(big.Int).Add(b.big(), o.big())) }
func (b Balance) Sub(o Balance) Balance { return BalanceFromBig(new(big.Int).Sub(b.big(), o.big())) }
func (b Balance) Cmp(o Balance) int     { return b.big().Cmp(o.big()) }
func (b Balance) IsZero() bool          { return b.big().Sign() == 0 }
func (b Balance) String() string        { return b.big().String() }

// Bytes16 renders the amount as a fixed 16-byte big-endian field, the
// on-wire and on-disk representation named in the binary block format.
func (b Balance) Bytes16() [16]byte {
	var out [16]byte
	raw := b.big().Bytes()
	if len(raw) > 16 {
		raw = raw[len(raw)-16:] // should never happen for valid balances
	}
	copy(out[16-len(raw):], raw)
	return out
}

// BalanceFromBytes16 parses the fixed 16-byte big-endian field back into
// a Balance.
func BalanceFromBytes16(b [16]byte) Balance {
	return BalanceFromBig(new(big.Int).SetBytes(b[:]))
}

func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
func getUint16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }
func getUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
func getUint64(b []byte) uint64    { return binary.BigEndian.Uint64(b) }
