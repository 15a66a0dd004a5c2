package core

import "fmt"

// RepBlock records a change-of-representative only; it never moves
// balance or spends credit. The optional 4-byte chain tag lets it also
// bind a cross-chain identity when paired with a `bind` extension at a
// higher layer. Layout grounded on SPEC_FULL.md §6 /
// original_source/rai/common/blocks.hpp RepBlock.
type RepBlock struct {
	opcode    BlockOpcode
	credit    uint16
	counter   uint32
	timestamp uint64
	height    uint64
	account   Account
	previous  BlockHash
	balance   Balance
	link      [32]byte
	chain     uint32
	hasChain  bool
	signature Signature
}

// NewRepBlock constructs an unsigned RepBlock. Pass hasChain=false and
// chain=0 for the common case of a plain representative change.
func NewRepBlock(credit uint16, counter uint32, timestamp, height uint64, account Account,
	previous BlockHash, balance Balance, link [32]byte, chain uint32, hasChain bool) *RepBlock {
	return &RepBlock{
		opcode: OpcodeChange, credit: credit, counter: counter, timestamp: timestamp, height: height,
		account: account, previous: previous, balance: balance, link: link,
		chain: chain, hasChain: hasChain,
	}
}

func (b *RepBlock) Type() BlockType          { return BlockTypeRep }
func (b *RepBlock) Opcode() BlockOpcode      { return b.opcode }
func (b *RepBlock) Credit() uint16           { return b.credit }
func (b *RepBlock) Counter() uint32          { return b.counter }
func (b *RepBlock) Timestamp() uint64        { return b.timestamp }
func (b *RepBlock) Height() uint64           { return b.height }
func (b *RepBlock) Account() Account         { return b.account }
func (b *RepBlock) Previous() BlockHash      { return b.previous }
func (b *RepBlock) Representative() Account  { var a Account; copy(a[:], b.link[:]); return a }
func (b *RepBlock) HasRepresentative() bool  { return true }
func (b *RepBlock) Balance() Balance         { return b.balance }
func (b *RepBlock) Link() [32]byte           { return b.link }
func (b *RepBlock) Extensions() []byte       { return nil }
func (b *RepBlock) Chain() uint32            { return b.chain }
func (b *RepBlock) HasChain() bool           { return b.hasChain }
func (b *RepBlock) Signature() Signature     { return b.signature }
func (b *RepBlock) SetSignature(s Signature) { b.signature = s }

func (b *RepBlock) HashBytes() []byte {
	size := 1 + 1 + 2 + 4 + 8 + 8 + 32 + 32 + 16 + 32
	if b.hasChain {
		size += 4
	}
	buf := make([]byte, 0, size)
	buf = append(buf, byte(BlockTypeRep), byte(b.opcode))
	tmp2 := make([]byte, 2)
	putUint16(tmp2, b.credit)
	buf = append(buf, tmp2...)
	tmp4 := make([]byte, 4)
	putUint32(tmp4, b.counter)
	buf = append(buf, tmp4...)
	tmp8 := make([]byte, 8)
	putUint64(tmp8, b.timestamp)
	buf = append(buf, tmp8...)
	putUint64(tmp8, b.height)
	buf = append(buf, tmp8...)
	buf = append(buf, b.account.Bytes()...)
	buf = append(buf, b.previous.Bytes()...)
	bal := b.balance.Bytes16()
	buf = append(buf, bal[:]...)
	buf = append(buf, b.link[:]...)
	if b.hasChain {
		putUint32(tmp4, b.chain)
		buf = append(buf, tmp4...)
	}
	return buf
}

func (b *RepBlock) Hash() BlockHash { return blockHash(b.HashBytes()) }

func (b *RepBlock) Serialize() []byte {
	return append(b.HashBytes(), b.signature.Bytes()...)
}

func (b *RepBlock) CheckSignature() bool {
	return verifySignature(b.account, b.HashBytes(), b.signature)
}

// DeserializeRepBlock parses a wire-encoded RepBlock. The chain tag is
// present only when the remaining length after the fixed fields and
// signature leaves exactly 4 spare bytes.
func DeserializeRepBlock(data []byte) (*RepBlock, error) {
	const fixedNoChain = 1 + 1 + 2 + 4 + 8 + 8 + 32 + 32 + 16 + 32 + 64
	const fixedChain = fixedNoChain + 4
	if len(data) != fixedNoChain && len(data) != fixedChain {
		return nil, NewError(ErrStoreSerialization, "rep block unexpected length %d", len(data))
	}
	if BlockType(data[0]) != BlockTypeRep {
		return nil, NewError(ErrStoreSerialization, "unexpected block type %d", data[0])
	}
	hasChain := len(data) == fixedChain
	off := 1
	opcode := BlockOpcode(data[off])
	off++
	credit := getUint16(data[off:])
	off += 2
	counter := getUint32(data[off:])
	off += 4
	timestamp := getUint64(data[off:])
	off += 8
	height := getUint64(data[off:])
	off += 8
	var account Account
	copy(account[:], data[off:off+32])
	off += 32
	var previous BlockHash
	copy(previous[:], data[off:off+32])
	off += 32
	var bal16 [16]byte
	copy(bal16[:], data[off:off+16])
	off += 16
	balance := BalanceFromBytes16(bal16)
	var link [32]byte
	copy(link[:], data[off:off+32])
	off += 32
	var chain uint32
	if hasChain {
		chain = getUint32(data[off:])
		off += 4
	}
	var sig Signature
	copy(sig[:], data[off:off+64])

	return &RepBlock{
		opcode: opcode, credit: credit, counter: counter, timestamp: timestamp, height: height,
		account: account, previous: previous, balance: balance, link: link,
		chain: chain, hasChain: hasChain, signature: sig,
	}, nil
}

func (b *RepBlock) String() string {
	return fmt.Sprintf("RepBlock{account=%s height=%d rep=%s}", b.account.Hex(), b.height, b.Representative().Hex())
}
