package core

import "fmt"

// AdBlock delivers an airdrop payout; its only opcode is receive. Layout
// grounded on SPEC_FULL.md §6 / original_source/rai/common/blocks.hpp
// AdBlock.
type AdBlock struct {
	credit         uint16
	counter        uint32
	timestamp      uint64
	height         uint64
	account        Account
	previous       BlockHash
	representative Account
	balance        Balance
	link           [32]byte
	signature      Signature
}

// NewAdBlock constructs an unsigned AdBlock.
func NewAdBlock(credit uint16, counter uint32, timestamp, height uint64, account Account,
	previous BlockHash, representative Account, balance Balance, link [32]byte) *AdBlock {
	return &AdBlock{
		credit: credit, counter: counter, timestamp: timestamp, height: height,
		account: account, previous: previous, representative: representative,
		balance: balance, link: link,
	}
}

func (b *AdBlock) Type() BlockType          { return BlockTypeAd }
func (b *AdBlock) Opcode() BlockOpcode      { return OpcodeReceive }
func (b *AdBlock) Credit() uint16           { return b.credit }
func (b *AdBlock) Counter() uint32          { return b.counter }
func (b *AdBlock) Timestamp() uint64        { return b.timestamp }
func (b *AdBlock) Height() uint64           { return b.height }
func (b *AdBlock) Account() Account         { return b.account }
func (b *AdBlock) Previous() BlockHash      { return b.previous }
func (b *AdBlock) Representative() Account  { return b.representative }
func (b *AdBlock) HasRepresentative() bool  { return !b.representative.IsZero() }
func (b *AdBlock) Balance() Balance         { return b.balance }
func (b *AdBlock) Link() [32]byte           { return b.link }
func (b *AdBlock) Extensions() []byte       { return nil }
func (b *AdBlock) Chain() uint32            { return 0 }
func (b *AdBlock) HasChain() bool           { return false }
func (b *AdBlock) Signature() Signature     { return b.signature }
func (b *AdBlock) SetSignature(s Signature) { b.signature = s }

func (b *AdBlock) HashBytes() []byte {
	buf := make([]byte, 0, 1+1+2+4+8+8+32+32+32+16+32)
	buf = append(buf, byte(BlockTypeAd), byte(OpcodeReceive))
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
	buf = append(buf, b.representative.Bytes()...)
	bal := b.balance.Bytes16()
	buf = append(buf, bal[:]...)
	buf = append(buf, b.link[:]...)
	return buf
}

func (b *AdBlock) Hash() BlockHash { return blockHash(b.HashBytes()) }

func (b *AdBlock) Serialize() []byte {
	return append(b.HashBytes(), b.signature.Bytes()...)
}

func (b *AdBlock) CheckSignature() bool {
	return verifySignature(b.account, b.HashBytes(), b.signature)
}

// DeserializeAdBlock parses a wire-encoded AdBlock.
func DeserializeAdBlock(data []byte) (*AdBlock, error) {
	const fixed = 1 + 1 + 2 + 4 + 8 + 8 + 32 + 32 + 32 + 16 + 32 + 64
	if len(data) != fixed {
		return nil, NewError(ErrStoreSerialization, "ad block unexpected length %d", len(data))
	}
	if BlockType(data[0]) != BlockTypeAd {
		return nil, NewError(ErrStoreSerialization, "unexpected block type %d", data[0])
	}
	if BlockOpcode(data[1]) != OpcodeReceive {
		return nil, NewError(ErrBlockOpcode, "ad block opcode must be receive")
	}
	off := 2
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
	var representative Account
	copy(representative[:], data[off:off+32])
	off += 32
	var bal16 [16]byte
	copy(bal16[:], data[off:off+16])
	off += 16
	balance := BalanceFromBytes16(bal16)
	var link [32]byte
	copy(link[:], data[off:off+32])
	off += 32
	var sig Signature
	copy(sig[:], data[off:off+64])

	return &AdBlock{
		credit: credit, counter: counter, timestamp: timestamp, height: height,
		account: account, previous: previous, representative: representative,
		balance: balance, link: link, signature: sig,
	}, nil
}

func (b *AdBlock) String() string {
	return fmt.Sprintf("AdBlock{account=%s height=%d balance=%s}", b.account.Hex(), b.height, b.balance)
}

// DeserializeBlock dispatches on the leading type byte to the correct
// concrete deserializer, the entry point for reading a block off the
// wire or out of the ledger.
func DeserializeBlock(data []byte) (Block, error) {
	if len(data) < 1 {
		return nil, NewError(ErrStoreSerialization, "empty block data")
	}
	switch BlockType(data[0]) {
	case BlockTypeTx:
		return DeserializeTxBlock(data)
	case BlockTypeRep:
		return DeserializeRepBlock(data)
	case BlockTypeAd:
		return DeserializeAdBlock(data)
	default:
		return nil, NewError(ErrStoreSerialization, "unknown block type %d", data[0])
	}
}
