package core

import "fmt"

// TxBlock is the general-purpose block type: send, receive, change,
// credit, reward, destroy and bind all travel as a TxBlock. Layout
// grounded on SPEC_FULL.md §6 / original_source/rai/common/blocks.hpp
// TxBlock.
type TxBlock struct {
	opcode         BlockOpcode
	credit         uint16
	counter        uint32
	timestamp      uint64
	height         uint64
	account        Account
	previous       BlockHash
	representative Account
	balance        Balance
	link           [32]byte
	extensions     []byte
	signature      Signature
}

// NewTxBlock constructs an unsigned TxBlock from its fields.
func NewTxBlock(opcode BlockOpcode, credit uint16, counter uint32, timestamp, height uint64,
	account Account, previous BlockHash, representative Account, balance Balance,
	link [32]byte, extensions []byte) *TxBlock {
	return &TxBlock{
		opcode: opcode, credit: credit, counter: counter, timestamp: timestamp, height: height,
		account: account, previous: previous, representative: representative, balance: balance,
		link: link, extensions: append([]byte(nil), extensions...),
	}
}

func (b *TxBlock) Type() BlockType           { return BlockTypeTx }
func (b *TxBlock) Opcode() BlockOpcode       { return b.opcode }
func (b *TxBlock) Credit() uint16            { return b.credit }
func (b *TxBlock) Counter() uint32           { return b.counter }
func (b *TxBlock) Timestamp() uint64         { return b.timestamp }
func (b *TxBlock) Height() uint64            { return b.height }
func (b *TxBlock) Account() Account          { return b.account }
func (b *TxBlock) Previous() BlockHash       { return b.previous }
func (b *TxBlock) Representative() Account   { return b.representative }
func (b *TxBlock) HasRepresentative() bool   { return !b.representative.IsZero() }
func (b *TxBlock) Balance() Balance          { return b.balance }
func (b *TxBlock) Link() [32]byte            { return b.link }
func (b *TxBlock) Extensions() []byte        { return b.extensions }
func (b *TxBlock) Chain() uint32             { return 0 }
func (b *TxBlock) HasChain() bool            { return false }
func (b *TxBlock) Signature() Signature      { return b.signature }
func (b *TxBlock) SetSignature(s Signature)  { b.signature = s }

// HashBytes returns the hash-covered prefix of the wire encoding: every
// field up to but excluding the signature.
func (b *TxBlock) HashBytes() []byte {
	buf := make([]byte, 0, 1+1+2+4+8+8+32+32+32+16+32+4+len(b.extensions))
	buf = append(buf, byte(BlockTypeTx), byte(b.opcode))
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
	putUint32(tmp4, uint32(len(b.extensions)))
	buf = append(buf, tmp4...)
	buf = append(buf, b.extensions...)
	return buf
}

func (b *TxBlock) Hash() BlockHash { return blockHash(b.HashBytes()) }

// Serialize renders the full wire encoding, hash-covered bytes followed
// by the 64-byte signature.
func (b *TxBlock) Serialize() []byte {
	buf := b.HashBytes()
	return append(buf, b.signature.Bytes()...)
}

func (b *TxBlock) CheckSignature() bool {
	return verifySignature(b.account, b.HashBytes(), b.signature)
}

// DeserializeTxBlock parses a wire-encoded TxBlock, validating the
// extensions length before allocating the payload.
func DeserializeTxBlock(data []byte) (*TxBlock, error) {
	const fixed = 1 + 1 + 2 + 4 + 8 + 8 + 32 + 32 + 32 + 16 + 32 + 4
	if len(data) < fixed {
		return nil, NewError(ErrStoreSerialization, "tx block too short: %d bytes", len(data))
	}
	if BlockType(data[0]) != BlockTypeTx {
		return nil, NewError(ErrStoreSerialization, "unexpected block type %d", data[0])
	}
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
	extLen := int(getUint32(data[off:]))
	off += 4
	if !CheckExtensionsLength(extLen) {
		return nil, NewError(ErrBlockExtensionsLength, "extensions length %d exceeds %d", extLen, MaxExtensionsSize)
	}
	if len(data) < off+extLen+64 {
		return nil, NewError(ErrStoreSerialization, "tx block truncated")
	}
	extensions := append([]byte(nil), data[off:off+extLen]...)
	off += extLen
	var sig Signature
	copy(sig[:], data[off:off+64])

	return &TxBlock{
		opcode: opcode, credit: credit, counter: counter, timestamp: timestamp, height: height,
		account: account, previous: previous, representative: representative, balance: balance,
		link: link, extensions: extensions, signature: sig,
	}, nil
}

func (b *TxBlock) String() string {
	return fmt.Sprintf("TxBlock{opcode=%s account=%s height=%d}", b.opcode, b.account.Hex(), b.height)
}
