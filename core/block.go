package core

import "fmt"

// BlockType identifies which of the three concrete block layouts a Block
// value uses. Grounded on original_source/rai/common/blocks.hpp BlockType.
type BlockType uint8

const (
	BlockTypeInvalid BlockType = 0
	BlockTypeTx       BlockType = 1
	BlockTypeRep      BlockType = 2
	BlockTypeAd       BlockType = 3
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeTx:
		return "transaction"
	case BlockTypeRep:
		return "representative"
	case BlockTypeAd:
		return "airdrop"
	default:
		return "invalid"
	}
}

// BlockOpcode identifies the semantic effect of a block. Grounded on
// original_source/rai/common/blocks.hpp BlockOpcode.
type BlockOpcode uint8

const (
	OpcodeInvalid BlockOpcode = 0
	OpcodeSend    BlockOpcode = 1
	OpcodeReceive BlockOpcode = 2
	OpcodeChange  BlockOpcode = 3
	OpcodeCredit  BlockOpcode = 4
	OpcodeReward  BlockOpcode = 5
	OpcodeDestroy BlockOpcode = 6
	OpcodeBind    BlockOpcode = 7
)

func (o BlockOpcode) String() string {
	switch o {
	case OpcodeSend:
		return "send"
	case OpcodeReceive:
		return "receive"
	case OpcodeChange:
		return "change"
	case OpcodeCredit:
		return "credit"
	case OpcodeReward:
		return "reward"
	case OpcodeDestroy:
		return "destroy"
	case OpcodeBind:
		return "bind"
	default:
		return "invalid"
	}
}

// txOpcodes and repOpcodes and adOpcodes give the opcode×type validity
// matrix: a TxBlock carries any of send/receive/change/credit/reward/
// destroy/bind, a RepBlock only change (it exists purely to update a
// representative without touching balance or credit), and an AdBlock only
// receive (it delivers an airdrop payout).
var txOpcodes = map[BlockOpcode]bool{
	OpcodeSend: true, OpcodeReceive: true, OpcodeChange: true,
	OpcodeCredit: true, OpcodeReward: true, OpcodeDestroy: true, OpcodeBind: true,
}
var repOpcodes = map[BlockOpcode]bool{OpcodeChange: true}
var adOpcodes = map[BlockOpcode]bool{OpcodeReceive: true}

// CheckOpcode reports whether opcode is valid for blocks of type t.
func CheckOpcode(t BlockType, opcode BlockOpcode) bool {
	switch t {
	case BlockTypeTx:
		return txOpcodes[opcode]
	case BlockTypeRep:
		return repOpcodes[opcode]
	case BlockTypeAd:
		return adOpcodes[opcode]
	default:
		return false
	}
}

// InvalidHeight is the sentinel "no such height" marker, matching
// original_source/rai/common/blocks.hpp Block::INVALID_HEIGHT.
const InvalidHeight = ^uint64(0)

// Block is the common interface implemented by TxBlock, RepBlock and
// AdBlock. Every accessor mirrors a field of the binary layout in
// SPEC_FULL.md §6; HashBytes and Hash cover exactly the fields committed
// to the BLAKE2b-256 digest (everything but the signature).
type Block interface {
	Type() BlockType
	Opcode() BlockOpcode
	Credit() uint16
	Counter() uint32
	Timestamp() uint64
	Height() uint64
	Account() Account
	Previous() BlockHash
	Representative() Account
	HasRepresentative() bool
	Balance() Balance
	Link() [32]byte
	Extensions() []byte
	Chain() uint32
	HasChain() bool
	Signature() Signature
	SetSignature(Signature)

	HashBytes() []byte
	Hash() BlockHash
	Serialize() []byte
	CheckSignature() bool
}

// CheckExtensionsLength reports whether an extensions payload length is
// within the wire limit (MaxExtensionsSize, boundary behavior in §8).
func CheckExtensionsLength(n int) bool {
	return n >= 0 && n <= MaxExtensionsSize
}

func blockHash(data []byte) BlockHash {
	return Blake2b256(data)
}

func verifySignature(account Account, hashBytes []byte, sig Signature) bool {
	return account.Verify(hashBytes, sig)
}

func checkHeightPrevious(height uint64, previous BlockHash) error {
	if height == 0 && !previous.IsZero() {
		return NewError(ErrBlockPrevious, "height 0 requires zero previous")
	}
	if height != 0 && previous.IsZero() {
		return NewError(ErrBlockPrevious, "nonzero height requires nonzero previous")
	}
	return nil
}

// ValidateStructural performs the type-independent structural checks every
// block must pass before it is handed to the processor: opcode validity,
// extensions length, and the height/previous boundary rule.
func ValidateStructural(b Block) error {
	if !CheckOpcode(b.Type(), b.Opcode()) {
		return NewError(ErrBlockOpcode, "opcode %s invalid for type %s", b.Opcode(), b.Type())
	}
	if !CheckExtensionsLength(len(b.Extensions())) {
		return NewError(ErrBlockExtensionsLength, "extensions length %d exceeds %d", len(b.Extensions()), MaxExtensionsSize)
	}
	if err := checkHeightPrevious(b.Height(), b.Previous()); err != nil {
		return err
	}
	if b.Opcode() == OpcodeCredit && b.Credit() == 0 {
		return NewError(ErrBlockCreditZero, "credit opcode requires nonzero credit")
	}
	if b.HasChain() && !IsKnownChain(b.Chain()) {
		return NewError(ErrBlockUnknownChain, "unknown chain tag %d", b.Chain())
	}
	return nil
}

// ValidateTimestamp rejects a block whose timestamp is more than
// MaxTimestampDiff seconds ahead of now, the boundary behavior named in §8.
func ValidateTimestamp(b Block, now uint64) error {
	if b.Timestamp() > now+MaxTimestampDiff {
		return NewError(ErrBlockTimestamp, "timestamp %d exceeds now+%d", b.Timestamp(), MaxTimestampDiff)
	}
	return nil
}

func putFixed32(buf []byte, v [32]byte) []byte { return append(buf, v[:]...) }

func fmtHex(b []byte) string { return fmt.Sprintf("%x", b) }
