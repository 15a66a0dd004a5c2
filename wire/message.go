// Package wire implements the node's message header and QUERY payload
// taxonomy: encode/decode only, no transport. Grounded on spec.md §6's
// binary message format and adapted from the teacher's hand-rolled
// big-endian SubBlockHeader.Hash() style in core/consensus.go.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/raicore/raicore/core"
)

// MessageType enumerates the wire message taxonomy.
type MessageType uint8

const (
	TypeInvalid MessageType = iota
	TypeHandshake
	TypeKeepalive
	TypePublish
	TypeConfirm
	TypeQuery
	TypeFork
	TypeConflict
	TypeBootstrap
	TypeWeight
	TypeCrosschain
)

func (t MessageType) String() string {
	switch t {
	case TypeHandshake:
		return "HANDSHAKE"
	case TypeKeepalive:
		return "KEEPLIVE"
	case TypePublish:
		return "PUBLISH"
	case TypeConfirm:
		return "CONFIRM"
	case TypeQuery:
		return "QUERY"
	case TypeFork:
		return "FORK"
	case TypeConflict:
		return "CONFLICT"
	case TypeBootstrap:
		return "BOOTSTRAP"
	case TypeWeight:
		return "WEIGHT"
	case TypeCrosschain:
		return "CROSSCHAIN"
	default:
		return "INVALID"
	}
}

// Magic bytes distinguish network (live/beta/test), matching
// core.Network's TEST/BETA/LIVE split.
const (
	MagicLive byte = 'A'
	MagicBeta byte = 'B'
	MagicTest byte = 'T'
)

func magicFor(n core.Network) byte {
	switch n {
	case core.NetworkBeta:
		return MagicBeta
	case core.NetworkTest:
		return MagicTest
	default:
		return MagicLive
	}
}

// Flag bits in the header's flags byte.
const (
	FlagProxy byte = 1 << iota
)

const headerLen = 2 + 1 + 1 + 1 + 1 + 2

// Header is the fixed-length prefix on every wire message.
type Header struct {
	Magic          byte
	VersionUsing   uint8
	VersionMin     uint8
	Type           MessageType
	Flags          byte
	Extension      uint16
	PeerEndpoint   [6]byte // only meaningful if FlagProxy set
	HasPeerEndpoint bool
}

// NewHeader builds a header for network n and message type t.
func NewHeader(n core.Network, t MessageType, versionUsing, versionMin uint8) Header {
	return Header{Magic: magicFor(n), VersionUsing: versionUsing, VersionMin: versionMin, Type: t}
}

// Encode renders the header, appending the 6-byte peer endpoint only
// when FlagProxy is set.
func (h Header) Encode() []byte {
	out := make([]byte, headerLen, headerLen+6)
	out[0] = h.Magic
	out[1] = h.Magic // magic(2): both bytes carry the network tag per spec.md §6
	out[2] = h.VersionUsing
	out[3] = h.VersionMin
	out[4] = byte(h.Type)
	out[5] = h.Flags
	binary.BigEndian.PutUint16(out[6:8], h.Extension)
	if h.Flags&FlagProxy != 0 {
		out = append(out, h.PeerEndpoint[:]...)
	}
	return out
}

// DecodeHeader parses a header prefix, returning the number of bytes
// consumed.
func DecodeHeader(data []byte) (Header, int, error) {
	if len(data) < headerLen {
		return Header{}, 0, fmt.Errorf("wire: short header: %d bytes", len(data))
	}
	h := Header{
		Magic:        data[0],
		VersionUsing: data[2],
		VersionMin:   data[3],
		Type:         MessageType(data[4]),
		Flags:        data[5],
		Extension:    binary.BigEndian.Uint16(data[6:8]),
	}
	n := headerLen
	if h.Flags&FlagProxy != 0 {
		if len(data) < headerLen+6 {
			return Header{}, 0, fmt.Errorf("wire: short proxy endpoint")
		}
		copy(h.PeerEndpoint[:], data[headerLen:headerLen+6])
		h.HasPeerEndpoint = true
		n += 6
	}
	return h, n, nil
}

// QueryBy mirrors core.QueryBy on the wire.
type QueryBy uint8

const (
	QueryByHash QueryBy = iota
	QueryByHeight
	QueryByPrevious
)

// QueryStatus mirrors core.QueryStatus on the wire, packed into a
// QUERY response's Extension field alongside QueryBy.
type QueryStatus uint8

const (
	QueryStatusSuccess QueryStatus = iota
	QueryStatusMiss
	QueryStatusPruned
	QueryStatusFork
	QueryStatusTimeout
)

// EncodeQueryExtension packs (by, status) into the header's 16-bit
// extension field for a QUERY response, per spec.md §6.
func EncodeQueryExtension(by QueryBy, status QueryStatus) uint16 {
	return uint16(by)<<8 | uint16(status)
}

// DecodeQueryExtension unpacks a QUERY response's extension field.
func DecodeQueryExtension(ext uint16) (QueryBy, QueryStatus) {
	return QueryBy(ext >> 8), QueryStatus(ext & 0xff)
}

const queryFixedLen = 8 + 1 + 32 + 8 + 32

// Query is the payload of a QUERY request; Block is only populated on
// a success response.
type Query struct {
	Sequence uint64
	By       QueryBy
	Account  core.Account
	Height   uint64
	Hash     core.BlockHash
	Block    core.Block
}

// EncodeRequest serializes the request half of a query (no block).
func (q Query) EncodeRequest() []byte {
	out := make([]byte, queryFixedLen)
	binary.BigEndian.PutUint64(out[0:8], q.Sequence)
	out[8] = byte(q.By)
	copy(out[9:41], q.Account.Bytes())
	binary.BigEndian.PutUint64(out[41:49], q.Height)
	copy(out[49:81], q.Hash.Bytes())
	return out
}

// EncodeResponse serializes a query response, appending the block's
// wire form when present.
func (q Query) EncodeResponse() []byte {
	out := q.EncodeRequest()
	if q.Block != nil {
		out = append(out, q.Block.Serialize()...)
	}
	return out
}

// DecodeQueryRequest parses the fixed-length request fields.
func DecodeQueryRequest(data []byte) (Query, error) {
	if len(data) < queryFixedLen {
		return Query{}, fmt.Errorf("wire: short query: %d bytes", len(data))
	}
	var q Query
	q.Sequence = binary.BigEndian.Uint64(data[0:8])
	q.By = QueryBy(data[8])
	copy(q.Account[:], data[9:41])
	q.Height = binary.BigEndian.Uint64(data[41:49])
	copy(q.Hash[:], data[49:81])
	return q, nil
}

// DecodeQueryResponse parses a full query response, decoding a trailing
// block if any bytes remain past the fixed fields.
func DecodeQueryResponse(data []byte) (Query, error) {
	q, err := DecodeQueryRequest(data)
	if err != nil {
		return Query{}, err
	}
	if len(data) > queryFixedLen {
		b, err := core.DeserializeBlock(data[queryFixedLen:])
		if err != nil {
			return Query{}, fmt.Errorf("wire: decode query block: %w", err)
		}
		q.Block = b
	}
	return q, nil
}
