package wire

import (
	"bytes"
	"testing"

	"github.com/raicore/raicore/core"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeader(core.NetworkTest, TypeQuery, 19, 18)
	encoded := h.Encode()

	got, n, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(encoded), n)
	}
	if got.Magic != MagicTest || got.Type != TypeQuery || got.VersionUsing != 19 || got.VersionMin != 18 {
		t.Fatalf("round-tripped header mismatch: %+v", got)
	}
	if got.HasPeerEndpoint {
		t.Fatalf("expected no peer endpoint without FlagProxy")
	}
}

func TestHeaderEncodeDecodeWithProxyEndpoint(t *testing.T) {
	h := NewHeader(core.NetworkLive, TypePublish, 1, 1)
	h.Flags |= FlagProxy
	h.PeerEndpoint = [6]byte{1, 2, 3, 4, 5, 6}
	encoded := h.Encode()

	got, n, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if n != headerLen+6 {
		t.Fatalf("expected to consume header+endpoint bytes, consumed %d", n)
	}
	if !got.HasPeerEndpoint || got.PeerEndpoint != h.PeerEndpoint {
		t.Fatalf("expected peer endpoint to round-trip, got %+v", got)
	}
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error decoding a truncated header")
	}
}

func TestDecodeHeaderRejectsTruncatedProxyEndpoint(t *testing.T) {
	h := NewHeader(core.NetworkLive, TypePublish, 1, 1)
	h.Flags |= FlagProxy
	encoded := h.Encode()
	// drop the endpoint bytes the flag promises
	truncated := encoded[:headerLen]
	if _, _, err := DecodeHeader(truncated); err == nil {
		t.Fatalf("expected an error when FlagProxy is set but the endpoint is missing")
	}
}

func TestEncodeDecodeQueryExtensionRoundTrip(t *testing.T) {
	ext := EncodeQueryExtension(QueryByHeight, QueryStatusFork)
	by, status := DecodeQueryExtension(ext)
	if by != QueryByHeight || status != QueryStatusFork {
		t.Fatalf("expected (QueryByHeight, QueryStatusFork), got (%v, %v)", by, status)
	}
}

func TestQueryRequestEncodeDecodeRoundTrip(t *testing.T) {
	var account core.Account
	account[0] = 0xAB
	var hash core.BlockHash
	hash[0] = 0xCD

	q := Query{Sequence: 42, By: QueryByPrevious, Account: account, Height: 7, Hash: hash}
	encoded := q.EncodeRequest()

	got, err := DecodeQueryRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeQueryRequest: %v", err)
	}
	if got.Sequence != q.Sequence || got.By != q.By || got.Account != q.Account || got.Height != q.Height || got.Hash != q.Hash {
		t.Fatalf("round-tripped query mismatch: %+v", got)
	}
}

func TestQueryResponseWithoutBlockDecodesCleanly(t *testing.T) {
	q := Query{Sequence: 1, By: QueryByHash}
	encoded := q.EncodeResponse()
	if len(encoded) != queryFixedLen {
		t.Fatalf("expected no trailing block bytes, got %d extra", len(encoded)-queryFixedLen)
	}
	got, err := DecodeQueryResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeQueryResponse: %v", err)
	}
	if got.Block != nil {
		t.Fatalf("expected no block decoded from a block-less response")
	}
}

func TestDecodeQueryRequestRejectsShortInput(t *testing.T) {
	if _, err := DecodeQueryRequest(bytes.Repeat([]byte{0}, queryFixedLen-1)); err == nil {
		t.Fatalf("expected an error decoding a truncated query")
	}
}

func TestMessageTypeStringKnownAndUnknown(t *testing.T) {
	if TypeQuery.String() != "QUERY" {
		t.Fatalf("expected QUERY, got %s", TypeQuery.String())
	}
	if MessageType(250).String() != "INVALID" {
		t.Fatalf("expected INVALID for an unrecognized message type")
	}
}
