// Package xchain is the Cross-chain bridge collaborator named
// interface-only in spec.md §4.8: an EVM log parser issuing
// cross-chain events once a quorum of independent RPC endpoints agree
// on a log's contents. Grounded on the teacher's
// core/cross_chain_bridge.go and core/cross_chain_agnostic_protocols.go
// for the endpoint/quorum shape, and on go-ethereum's types.Log for the
// log decoding surface a real parser consumes.
package xchain

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/raicore/raicore/core"
)

// MinQuorum is the minimum number of independent endpoints a Parser
// must be constructed with. Per the Open Question resolution recorded
// in SPEC_FULL.md §9.4, single-endpoint operation is disallowed: an EVM
// RPC node can lie or reorg silently, so any chain event crossing into
// this ledger must be corroborated by at least two independent sources.
const MinQuorum = 2

// ErrInsufficientEndpoints is returned by NewParser when fewer than
// MinQuorum endpoints are supplied.
var ErrInsufficientEndpoints = fmt.Errorf("xchain: fewer than %d endpoints configured", MinQuorum)

// LogFetcher is the minimal surface a chain RPC endpoint exposes to the
// parser: fetch logs matching a filter. Modeled on
// go-ethereum's ethclient.Client.FilterLogs.
type LogFetcher interface {
	FilterLogs(ctx context.Context, q Filter) ([]types.Log, error)
}

// Filter selects which logs to fetch; mirrors go-ethereum's
// ethereum.FilterQuery, narrowed to the fields a bridge event filter
// needs.
type Filter struct {
	FromBlock uint64
	ToBlock   uint64
	Address   [20]byte
	Topics    [][32]byte
}

// BridgeEvent is a cross-chain transfer observed on the foreign chain,
// ready to be submitted to the ledger as a Rewardable/Receivable entry
// once quorum is reached.
type BridgeEvent struct {
	SourceChainTag uint32
	TxHash         [32]byte
	LogIndex       uint
	Destination    core.Account
	Amount         core.Balance
	RawTopics      [][32]byte
	RawData        []byte
}

// eventKey identifies the same logical event across independent
// endpoint responses, for quorum counting.
type eventKey struct {
	txHash   [32]byte
	logIndex uint
}

// Parser fetches logs from every configured endpoint and only emits a
// BridgeEvent once at least MinQuorum endpoints returned an identical
// log for the same (tx hash, log index).
type Parser struct {
	endpoints []LogFetcher
	decode    func(types.Log) (BridgeEvent, error)
}

// NewParser builds a Parser over endpoints, rejecting fewer than
// MinQuorum. decode turns a raw EVM log into a BridgeEvent; callers
// supply it because the topic/ABI layout is bridge-contract specific.
func NewParser(endpoints []LogFetcher, decode func(types.Log) (BridgeEvent, error)) (*Parser, error) {
	if len(endpoints) < MinQuorum {
		return nil, ErrInsufficientEndpoints
	}
	return &Parser{endpoints: endpoints, decode: decode}, nil
}

// Scan fetches logs matching filter from every endpoint and returns the
// events that at least MinQuorum endpoints agreed on byte-for-byte.
func (p *Parser) Scan(ctx context.Context, filter Filter) ([]BridgeEvent, error) {
	counts := make(map[eventKey]int)
	canonical := make(map[eventKey]types.Log)

	for _, ep := range p.endpoints {
		logs, err := ep.FilterLogs(ctx, filter)
		if err != nil {
			continue // a down/lying endpoint just can't contribute to quorum
		}
		for _, lg := range logs {
			key := eventKey{txHash: lg.TxHash, logIndex: lg.Index}
			if prev, ok := canonical[key]; ok {
				if !logsEqual(prev, lg) {
					continue // disagreement: never counts toward quorum
				}
			} else {
				canonical[key] = lg
			}
			counts[key]++
		}
	}

	var out []BridgeEvent
	for key, n := range counts {
		if n < MinQuorum {
			continue
		}
		ev, err := p.decode(canonical[key])
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func logsEqual(a, b types.Log) bool {
	if a.TxHash != b.TxHash || a.Index != b.Index || a.Address != b.Address {
		return false
	}
	if !bytes.Equal(a.Data, b.Data) {
		return false
	}
	if len(a.Topics) != len(b.Topics) {
		return false
	}
	for i := range a.Topics {
		if a.Topics[i] != b.Topics[i] {
			return false
		}
	}
	return true
}
