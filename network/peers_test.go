package network

import (
	"testing"

	"github.com/raicore/raicore/core"
)

func newTestNode() *Node {
	return &Node{
		contacts: make(map[core.Account]ContactInfo),
		byPeerID: make(map[core.PeerID]core.Account),
	}
}

func TestContactRegistersPeerByAccount(t *testing.T) {
	n := newTestNode()
	var account core.Account
	account[0] = 0x01

	n.Contact("peer-a", ContactInfo{Account: account, Timestamp: 1, FullNode: true})

	pid, ok := n.RandomPeer()
	if !ok || pid != "peer-a" {
		t.Fatalf("expected peer-a to be known, got %q ok=%v", pid, ok)
	}
}

func TestRandomPeerEmptyTableReturnsFalse(t *testing.T) {
	n := newTestNode()
	if _, ok := n.RandomPeer(); ok {
		t.Fatalf("expected no peer known on an empty table")
	}
}

func TestRandomFullNodePeerFiltersNonFullNodes(t *testing.T) {
	n := newTestNode()
	var light, full core.Account
	light[0], full[0] = 0x01, 0x02

	n.Contact("peer-light", ContactInfo{Account: light, FullNode: false})
	n.Contact("peer-full", ContactInfo{Account: full, FullNode: true})

	pid, ok := n.RandomFullNodePeer()
	if !ok || pid != "peer-full" {
		t.Fatalf("expected only the full node peer to be selectable, got %q ok=%v", pid, ok)
	}
}

func TestRandomFullNodePeerNoneKnownReturnsFalse(t *testing.T) {
	n := newTestNode()
	var light core.Account
	light[0] = 0x01
	n.Contact("peer-light", ContactInfo{Account: light, FullNode: false})

	if _, ok := n.RandomFullNodePeer(); ok {
		t.Fatalf("expected no full-node peer known")
	}
}

func TestRoutesMapsAccountsToOwningPeers(t *testing.T) {
	n := newTestNode()
	var acctA, acctB core.Account
	acctA[0], acctB[0] = 0xAA, 0xBB

	n.Contact("peer-a1", ContactInfo{Account: acctA})
	n.Contact("peer-a2", ContactInfo{Account: acctA})
	n.Contact("peer-b1", ContactInfo{Account: acctB})

	routes := n.Routes([]core.Account{acctA, acctB})
	if len(routes[acctA]) != 2 {
		t.Fatalf("expected 2 peers routed to account A, got %d", len(routes[acctA]))
	}
	if len(routes[acctB]) != 1 {
		t.Fatalf("expected 1 peer routed to account B, got %d", len(routes[acctB]))
	}
}

func TestContactOverwritesStalePeerMapping(t *testing.T) {
	n := newTestNode()
	var account core.Account
	account[0] = 0x01

	n.Contact("peer-old", ContactInfo{Account: account, Timestamp: 1})
	n.Contact("peer-new", ContactInfo{Account: account, Timestamp: 2})

	if len(n.contacts) != 1 {
		t.Fatalf("expected a single contact entry per account, got %d", len(n.contacts))
	}
	if n.contacts[account].Timestamp != 2 {
		t.Fatalf("expected the latest contact info to win, got timestamp %d", n.contacts[account].Timestamp)
	}
}
