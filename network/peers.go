// Package network is the Peers/Gossip collaborator named as
// interface-only in spec.md §4.8: route enumeration, broadcast, and
// peer bookkeeping. The interface shape and the libp2p-backed
// implementation are grounded on the teacher's core/network.go
// NewNode/Broadcast/Subscribe wiring.
package network

import (
	"context"
	"crypto/rand"
	"fmt"
	mathrand "math/big"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"github.com/raicore/raicore/core"
	"github.com/raicore/raicore/wire"
)

// queryTopic is the gossipsub topic QUERY requests are broadcast on.
// Point-to-point addressing isn't available over pubsub, so a query
// names its target account inside the payload and every peer decides
// locally whether to answer it.
const queryTopic = "query"

// PeerSet is what core.BlockQueries, core.Elections, and core.Rewarder
// need from the network layer: picking peers and publishing messages.
// Matches the shape of the teacher's networkAdapter interface in
// core/consensus_network_adapter.go.
type PeerSet interface {
	RandomPeer() (core.PeerID, bool)
	RandomFullNodePeer() (core.PeerID, bool)
	Routes(accounts []core.Account) map[core.Account][]core.PeerID
	Broadcast(topic string, data []byte) error
}

// ContactInfo is what a keep-alive message tells the peer table about
// a remote node, per spec.md §4.8.
type ContactInfo struct {
	Account   core.Account
	Timestamp uint64
	Version   uint8
	FullNode  bool
}

// Node is a libp2p-backed gossip peer, implementing PeerSet. Grounded
// on the teacher's Node in core/network.go: a libp2p host plus a
// gossipsub router, with a separate application-level peer table
// (contacts) keyed by account rather than libp2p peer.ID, since
// queries/votes address accounts, not transport endpoints.
type Node struct {
	host    hostLike
	pubsub  *pubsub.PubSub
	ctx     context.Context
	cancel  context.CancelFunc
	network core.Network

	mu       sync.RWMutex
	topics   map[string]*pubsub.Topic
	contacts map[core.Account]ContactInfo
	byPeerID map[core.PeerID]core.Account
}

type hostLike interface {
	Close() error
}

// Config configures a Node's listen address and discovery tag.
type Config struct {
	ListenAddr   string
	DiscoveryTag string
	Network      core.Network
}

// NewNode creates and bootstraps a gossip node, mirroring the teacher's
// NewNode(cfg Config) in core/network.go.
func NewNode(cfg Config) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("network: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("network: create pubsub: %w", err)
	}

	return &Node{
		host: h, pubsub: ps, ctx: ctx, cancel: cancel, network: cfg.Network,
		topics:   make(map[string]*pubsub.Topic),
		contacts: make(map[core.Account]ContactInfo),
		byPeerID: make(map[core.PeerID]core.Account),
	}, nil
}

// Close tears the node down.
func (n *Node) Close() error {
	n.cancel()
	return n.host.Close()
}

// Contact records or refreshes a peer's keep-alive information.
func (n *Node) Contact(peerID core.PeerID, info ContactInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contacts[info.Account] = info
	n.byPeerID[peerID] = info.Account
}

// RandomPeer picks an arbitrary known peer, used by BlockQueries when
// no explicit target set is given.
func (n *Node) RandomPeer() (core.PeerID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return randomFrom(n.byPeerID)
}

// RandomFullNodePeer picks an arbitrary peer known to run in full-node
// mode, required once a query has been told pruned.
func (n *Node) RandomFullNodePeer() (core.PeerID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	full := make(map[core.PeerID]core.Account)
	for pid, acct := range n.byPeerID {
		if n.contacts[acct].FullNode {
			full[pid] = acct
		}
	}
	return randomFrom(full)
}

func randomFrom(m map[core.PeerID]core.Account) (core.PeerID, bool) {
	if len(m) == 0 {
		return "", false
	}
	ids := make([]core.PeerID, 0, len(m))
	for pid := range m {
		ids = append(ids, pid)
	}
	idx, err := rand.Int(rand.Reader, mathrand.NewInt(int64(len(ids))))
	if err != nil {
		return ids[0], true
	}
	return ids[idx.Int64()], true
}

// Routes returns, for each requested account, the peer IDs known to
// host that account's representative weight or recent activity.
func (n *Node) Routes(accounts []core.Account) map[core.Account][]core.PeerID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[core.Account][]core.PeerID, len(accounts))
	for _, acct := range accounts {
		for pid, owner := range n.byPeerID {
			if owner == acct {
				out[acct] = append(out[acct], pid)
			}
		}
	}
	return out
}

// SendQuery implements core.Sender: it encodes q as a wire QUERY
// request and gossips it on queryTopic. to is accepted for interface
// compatibility with a future direct-stream transport but is otherwise
// unused, since pubsub has no point-to-point addressing; recipients
// each decide locally whether they hold the requested block.
func (n *Node) SendQuery(to core.PeerID, q core.OutgoingQuery) error {
	h := wire.NewHeader(n.network, wire.TypeQuery, 1, 1)
	payload := wire.Query{
		Sequence: q.Sequence,
		By:       wire.QueryBy(q.By),
		Account:  q.Account,
		Height:   q.Height,
		Hash:     q.Hash,
	}
	data := append(h.Encode(), payload.EncodeRequest()...)
	return n.Broadcast(queryTopic, data)
}

// Broadcast publishes data on topic via gossipsub, joining the topic
// lazily, mirroring core/network.go's Node.Broadcast.
func (n *Node) Broadcast(topic string, data []byte) error {
	n.mu.Lock()
	t, ok := n.topics[topic]
	if !ok {
		var err error
		t, err = n.pubsub.Join(topic)
		if err != nil {
			n.mu.Unlock()
			return fmt.Errorf("network: join topic %s: %w", topic, err)
		}
		n.topics[topic] = t
	}
	n.mu.Unlock()
	if err := t.Publish(n.ctx, data); err != nil {
		return fmt.Errorf("network: publish topic %s: %w", topic, err)
	}
	return nil
}

// Subscribe listens for messages on topic, decoding the sender's
// libp2p peer ID into the wire envelope.
func (n *Node) Subscribe(topic string) (<-chan Envelope, error) {
	sub, err := n.pubsub.Subscribe(topic)
	if err != nil {
		return nil, fmt.Errorf("network: subscribe topic %s: %w", topic, err)
	}
	out := make(chan Envelope)
	go func() {
		defer close(out)
		for {
			msg, err := sub.Next(n.ctx)
			if err != nil {
				logrus.WithError(err).Debug("network: subscription ended")
				return
			}
			out <- Envelope{From: core.PeerID(msg.GetFrom().String()), Topic: topic, Data: msg.Data}
		}
	}()
	return out, nil
}

// Envelope is one received gossip message.
type Envelope struct {
	From  core.PeerID
	Topic string
	Data  []byte
}

// DialSeed connects to bootstrap peer multiaddrs, mirroring the
// teacher's DialSeed.
func (n *Node) DialSeed(addrs []string) error {
	h, ok := n.host.(interface {
		Connect(ctx context.Context, pi peer.AddrInfo) error
	})
	if !ok {
		return fmt.Errorf("network: host does not support Connect")
	}
	var firstErr error
	for _, addr := range addrs {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
		err = h.Connect(ctx, *pi)
		cancel()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
