// Copyright 2024 The powchain Authors
// This file is part of the powchain library.
//
// The powchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powchain library. If not, see <http://www.gnu.org/licenses/>.

// Package network implements the connection-delimited TCP transport between
// peers: one goroutine per accepted connection, each connection carrying
// exactly one message (a u32 big-endian kind tag followed by the message's
// own self-delimiting body, no outer framing length), and a bounded snapshot
// request/response exchange used by a joining node to catch up to the
// network. Grounded on node/cn/peer.go's per-peer goroutine and
// sentinel-error style.
package network

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/powchain/node/internal/block"
	"github.com/powchain/node/internal/chain"
	"github.com/powchain/node/internal/codec"
	"github.com/powchain/node/internal/log"
	"github.com/powchain/node/internal/node"
	"github.com/powchain/node/internal/txn"
)

// Message kinds, carried as a u32 big-endian tag at the start of every
// connection.
const (
	kindTransaction uint32 = 1
	kindBlock       uint32 = 2
	kindAskSnapshot uint32 = 3
	kindSnapshot    uint32 = 4
)

// maxMessageBody bounds a single inbound message body; a chain tree can
// legitimately grow large, but reading an unbounded body off the wire is an
// easy remote DoS.
const maxMessageBody = 64 << 20

// Errors returned by the listener and dial helpers. Per-connection I/O
// errors besides these are logged and swallowed: peers are best-effort.
var (
	ErrMessageTooLarge = errors.New("network: message body exceeds maximum size")
	ErrUnknownMessage  = errors.New("network: unknown message kind")
	ErrSnapshotTimeout = errors.New("network: snapshot request timed out")
)

// writeMessage writes the kind tag followed by payload and nothing else; the
// caller is expected to close the connection once the write returns, since a
// connection carries exactly one message.
func writeMessage(w io.Writer, kind uint32, payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], kind)
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return errors.Wrap(err, "network: write message")
}

// readMessage reads the kind tag, then the rest of the connection as the
// message body: there is no length prefix, the body runs until the sender
// closes its side.
func readMessage(r io.Reader) (uint32, []byte, error) {
	var kindBuf [4]byte
	if _, err := io.ReadFull(r, kindBuf[:]); err != nil {
		return 0, nil, errors.Wrap(err, "network: read message kind")
	}
	kind := binary.BigEndian.Uint32(kindBuf[:])
	body, err := io.ReadAll(io.LimitReader(r, maxMessageBody+1))
	if err != nil {
		return 0, nil, errors.Wrap(err, "network: read message body")
	}
	if len(body) > maxMessageBody {
		return 0, nil, ErrMessageTooLarge
	}
	return kind, body, nil
}

// Peer is a single framed TCP connection, used both for an accepted inbound
// connection and for an outbound dial.
type Peer struct {
	conn   net.Conn
	logger *log.Logger
}

// Dial opens a new connection to addr.
func Dial(addr string) (*Peer, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "network: dial")
	}
	return &Peer{conn: conn, logger: log.New("network")}, nil
}

// Close closes the underlying connection.
func (p *Peer) Close() error { return p.conn.Close() }

// SendTransaction writes tx as this connection's one message.
func (p *Peer) SendTransaction(tx txn.Transaction) error {
	w := codec.NewWriter()
	tx.Encode(w)
	return writeMessage(p.conn, kindTransaction, w.Bytes())
}

// SendBlock writes b as this connection's one message.
func (p *Peer) SendBlock(b block.Block) error {
	w := codec.NewWriter()
	b.Encode(w)
	return writeMessage(p.conn, kindBlock, w.Bytes())
}

// SendAskSnapshot writes a snapshot request carrying replyAddr, the address
// the responder should dial back to deliver the snapshot.
func (p *Peer) SendAskSnapshot(replyAddr string) error {
	w := codec.NewWriter()
	w.WriteString(replyAddr)
	return writeMessage(p.conn, kindAskSnapshot, w.Bytes())
}

// SendSnapshot writes the full chain tree as this connection's one message.
func (p *Peer) SendSnapshot(tree *chain.ChainTree) error {
	w := codec.NewWriter()
	tree.Encode(w)
	return writeMessage(p.conn, kindSnapshot, w.Bytes())
}

// Listener accepts inbound connections and dispatches decoded messages onto
// a Node's inbound channels. One goroutine is spawned per connection, as is
// acceptable for this node's expected peer counts.
type Listener struct {
	logger *log.Logger
	ln     net.Listener
	node   *node.Node
}

// Listen starts accepting connections on addr and routing their messages to
// n. The returned Listener must be closed by the caller to stop accepting.
func Listen(addr string, n *node.Node) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "network: listen")
	}
	l := &Listener{logger: log.New("network"), ln: ln, node: n}
	go l.acceptLoop()
	return l, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		go l.serve(conn)
	}
}

// serve reads exactly one message off conn and dispatches it: a connection
// carries a single message and is closed once it has been handled, per the
// wire contract (no multiplexing, no keepalive).
func (l *Listener) serve(conn net.Conn) {
	defer conn.Close()
	kind, payload, err := readMessage(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.logger.Debug("peer connection dropped", "err", err)
		}
		return
	}
	if err := l.dispatch(kind, payload); err != nil {
		l.logger.Debug("failed to dispatch inbound message", "err", err)
	}
}

func (l *Listener) dispatch(kind uint32, payload []byte) error {
	r := codec.NewReader(payload)
	switch kind {
	case kindTransaction:
		tx, err := txn.Decode(r)
		if err != nil {
			return err
		}
		l.node.InboundTxs <- tx
	case kindBlock:
		b, err := block.Decode(r)
		if err != nil {
			return err
		}
		l.node.InboundBlocks <- b
	case kindAskSnapshot:
		replyAddr, err := r.ReadString()
		if err != nil {
			return err
		}
		l.node.AskSnapshots <- node.AskSnapshotRequest{ReplyAddr: replyAddr}
	case kindSnapshot:
		tree, err := chain.Decode(r)
		if err != nil {
			return err
		}
		l.node.ReceiveSnapshots <- tree
	default:
		return ErrUnknownMessage
	}
	return nil
}

// ReceiveOneSnapshot blocks on a freshly-opened connection for its one
// snapshot message, used by RequestSnapshot to read the reply without
// routing it through a running Node's channels (the node doesn't exist yet).
func ReceiveOneSnapshot(conn net.Conn) (*chain.ChainTree, error) {
	kind, payload, err := readMessage(conn)
	if err != nil {
		return nil, err
	}
	if kind != kindSnapshot {
		return nil, ErrUnknownMessage
	}
	return chain.Decode(codec.NewReader(payload))
}

// PeerSet is a node's view of the rest of the network: the addresses it
// dials out to on every broadcast, and the one it dials back to answer a
// snapshot request. It implements both node.Broadcaster and
// node.SnapshotSender, bridging the per-method (addr, payload) shape those
// interfaces want onto Peer's per-connection Dial-Send-Close shape. Modeled
// on node/cn/peer.go's peer-set bookkeeping, generalized from a single
// registered peer to however many addresses the node has learned of.
type PeerSet struct {
	mu     sync.Mutex
	addrs  map[string]struct{}
	logger *log.Logger
}

var (
	_ node.Broadcaster    = (*PeerSet)(nil)
	_ node.SnapshotSender = (*PeerSet)(nil)
)

// NewPeerSet returns a PeerSet seeded with the given peer addresses.
func NewPeerSet(addrs ...string) *PeerSet {
	s := &PeerSet{addrs: make(map[string]struct{}, len(addrs)), logger: log.New("network")}
	for _, a := range addrs {
		s.AddPeer(a)
	}
	return s
}

// AddPeer registers addr as a peer to broadcast to, if not already known.
func (s *PeerSet) AddPeer(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs[addr] = struct{}{}
}

func (s *PeerSet) peerAddrs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.addrs))
	for a := range s.addrs {
		out = append(out, a)
	}
	return out
}

// BroadcastBlock dials every known peer and sends b, one short-lived
// connection per peer. Dial and send errors are logged and swallowed: peers
// are best-effort, per the transport's error-handling contract.
func (s *PeerSet) BroadcastBlock(b block.Block) {
	for _, addr := range s.peerAddrs() {
		peer, err := Dial(addr)
		if err != nil {
			s.logger.Debug("broadcast block: dial failed", "peer", addr, "err", err)
			continue
		}
		if err := peer.SendBlock(b); err != nil {
			s.logger.Debug("broadcast block: send failed", "peer", addr, "err", err)
		}
		peer.Close()
	}
}

// BroadcastTransaction dials every known peer and sends tx.
func (s *PeerSet) BroadcastTransaction(tx txn.Transaction) {
	for _, addr := range s.peerAddrs() {
		peer, err := Dial(addr)
		if err != nil {
			s.logger.Debug("broadcast transaction: dial failed", "peer", addr, "err", err)
			continue
		}
		if err := peer.SendTransaction(tx); err != nil {
			s.logger.Debug("broadcast transaction: send failed", "peer", addr, "err", err)
		}
		peer.Close()
	}
}

// SendSnapshot dials replyAddr and delivers tree, implementing
// node.SnapshotSender. replyAddr is the requester's ephemeral listener
// address carried in its AskSnapshot message, not necessarily a member of
// the peer set, so it is dialed directly rather than looked up in addrs.
func (s *PeerSet) SendSnapshot(replyAddr string, tree *chain.ChainTree) error {
	peer, err := Dial(replyAddr)
	if err != nil {
		return err
	}
	defer peer.Close()
	return peer.SendSnapshot(tree)
}
