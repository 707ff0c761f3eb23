package core

import (
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"
	"sync"
)

// Peer is a discovered host able to receive files.
type Peer struct {
	Name string
	Addr netip.AddrPort
}

func (p Peer) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Addr)
}

// NewPeer pairs the source IP of an announce with the transfer port it
// carries. The source port of the datagram is not used.
func NewPeer(src net.IP, a Announce) (Peer, bool) {
	ip, ok := netip.AddrFromSlice(src)
	if !ok {
		return Peer{}, false
	}

	return Peer{
		Name: a.Name,
		Addr: netip.AddrPortFrom(ip.Unmap(), a.TransferPort),
	}, true
}

// PeerFilter narrows discovery results. Empty fields match anything.
type PeerFilter struct {
	Name string
	IP   string
}

func (f PeerFilter) IsZero() bool {
	return f.Name == "" && f.IP == ""
}

func (f PeerFilter) Match(p Peer) bool {
	if f.Name != "" && !strings.EqualFold(f.Name, p.Name) {
		return false
	}

	if f.IP != "" && !strings.HasPrefix(p.Addr.Addr().String(), f.IP) {
		return false
	}

	return true
}

// peerTable holds the peers collected during one discovery session,
// keyed by source IP.
type peerTable struct {
	mu    sync.Mutex
	peers map[netip.Addr]Peer
	order []netip.Addr
}

func newPeerTable() *peerTable {
	return &peerTable{
		peers: make(map[netip.Addr]Peer),
	}
}

// put replaces any previous entry for the same IP.
func (t *peerTable) put(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ip := p.Addr.Addr()
	if _, ok := t.peers[ip]; !ok {
		t.order = append(t.order, ip)
	}
	t.peers[ip] = p
}

func (t *peerTable) list() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	peers := make([]Peer, 0, len(t.order))
	for _, ip := range t.order {
		peers = append(peers, t.peers[ip])
	}
	return peers
}

func (t *peerTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.peers)
}

// SortPeers orders peers by name, then address, for display.
func SortPeers(peers []Peer) {
	slices.SortFunc(peers, func(a, b Peer) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return a.Addr.Compare(b.Addr)
	})
}
