package core

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPeerUsesAnnouncedPort(t *testing.T) {
	p, ok := NewPeer(net.ParseIP("192.168.1.20"), Announce{Name: "bravo", TransferPort: 45679})
	require.True(t, ok)

	assert.Equal(t, "bravo", p.Name)
	assert.Equal(t, netip.MustParseAddrPort("192.168.1.20:45679"), p.Addr)
	assert.Equal(t, "bravo (192.168.1.20:45679)", p.String())

	_, ok = NewPeer(nil, Announce{Name: "bravo", TransferPort: 1})
	assert.False(t, ok)
}

func TestPeerTableLatestWins(t *testing.T) {
	table := newPeerTable()

	a, _ := NewPeer(net.ParseIP("10.0.0.1"), Announce{Name: "old", TransferPort: 1000})
	b, _ := NewPeer(net.ParseIP("10.0.0.2"), Announce{Name: "other", TransferPort: 2000})
	c, _ := NewPeer(net.ParseIP("10.0.0.1"), Announce{Name: "new", TransferPort: 3000})

	table.put(a)
	table.put(b)
	table.put(c)

	peers := table.list()
	require.Len(t, peers, 2)
	assert.Equal(t, 2, table.len())

	assert.Equal(t, "new", peers[0].Name)
	assert.Equal(t, uint16(3000), peers[0].Addr.Port())
	assert.Equal(t, "other", peers[1].Name)
}

func TestPeerTableConcurrentPut(t *testing.T) {
	table := newPeerTable()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, _ := NewPeer(net.IPv4(10, 0, 0, byte(i%10)), Announce{Name: fmt.Sprintf("p%d", i), TransferPort: 1})
			table.put(p)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, table.len())
}

func TestPeerFilter(t *testing.T) {
	p, _ := NewPeer(net.ParseIP("192.168.1.20"), Announce{Name: "Bravo", TransferPort: 45679})

	tests := []struct {
		name   string
		filter PeerFilter
		match  bool
	}{
		{name: "zero", filter: PeerFilter{}, match: true},
		{name: "name case insensitive", filter: PeerFilter{Name: "bravo"}, match: true},
		{name: "name mismatch", filter: PeerFilter{Name: "alpha"}, match: false},
		{name: "ip prefix", filter: PeerFilter{IP: "192.168."}, match: true},
		{name: "ip mismatch", filter: PeerFilter{IP: "10."}, match: false},
		{name: "both", filter: PeerFilter{Name: "BRAVO", IP: "192.168.1.20"}, match: true},
		{name: "both one mismatch", filter: PeerFilter{Name: "bravo", IP: "10."}, match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.filter.Match(p))
		})
	}

	assert.True(t, PeerFilter{}.IsZero())
	assert.False(t, PeerFilter{IP: "1"}.IsZero())
}

func TestSortPeers(t *testing.T) {
	peers := []Peer{
		{Name: "charlie", Addr: netip.MustParseAddrPort("10.0.0.3:1")},
		{Name: "Alpha", Addr: netip.MustParseAddrPort("10.0.0.9:1")},
		{Name: "alpha", Addr: netip.MustParseAddrPort("10.0.0.2:1")},
	}

	SortPeers(peers)

	assert.Equal(t, "10.0.0.2:1", peers[0].Addr.String())
	assert.Equal(t, "10.0.0.9:1", peers[1].Addr.String())
	assert.Equal(t, "charlie", peers[2].Name)
}

func TestPeerFromMDNSEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("bravo-1a2b3c4d", MDNSService, MDNSDomain)
	entry.Port = 45679
	entry.Text = []string{"name=bravo"}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}

	p, ok := peerFromEntry(entry)
	require.True(t, ok)
	assert.Equal(t, "bravo", p.Name)
	assert.Equal(t, netip.MustParseAddrPort("192.168.1.20:45679"), p.Addr)

	entry.AddrIPv4 = nil
	_, ok = peerFromEntry(entry)
	assert.False(t, ok)

	_, ok = peerFromEntry(nil)
	assert.False(t, ok)
}
