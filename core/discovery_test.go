package core

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startResponder(t *testing.T, name string, port uint16) (*Responder, context.CancelFunc, chan error) {
	t.Helper()

	r := NewResponder(name, port)
	r.Addr = "127.0.0.1:0"
	require.NoError(t, r.Init())

	ctx, cancel := context.WithCancel(t.Context())

	errch := make(chan error, 1)
	go func() {
		errch <- r.Serve(ctx)
	}()

	return r, cancel, errch
}

func loopbackDiscoverer(port int) *Discoverer {
	d := NewDiscoverer()
	d.Port = port
	d.BroadcastAddr = net.IPv4(127, 0, 0, 1)
	d.Directed = false
	return d
}

func TestDiscoverLoopback(t *testing.T) {
	r, cancel, _ := startResponder(t, "alpha", TransferPort)
	defer cancel()

	d := loopbackDiscoverer(r.LocalAddr().(*net.UDPAddr).Port)

	peers, err := d.Discover(t.Context(), 300*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, peers, 1)

	assert.Equal(t, "alpha", peers[0].Name)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:45679"), peers[0].Addr)
}

func TestDiscoverNoPeers(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	defer conn.Close()

	d := loopbackDiscoverer(port)

	start := time.Now()
	peers, err := d.Discover(t.Context(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, peers)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestDiscoverDuplicateAnnounceKeepsLatest(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	first, err := Announce{Name: "first", TransferPort: 9000}.Encoded()
	require.NoError(t, err)
	second, err := Announce{Name: "second", TransferPort: 9001}.Encoded()
	require.NoError(t, err)

	go func() {
		buf := make([]byte, MaxDatagramSize)
		_, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		conn.WriteToUDP([]byte("magic bytes"), src)
		conn.WriteToUDP(first, src)
		conn.WriteToUDP(second, src)
	}()

	d := loopbackDiscoverer(conn.LocalAddr().(*net.UDPAddr).Port)

	peers, err := d.Discover(t.Context(), 300*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, peers, 1)

	assert.Equal(t, "second", peers[0].Name)
	assert.Equal(t, uint16(9001), peers[0].Addr.Port())
}

func TestDiscoverStopOnMatch(t *testing.T) {
	r, cancel, _ := startResponder(t, "alpha", TransferPort)
	defer cancel()

	d := loopbackDiscoverer(r.LocalAddr().(*net.UDPAddr).Port)
	d.Filter = PeerFilter{Name: "ALPHA"}
	d.StopOnMatch = true

	start := time.Now()
	peers, err := d.Discover(t.Context(), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDiscoverFilterExcludes(t *testing.T) {
	r, cancel, _ := startResponder(t, "alpha", TransferPort)
	defer cancel()

	d := loopbackDiscoverer(r.LocalAddr().(*net.UDPAddr).Port)
	d.Filter = PeerFilter{Name: "bravo"}

	peers, err := d.Discover(t.Context(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestDiscoverParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	d := loopbackDiscoverer(DiscoveryPort)

	_, err := d.Discover(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponderIgnoresCorruptDatagrams(t *testing.T) {
	r, cancel, _ := startResponder(t, "alpha", 45679)
	defer cancel()

	conn, err := net.DialUDP("udp4", nil, r.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	garbage := [][]byte{
		[]byte("\x00\x01magic bytes"),
		[]byte(`{"Announce":{"name":"evil"}}`),
		[]byte(`"Accept"`),
		[]byte(`{"Announce":{"name":"mallory","transfer_port":1}}`),
	}
	for _, g := range garbage {
		_, err := conn.Write(g)
		require.NoError(t, err)
	}

	query, err := Query{}.Encoded()
	require.NoError(t, err)
	_, err = conn.Write(query)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	buf := make([]byte, MaxDatagramSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	msg, err := EncodedDiscoveryMessage(buf[:n]).Parse()
	require.NoError(t, err)
	assert.Equal(t, Announce{Name: "alpha", TransferPort: 45679}, msg)
}

func TestResponderStopsOnCancel(t *testing.T) {
	_, cancel, errch := startResponder(t, "alpha", TransferPort)

	cancel()

	select {
	case err := <-errch:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("responder did not stop")
	}
}

func TestResponderPortInUse(t *testing.T) {
	r, cancel, _ := startResponder(t, "alpha", TransferPort)
	defer cancel()

	other := NewResponder("bravo", TransferPort)
	other.Addr = r.LocalAddr().String()
	assert.Error(t, other.Init())
}

func TestResponderRejectsInvalidAnnounce(t *testing.T) {
	r := NewResponder("   ", TransferPort)
	r.Addr = "127.0.0.1:0"
	require.NoError(t, r.Init())

	err := r.Serve(t.Context())
	assert.ErrorIs(t, err, ErrMalformedDiscoveryMessage)
}

func TestCompressName(t *testing.T) {
	assert.Equal(t, "MyLaptop", CompressName(" My  Laptop\t"))
	assert.Equal(t, "", CompressName("   "))
}

func TestBroadcastOf(t *testing.T) {
	_, ipnet, err := net.ParseCIDR("192.168.1.17/24")
	require.NoError(t, err)
	ipnet.IP = net.IPv4(192, 168, 1, 17)

	assert.Equal(t, "192.168.1.255", broadcastOf(ipnet).String())

	_, ipnet, err = net.ParseCIDR("10.1.2.3/8")
	require.NoError(t, err)
	assert.Equal(t, "10.255.255.255", broadcastOf(ipnet).String())

	_, ipnet, err = net.ParseCIDR("fe80::1/64")
	require.NoError(t, err)
	assert.Nil(t, broadcastOf(ipnet))
}
