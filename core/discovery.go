package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Dyastin-0/lanbyte/logger"
	"golang.org/x/net/ipv4"
)

const DefaultDiscoveryTimeout = 3 * time.Second

// Discoverer broadcasts a Query and collects the Announce replies that
// arrive before the timeout.
type Discoverer struct {
	// Port is the UDP port responders listen on.
	Port int

	// BroadcastAddr is where the Query is sent, 255.255.255.255 by default.
	BroadcastAddr net.IP

	// Directed also sends the Query to the broadcast address of every
	// local interface.
	Directed bool

	// MDNS also browses for peers advertised over mDNS.
	MDNS bool

	Filter PeerFilter

	// StopOnMatch ends the session as soon as one peer matches a
	// non-empty Filter.
	StopOnMatch bool

	Log logger.Logger
}

func NewDiscoverer() *Discoverer {
	return &Discoverer{
		Port:          DiscoveryPort,
		BroadcastAddr: net.IPv4bcast,
		Directed:      true,
		Log:           logger.Nop(),
	}
}

// Discover returns the peers that answered within timeout. Finding no
// peer is not an error. Bind and send failures abort the session.
func (d *Discoverer) Discover(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	log := d.logger()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to bind discovery socket: %w", err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		return nil, fmt.Errorf("failed to enable broadcast: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		log.WithErr(err).Debug("control messages unavailable")
	}

	query, err := Query{}.Encoded()
	if err != nil {
		return nil, err
	}

	bcast := d.BroadcastAddr
	if bcast == nil {
		bcast = net.IPv4bcast
	}

	if _, err := pc.WriteTo(query, nil, &net.UDPAddr{IP: bcast, Port: d.Port}); err != nil {
		return nil, fmt.Errorf("failed to send discovery query: %w", err)
	}

	if d.Directed {
		for _, ip := range directedBroadcasts() {
			_, err := pc.WriteTo(query, nil, &net.UDPAddr{IP: ip, Port: d.Port})
			if err != nil {
				log.WithStr("addr", ip.String()).WithErr(err).Warn("directed broadcast failed")
			}
		}
	}

	sessionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	table := newPeerTable()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.collect(sessionCtx, pc, table, cancel)
	}()

	if d.MDNS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := browseMDNS(sessionCtx, func(p Peer) { d.record(table, p, cancel) })
			if err != nil {
				log.WithErr(err).Warn("mdns browse failed")
			}
		}()
	}

	<-sessionCtx.Done()

	// Closing the socket is what stops collect, in-flight datagrams are lost.
	conn.Close()
	wg.Wait()

	peers := table.list()

	if err := ctx.Err(); err != nil {
		return peers, err
	}

	return peers, nil
}

func (d *Discoverer) collect(ctx context.Context, pc *ipv4.PacketConn, table *peerTable, cancel context.CancelFunc) {
	log := d.logger()
	buf := make([]byte, MaxDatagramSize)

	for {
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.WithErr(err).Debug("discovery read failed")
			continue
		}

		udpAddr, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}

		msg, err := EncodedDiscoveryMessage(buf[:n]).Parse()
		if err != nil {
			log.WithStr("from", udpAddr.String()).Debug("dropped malformed datagram")
			continue
		}

		announce, ok := msg.(Announce)
		if !ok {
			continue
		}

		peer, ok := NewPeer(udpAddr.IP, announce)
		if !ok {
			continue
		}

		l := log.WithStr("peer", peer.String())
		if cm != nil {
			l = l.WithInt("ifindex", cm.IfIndex)
		}
		l.Debug("announce received")

		d.record(table, peer, cancel)
	}
}

func (d *Discoverer) record(table *peerTable, peer Peer, cancel context.CancelFunc) {
	if !d.Filter.Match(peer) {
		return
	}

	table.put(peer)

	if d.StopOnMatch && !d.Filter.IsZero() {
		cancel()
	}
}

func (d *Discoverer) logger() logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

// directedBroadcasts returns the IPv4 broadcast address of every up,
// broadcast-capable, non-loopback interface.
func directedBroadcasts() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagBroadcast == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}

			if b := broadcastOf(ipnet); b != nil {
				out = append(out, b)
			}
		}
	}

	return out
}

func broadcastOf(ipnet *net.IPNet) net.IP {
	ip := ipnet.IP.To4()
	if ip == nil {
		return nil
	}

	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}

	b := make(net.IP, net.IPv4len)
	for i := range ip {
		b[i] = ip[i] | ^mask[i]
	}
	return b
}
