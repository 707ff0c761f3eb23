package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/Dyastin-0/lanbyte/logger"
)

// Responder answers discovery queries with this host's Announce. It never
// keeps a peer table of its own.
type Responder struct {
	Name         string
	TransferPort uint16

	// Addr is the UDP address to bind, ":45678" by default.
	Addr string

	// MDNS also advertises the receiver over mDNS while listening.
	MDNS bool

	Log logger.Logger

	conn *net.UDPConn
}

func NewResponder(name string, transferPort uint16) *Responder {
	return &Responder{
		Name:         CompressName(name),
		TransferPort: transferPort,
		Addr:         fmt.Sprintf(":%d", DiscoveryPort),
		Log:          logger.Nop(),
	}
}

// Init binds the discovery socket. It fails when another process already
// owns the port.
func (r *Responder) Init() error {
	addr, err := net.ResolveUDPAddr("udp4", r.Addr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to bind discovery port: %w", err)
	}

	r.conn = conn
	return nil
}

func (r *Responder) LocalAddr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

func (r *Responder) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Listen binds and serves until ctx is cancelled.
func (r *Responder) Listen(ctx context.Context) error {
	if err := r.Init(); err != nil {
		return err
	}

	return r.Serve(ctx)
}

// Serve answers queries on the socket bound by Init until ctx is
// cancelled. Malformed datagrams are dropped.
func (r *Responder) Serve(ctx context.Context) error {
	if r.conn == nil {
		return errors.New("responder not initialized")
	}
	defer r.conn.Close()

	log := r.logger().WithStr("name", r.Name).WithInt("transfer_port", int(r.TransferPort))

	announce, err := Announce{Name: r.Name, TransferPort: r.TransferPort}.Encoded()
	if err != nil {
		return err
	}

	if r.MDNS {
		withdraw, err := advertiseMDNS(r.Name, r.TransferPort)
		if err != nil {
			log.WithErr(err).Warn("mdns advertisement disabled")
		} else {
			defer withdraw()
		}
	}

	stop := context.AfterFunc(ctx, func() {
		r.conn.Close()
	})
	defer stop()

	log.WithStr("addr", r.conn.LocalAddr().String()).Info("discovery responder listening")

	buf := make([]byte, MaxDatagramSize)
	for {
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.WithErr(err).Warn("discovery read failed")
			continue
		}

		msg, err := EncodedDiscoveryMessage(buf[:n]).Parse()
		if err != nil {
			log.WithStr("from", src.String()).Debug("dropped malformed datagram")
			continue
		}

		if _, ok := msg.(Query); !ok {
			continue
		}

		_, err = r.conn.WriteToUDP(announce, src)
		if err != nil {
			log.WithStr("to", src.String()).WithErr(err).Warn("failed to send announce")
			continue
		}

		log.WithStr("to", src.String()).Debug("announced")
	}
}

func (r *Responder) logger() logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

// CompressName strips whitespace so the name is easy to type as a filter.
func CompressName(name string) string {
	return strings.Join(strings.Fields(name), "")
}
