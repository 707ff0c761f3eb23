package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
)

const (
	MDNSService = "_lanbyte._tcp"
	MDNSDomain  = "local."

	txtName = "name="
)

// advertiseMDNS registers this host as a receiver on mDNS. The returned
// func withdraws the record.
func advertiseMDNS(name string, transferPort uint16) (func(), error) {
	instance := fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])

	server, err := zeroconf.Register(
		instance,
		MDNSService,
		MDNSDomain,
		int(transferPort),
		[]string{txtName + name},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register mdns service: %w", err)
	}

	return server.Shutdown, nil
}

// browseMDNS reports every resolved receiver to found until ctx is done.
func browseMDNS(ctx context.Context, found func(Peer)) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)

	err = resolver.Browse(ctx, MDNSService, MDNSDomain, entries)
	if err != nil {
		return fmt.Errorf("failed to browse mdns: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}

			if peer, ok := peerFromEntry(entry); ok {
				found(peer)
			}
		}
	}
}

func peerFromEntry(entry *zeroconf.ServiceEntry) (Peer, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return Peer{}, false
	}

	if entry.Port <= 0 || entry.Port > 65535 {
		return Peer{}, false
	}

	name := entry.Instance
	for _, txt := range entry.Text {
		if v, ok := strings.CutPrefix(txt, txtName); ok && v != "" {
			name = v
		}
	}

	return NewPeer(entry.AddrIPv4[0], Announce{Name: name, TransferPort: uint16(entry.Port)})
}
