package prompt

import (
	"fmt"
	"strings"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/Dyastin-0/lanbyte/styles"
	"github.com/charmbracelet/huh"
)

const (
	optFilter   = "filter"
	optPageInfo = "page_info"
	optPrev     = "prev_page"
	optNext     = "next_page"
	optCancel   = "cancel"
	optDone     = "done"
)

// PeerSelector lets the user pick one discovered peer.
type PeerSelector struct {
	selected string
	peers    []core.Peer
	filter   string
	page     int
}

func NewPeerSelector(peers []core.Peer) *PeerSelector {
	sorted := make([]core.Peer, len(peers))
	copy(sorted, peers)
	core.SortPeers(sorted)

	return &PeerSelector{
		peers: sorted,
	}
}

func (p *PeerSelector) filteredPeers() []core.Peer {
	if p.filter == "" {
		return p.peers
	}

	filterLower := strings.ToLower(p.filter)

	filtered := make([]core.Peer, 0)
	for _, peer := range p.peers {
		if strings.Contains(strings.ToLower(peer.Name), filterLower) ||
			strings.Contains(peer.Addr.String(), filterLower) {
			filtered = append(filtered, peer)
		}
	}

	return filtered
}

func formatPeerOption(peer core.Peer) string {
	name := peer.Name
	if len(name) > 20 {
		name = name[:17] + "..."
	}

	return fmt.Sprintf("%-20s %s", name, peer.Addr)
}

func (p *PeerSelector) options() []huh.Option[string] {
	peers := p.filteredPeers()
	p.page = clampPage(p.page, len(peers))
	totalPages := pages(len(peers))

	var options []huh.Option[string]

	filterText := "Filter peers"
	if p.filter != "" {
		filterText = fmt.Sprintf("Filter: '%s'", p.filter)
	}
	options = append(options, huh.NewOption(filterText, optFilter))

	if totalPages > 1 {
		pageInfo := fmt.Sprintf("Page %d of %d (%d peers)", p.page+1, totalPages, len(peers))
		options = append(options, huh.NewOption(styles.PAGE.Render(pageInfo), optPageInfo))

		if p.page > 0 {
			options = append(options, huh.NewOption("<-", optPrev))
		}
		if p.page < totalPages-1 {
			options = append(options, huh.NewOption("->", optNext))
		}
	}

	start := p.page * PAGESIZE
	end := min(start+PAGESIZE, len(peers))

	for _, peer := range peers[start:end] {
		options = append(options, huh.NewOption(formatPeerOption(peer), peer.Addr.String()))
	}

	return append(options, huh.NewOption("Cancel", optCancel))
}

// Run shows the picker until a peer is chosen or the user cancels.
func (p *PeerSelector) Run() (core.Peer, error) {
	for {
		title := fmt.Sprintf("Choose a peer (%d found):", len(p.peers))
		if p.filter != "" {
			title += fmt.Sprintf(" [Filter: %s]", p.filter)
		}

		form := huh.NewSelect[string]().
			Title(title).
			Options(p.options()...).
			Value(&p.selected).
			Height(20)

		if err := form.Run(); err != nil {
			return core.Peer{}, err
		}

		switch p.selected {
		case optCancel:
			return core.Peer{}, ErrCanceled
		case optFilter:
			p.filter = filterInput("Filter peers (by name or address):", p.filter)
			p.page = 0
		case optPrev:
			p.page--
		case optNext:
			p.page++
		case optPageInfo:
		default:
			if peer, ok := p.lookup(p.selected); ok {
				return peer, nil
			}
		}
	}
}

func (p *PeerSelector) lookup(addr string) (core.Peer, bool) {
	for _, peer := range p.peers {
		if peer.Addr.String() == addr {
			return peer, true
		}
	}
	return core.Peer{}, false
}

func filterInput(title, current string) string {
	var newFilter string

	form := huh.NewInput().
		Title(title).
		Value(&newFilter).
		Placeholder(current)

	if err := form.Run(); err != nil {
		return current
	}

	return strings.TrimSpace(newFilter)
}
