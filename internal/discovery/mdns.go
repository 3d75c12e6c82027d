// ABOUTME: mDNS discovery of an advertising desktop peer
// ABOUTME: Browses _audiolink._tcp so users can skip typing an address
package discovery

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/mdns"
)

// serviceType is the mDNS service a desktop peer may advertise.
const serviceType = "_audiolink._tcp"

// PeerInfo describes a discovered desktop peer.
type PeerInfo struct {
	Name string
	Host string
	Port int
}

// Manager handles mDNS browsing. Discovery is best-effort: a desktop peer
// that does not advertise is reached with an explicit address instead.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	peers  chan *PeerInfo
}

// NewManager creates a discovery manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		peers:  make(chan *PeerInfo, 10),
	}
}

// Browse starts searching for desktop peers in the background.
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop repeatedly queries until the manager is stopped.
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}
				peer := &PeerInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				log.Printf("Discovered desktop peer: %s at %s:%d", peer.Name, peer.Host, peer.Port)

				select {
				case m.peers <- peer:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
	}
}

// Peers returns the channel of discovered peers.
func (m *Manager) Peers() <-chan *PeerInfo {
	return m.peers
}

// Stop stops the discovery manager.
func (m *Manager) Stop() {
	m.cancel()
}
