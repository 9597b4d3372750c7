// ABOUTME: mDNS browsing for locating a Sendspin server on the LAN
// ABOUTME: Peripheral: used only by cmd/sendspin-player, never by the core packages
package discovery

import (
	"context"
	"time"

	"github.com/hashicorp/mdns"
)

// Config holds discovery configuration.
type Config struct {
	ServiceName string
	Timeout     int // seconds per browse round
}

// ServerInfo describes a discovered server.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Manager browses for Sendspin servers via mDNS.
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// NewManager creates a discovery manager.
func NewManager(config Config) *Manager {
	if config.Timeout == 0 {
		config.Timeout = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Browse starts searching for Sendspin servers in the background.
func (m *Manager) Browse() {
	go m.browseLoop()
}

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
				server := &ServerInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}
				select {
				case m.servers <- server:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: "_sendspin-server._tcp",
			Domain:  "local",
			Timeout: time.Duration(m.config.Timeout) * time.Second,
			Entries: entries,
		}
		mdns.Query(params)
		close(entries)
	}
}

// Servers returns the channel of discovered servers.
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop ends browsing.
func (m *Manager) Stop() {
	m.cancel()
}
