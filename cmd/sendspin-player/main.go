// ABOUTME: Entry point for the reference Sendspin player
// ABOUTME: Parses CLI flags, discovers or dials a server, and drives a status TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sendspin/sendspin-go/internal/discovery"
	"github.com/sendspin/sendspin-go/internal/session"
	"github.com/sendspin/sendspin-go/internal/state"
	"github.com/sendspin/sendspin-go/internal/version"
	"github.com/sendspin/sendspin-go/pkg/protocol"
)

var (
	serverAddr = flag.String("server", "", "Manual server WebSocket URL (skip mDNS), e.g. ws://192.168.1.5:8927/sendspin")
	name       = flag.String("name", "", "Player friendly name (default: hostname-sendspin-player)")
	logFile    = flag.String("log-file", "sendspin-player.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, log to stdout instead")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	useTUI := !*noTUI
	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-sendspin-player", hostname)
	}

	serverURL := *serverAddr
	if serverURL == "" {
		addr, err := discoverServer()
		if err != nil {
			log.Fatalf("discovery failed and no -server given: %v", err)
		}
		serverURL = addr
	}

	sess := session.New(session.Config{
		ServerURL:  serverURL,
		ClientName: playerName,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		SupportedCodecs: []protocol.AudioFormat{
			{Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16},
			{Codec: "flac", Channels: 2, SampleRate: 48000, BitDepth: 16},
			{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16},
		},
		BufferCapacity: 1048576,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		cancel()
	}()

	if !useTUI {
		log.Printf("Starting Sendspin Player: %s -> %s", playerName, serverURL)
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("session error: %v", err)
		}
		return
	}

	runWithTUI(ctx, sess, playerName)
}

func discoverServer() (string, error) {
	mgr := discovery.NewManager(discovery.Config{})
	mgr.Browse()
	defer mgr.Stop()

	select {
	case s := <-mgr.Servers():
		return fmt.Sprintf("ws://%s:%d/sendspin", s.Host, s.Port), nil
	case <-time.After(5 * time.Second):
		return "", fmt.Errorf("no server found on the LAN within 5s")
	}
}

// runWithTUI drives the bubbletea program alongside the session,
// forwarding State Store changes and periodic sync snapshots into it.
func runWithTUI(ctx context.Context, sess *session.Session, playerName string) {
	prog := tea.NewProgram(newModel(playerName))

	sess.Store.SetObserver(observerFunc(func(s state.Session) {
		prog.Send(statusMsg(s))
	}))

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				synced, errUs := sess.SyncStatus()
				prog.Send(syncStatusMsg{
					synchronized: synced,
					errorUs:      errUs,
					resyncCount:  sess.ResyncCount(),
				})
			}
		}
	}()

	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("session error: %v", err)
		}
		prog.Quit()
	}()

	if _, err := prog.Run(); err != nil {
		log.Printf("TUI error: %v", err)
	}
}

type observerFunc func(state.Session)

func (f observerFunc) OnStateChanged(s state.Session) { f(s) }
