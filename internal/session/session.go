// ABOUTME: Wires transport, state, time sync, decode, and scheduler into a running client
// ABOUTME: Owns the Time Filter and State Store, per their single-instance-per-session lifetime
package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/sendspin/sendspin-go/internal/decode"
	"github.com/sendspin/sendspin-go/internal/engine"
	"github.com/sendspin/sendspin-go/internal/scheduler"
	"github.com/sendspin/sendspin-go/internal/state"
	"github.com/sendspin/sendspin-go/pkg/audiosink"
	"github.com/sendspin/sendspin-go/pkg/protocol"
	"github.com/sendspin/sendspin-go/pkg/timesync"
)

// Config collects everything needed to dial a server and identify this
// client during the handshake.
type Config struct {
	ServerURL       string // e.g. "ws://192.168.1.5:8927/sendspin"
	ClientName      string
	DeviceInfo      *protocol.DeviceInfo
	SupportedCodecs []protocol.AudioFormat
	BufferCapacity  int
	DialTimeout     time.Duration

	SyncInterval  time.Duration
	StateInterval time.Duration
}

func (c Config) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.ClientName = c.ClientName
	cfg.DeviceInfo = c.DeviceInfo
	cfg.SupportedCodecs = c.SupportedCodecs
	cfg.BufferCapacity = c.BufferCapacity
	if c.SyncInterval > 0 {
		cfg.SyncInterval = c.SyncInterval
	}
	if c.StateInterval > 0 {
		cfg.StateInterval = c.StateInterval
	}
	return cfg
}

// Session is a single connected client: one Time Filter, one State
// Store, one Scheduler, one Protocol Engine, all sharing the sink and
// decoder dispatch built for the connection's lifetime. Filter and
// Store are constructed eagerly so a host (e.g. a status TUI) can
// observe them before the connection is established.
type Session struct {
	cfg    Config
	Store  *state.Store
	filter *timesync.Filter
	sched  *scheduler.Scheduler
}

// New constructs the session's shared collaborators. It does not dial
// the server; call Run to connect and drive the connection.
func New(cfg Config) *Session {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	store := state.New()
	filter := timesync.NewFilter(timesync.DefaultConfig())
	sink := audiosink.NewOtoSink()
	sched := scheduler.New(sink, filter, store, scheduler.DefaultConfig())

	return &Session{
		cfg:    cfg,
		Store:  store,
		filter: filter,
		sched:  sched,
	}
}

// SyncStatus reports the Time Filter's current lock state, for a host
// that wants to display it without reaching into internals.
func (s *Session) SyncStatus() (synchronized bool, errorUs float64) {
	return s.filter.IsSynchronized(), s.filter.Error()
}

// ResyncCount reports how many timeline discontinuities the Scheduler
// has handled so far.
func (s *Session) ResyncCount() int {
	return s.sched.ResyncCount()
}

// Run dials the server and runs the Protocol Engine until ctx is
// cancelled or the connection drops, returning the terminal error.
func (s *Session) Run(ctx context.Context) error {
	dialCtx, cancelDial := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancelDial()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.cfg.ServerURL, nil)
	if err != nil {
		u, parseErr := url.Parse(s.cfg.ServerURL)
		if parseErr != nil {
			return fmt.Errorf("session: dial %q: %w", s.cfg.ServerURL, err)
		}
		return fmt.Errorf("session: dial %s: %w", u.Host, err)
	}

	dispatcher := decode.NewDispatcher(s.Store, s.sched)
	eng := engine.New(conn, s.Store, s.filter, dispatcher, s.sched, s.cfg.engineConfig())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		// A transport close ends eng.Run with a nil error, which does not
		// cancel groupCtx; cancel explicitly so the goroutine below ends too.
		defer cancelRun()
		return eng.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return s.sched.Close()
	})

	return group.Wait()
}
