package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"socksrotate/internal/catalog"
	"socksrotate/internal/probe"
	"socksrotate/internal/proxyrecord"
)

// ErrProxyNotSet is returned by Start when the catalog is empty.
var ErrProxyNotSet = errors.New("gateway: no proxies available")

// ErrServerNotFound is returned by StopServer when no listener matches.
var ErrServerNotFound = errors.New("gateway: server not found")

// Manager owns the catalog and the set of running Listeners: it assigns
// proxies to listeners and, on a timer, reassigns live listeners to
// fresh catalog entries without dropping their accepting sockets.
type Manager struct {
	probeTarget    probe.Target
	dialTimeout    time.Duration
	rotateInterval time.Duration

	catMu sync.Mutex
	cat   *catalog.Catalog

	lsMu      sync.Mutex
	listeners []*Listener
	nextPort  int
}

// NewManager builds a Manager around an already-loaded catalog. seedPort
// is the first port handed out by create_server's allocator.
func NewManager(cat *catalog.Catalog, seedPort int, rotateInterval time.Duration, probeTarget probe.Target, dialTimeout time.Duration) *Manager {
	return &Manager{
		probeTarget:    probeTarget,
		dialTimeout:    dialTimeout,
		rotateInterval: rotateInterval,
		cat:            cat,
		nextPort:       seedPort,
	}
}

// Start fails with ErrProxyNotSet if the catalog is empty. Otherwise it
// creates an initial Listener from the front of the catalog bound to the
// seed port, spawns its accept loop, then runs the rotation loop until
// stopCh is closed.
func (m *Manager) Start(stopCh <-chan struct{}) error {
	m.catMu.Lock()
	empty := m.cat.Len() == 0
	m.catMu.Unlock()
	if empty {
		return ErrProxyNotSet
	}

	m.catMu.Lock()
	initial, _ := m.cat.Next()
	m.catMu.Unlock()

	if _, err := m.CreateServer(initial); err != nil {
		return err
	}

	m.rotationLoop(stopCh)
	return nil
}

// CreateServer atomically allocates the next free port, constructs a
// Listener assigned to proxy, inserts it into the listener set, spawns its
// accept loop in the background, and returns its bound address. The
// listener is discoverable in the set before CreateServer returns.
func (m *Manager) CreateServer(proxy proxyrecord.Record) (net.Addr, error) {
	m.lsMu.Lock()
	port := m.nextPort
	m.nextPort++

	l := NewListener(port, proxy, m.probeTarget, m.dialTimeout)
	if err := l.Bind(); err != nil {
		m.nextPort-- // give the port back; it was never usable
		m.lsMu.Unlock()
		return nil, err
	}
	m.listeners = append(m.listeners, l)
	m.lsMu.Unlock()

	go func() {
		if err := l.Serve(); err != nil {
			slog.Error("gateway: listener exited", "port", port, "error", err)
		}
	}()

	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
	slog.Info("gateway: created server", "addr", addr.String(), "proxy", proxy.String())
	return addr, nil
}

// StopServer locates the Listener whose current proxy matches by host,
// removes it from the set, and stops it. After StopServer returns, that
// listener accepts no new connections, though splicing connections already
// in flight may continue until natural EOF.
func (m *Manager) StopServer(proxy proxyrecord.Record) error {
	m.lsMu.Lock()
	var found *Listener
	kept := m.listeners[:0:0]
	for _, l := range m.listeners {
		if found == nil && l.GetProxy().Host == proxy.Host {
			found = l
			continue
		}
		kept = append(kept, l)
	}
	if found != nil {
		m.listeners = kept
	}
	m.lsMu.Unlock()

	if found == nil {
		return fmt.Errorf("%w: host %s", ErrServerNotFound, proxy.Host)
	}
	found.Stop()
	return nil
}

// rotationLoop ticks every rotateInterval seconds, reassigning any
// listener that has held its current proxy for at least rotateInterval.
// It exits immediately if rotateInterval is zero.
func (m *Manager) rotationLoop(stopCh <-chan struct{}) {
	if m.rotateInterval <= 0 {
		slog.Info("gateway: rotation disabled (rotate_interval=0)")
		return
	}

	ticker := time.NewTicker(m.rotateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			slog.Info("gateway: rotation loop stopped")
			return
		case <-ticker.C:
			m.catMu.Lock()
			empty := m.cat.Len() == 0
			m.catMu.Unlock()
			if empty {
				slog.Warn("gateway: no proxies available for rotation, stopping rotation loop")
				return
			}
			m.rotateTick()
		}
	}
}

// rotateTick snapshots the listener set, releases the listener-set lock,
// then probes/reassigns each stale listener — so a slow probe never holds
// the set lock and blocks CreateServer/StopServer.
func (m *Manager) rotateTick() {
	m.lsMu.Lock()
	snapshot := append([]*Listener(nil), m.listeners...)
	m.lsMu.Unlock()

	slog.Info("gateway: rotation tick", "listeners", len(snapshot))

	for _, l := range snapshot {
		old := l.GetProxy()
		held := l.GetDuration()
		if held < m.rotateInterval {
			slog.Debug("gateway: proxy still fresh", "proxy", old.String(), "held", held)
			continue
		}

		m.catMu.Lock()
		next, ok := m.cat.Next()
		m.catMu.Unlock()
		if !ok {
			slog.Error("gateway: no proxies available for rotation")
			continue
		}

		if next.SameUpstream(old) {
			slog.Warn("gateway: new proxy is the same as the old proxy", "proxy", next.String())
			continue
		}

		if err := l.SetProxy(next); err != nil {
			slog.Error("gateway: failed to rotate proxy, keeping existing assignment", "listener_port", l.Port, "candidate", next.String(), "error", err)
			continue
		}
		slog.Info("gateway: rotated listener", "listener_port", l.Port, "old_proxy", old.String(), "new_proxy", next.String())
	}
}
