// Package gateway implements the Listener (a bound SOCKS5 acceptor with a
// mutable current upstream) and the rotation Manager that owns the
// catalog and the set of running Listeners.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"socksrotate/internal/probe"
	"socksrotate/internal/proxyrecord"
	"socksrotate/internal/socksproto"
	"socksrotate/internal/tunnel"
)

// ErrBindFailed wraps a failure to bind the listener's local socket.
var ErrBindFailed = errors.New("gateway: failed to bind listener")

// Listener is a TCP acceptor bound to 127.0.0.1:Port holding a
// mutable current upstream ProxyRecord. New connections accepted after
// SetProxy returns use the new proxy; connections already dispatched
// continue on the proxy they were handed.
type Listener struct {
	Port int

	probeTarget probe.Target
	dialTimeout time.Duration

	mu         sync.Mutex
	current    proxyrecord.Record
	startedAt  time.Time

	stopMu     sync.Mutex
	shouldStop bool

	ln net.Listener
}

// NewListener constructs a Listener bound to port with proxy already
// assigned. Binding is lazy: it happens in Bind.
func NewListener(port int, initial proxyrecord.Record, probeTarget probe.Target, dialTimeout time.Duration) *Listener {
	return &Listener{
		Port:        port,
		current:     initial,
		probeTarget: probeTarget,
		dialTimeout: dialTimeout,
	}
}

// Bind binds the listener's local socket. It must succeed before Serve is
// called; CreateServer calls it synchronously so a busy port surfaces as
// ErrBindFailed to the caller instead of dying silently in a goroutine.
func (l *Listener) Bind() error {
	addr := fmt.Sprintf("127.0.0.1:%d", l.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBindFailed, addr, err)
	}
	l.ln = ln

	l.mu.Lock()
	l.startedAt = time.Now()
	l.mu.Unlock()
	return nil
}

// Serve blocks, accepting connections on an already-Bound socket until
// Stop is called. Each accepted client is dispatched to a fresh tunnel
// worker against a snapshot of the currently assigned proxy; a failure
// dialing the upstream for one client is logged and only that connection
// is dropped.
func (l *Listener) Serve() error {
	addr := fmt.Sprintf("127.0.0.1:%d", l.Port)
	slog.Info("gateway: listener started", "addr", addr, "proxy", l.GetProxy().String())

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isStopping() {
				slog.Info("gateway: listener stopped", "addr", addr)
				return nil
			}
			slog.Error("gateway: accept failed", "addr", addr, "error", err)
			continue
		}

		if l.isStopping() {
			conn.Close()
			continue
		}

		rec := l.GetProxy()
		go l.dispatch(conn, rec)
	}
}

// dispatch performs Phase B against rec and, on success, hands the pair
// off to the tunnel for Phase A + C. A dial/handshake failure is logged
// and only this one connection is dropped.
func (l *Listener) dispatch(client net.Conn, rec proxyrecord.Record) {
	upstream, err := tunnel.Dial(rec, func() (net.Conn, error) {
		return socksproto.DialUpstream(rec, l.dialTimeout)
	})
	if err != nil {
		slog.Error("gateway: upstream dial/handshake failed, dropping connection", "proxy", rec.String(), "error", err)
		client.Close()
		return
	}
	tunnel.Serve(client, upstream)
}

// Stop sets should-stop and closes the listener socket, which unblocks
// the accept loop's blocking Accept call with an error on its next wake.
func (l *Listener) Stop() {
	l.stopMu.Lock()
	l.shouldStop = true
	l.stopMu.Unlock()

	if l.ln != nil {
		l.ln.Close()
	}
}

func (l *Listener) isStopping() bool {
	l.stopMu.Lock()
	defer l.stopMu.Unlock()
	return l.shouldStop
}

// GetProxy returns a snapshot of the currently assigned proxy.
func (l *Listener) GetProxy() proxyrecord.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// SetProxy re-probes candidate via the liveness probe; on success it
// atomically replaces the current assignment and resets started_at. On
// failure the current assignment is left unchanged and the probe error is
// returned.
func (l *Listener) SetProxy(candidate proxyrecord.Record) error {
	checked, err := probe.Run(candidate, l.probeTarget)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.current = checked
	l.startedAt = time.Now()
	l.mu.Unlock()
	return nil
}

// GetDuration reports how long the current proxy has been held.
func (l *Listener) GetDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Since(l.startedAt)
}
