// Package probe implements the liveness probe shared by the catalog
// loader and the rotation manager's re-probe-on-assign path: a full
// upstream SOCKS5 handshake followed by an authenticated CONNECT to a
// fixed liveness target, with the elapsed time recorded as latency.
package probe

import (
	"fmt"
	"io"
	"time"

	"socksrotate/internal/proxyrecord"
	"socksrotate/internal/socksproto"
)

// Target names the liveness-probe's fixed CONNECT destination and the
// dial/handshake timeout budget. The zero value is not usable; use
// DefaultTarget.
type Target struct {
	Host        string
	Port        uint16
	DialTimeout time.Duration
}

// DefaultTarget is the default liveness target, httpbin.org:80.
var DefaultTarget = Target{Host: "httpbin.org", Port: 80, DialTimeout: 10 * time.Second}

// Error wraps any failure encountered while probing a proxy, per the
// spec's ProbeFailed(kind) error kind. Kind names which phase failed:
// "dial", "handshake", or "connect".
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe: %s failed: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes the liveness probe against rec using tgt as the fixed
// CONNECT destination. On success it returns a copy of rec with Live set
// true and Latency set to the elapsed time from dial start to the last
// read of the CONNECT reply. On failure it returns a *Error and the
// original record is discarded by the caller.
//
// The probe does not inspect the CONNECT reply's status byte — it only
// requires that all 10 reply bytes are read successfully. This is the
// spec's documented current (loose) behavior, not a bug fix (see
// DESIGN.md for the reasoning).
func Run(rec proxyrecord.Record, tgt Target) (proxyrecord.Record, error) {
	start := time.Now()

	conn, err := socksproto.DialUpstream(rec, tgt.DialTimeout)
	if err != nil {
		return proxyrecord.Record{}, &Error{Kind: "dial", Err: err}
	}
	defer conn.Close()

	conn.SetDeadline(start.Add(tgt.DialTimeout))

	if err := socksproto.UpstreamHandshake(conn, rec); err != nil {
		return proxyrecord.Record{}, &Error{Kind: "handshake", Err: err}
	}

	frame := socksproto.ConnectDomainFrame(tgt.Host, tgt.Port)
	if _, err := conn.Write(frame); err != nil {
		return proxyrecord.Record{}, &Error{Kind: "connect", Err: fmt.Errorf("write CONNECT frame: %w", err)}
	}

	reply := make([]byte, 10)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return proxyrecord.Record{}, &Error{Kind: "connect", Err: fmt.Errorf("read CONNECT reply: %w", err)}
	}

	latency := time.Since(start)

	out := rec
	out.Live = true
	out.Latency = latency
	return out, nil
}
