// Package tunnel implements the per-connection SOCKS5 tunnel: a server-side
// method exchange with the client (Phase A), an authenticated SOCKS5
// session with the upstream proxy (Phase B, via internal/socksproto), and
// an opaque bidirectional byte splice between the two for the connection's
// lifetime (Phase C).
//
// The client's own SOCKS5 CONNECT request is never parsed here — once the
// method exchange completes, everything flowing in either direction is
// forwarded verbatim.
package tunnel

import (
	"io"
	"log/slog"
	"net"
	"sync"

	"socksrotate/internal/proxyrecord"
	"socksrotate/internal/socksproto"
)

// Serve runs the tunnel for one accepted client connection against an
// upstream connection already authenticated by Dial. It blocks until the splice completes (both
// directions drained or one errors) and closes both connections before
// returning.
//
// Serve implements the client method exchange and the splice; the
// upstream handshake is performed by Dial, which the caller
// (internal/gateway's Listener) invokes before Serve so an upstream dial
// failure can be logged and the client connection dropped without ever
// reaching Serve.
func Serve(client net.Conn, upstream net.Conn) {
	defer client.Close()
	defer upstream.Close()

	if err := socksproto.ServerGreeting(client); err != nil {
		slog.Debug("tunnel: client greeting failed", "error", err)
		return
	}

	splice(client, upstream)
}

// Dial performs Phase B: open a TCP connection to rec's upstream and run
// the SOCKS5 greeting + RFC 1929 subnegotiation. On success the returned
// connection is ready for the client's CONNECT bytes to be relayed
// through verbatim.
func Dial(rec proxyrecord.Record, dialTimeout func() (net.Conn, error)) (net.Conn, error) {
	conn, err := dialTimeout()
	if err != nil {
		return nil, err
	}
	if err := socksproto.UpstreamHandshake(conn, rec); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// splice copies bytes in both directions until either side reaches EOF or
// an I/O error; a failure on one direction closes both connections so the
// other direction's blocking Read/Write unblocks promptly. Each direction
// is copied by its own goroutine, joined by a WaitGroup.
func splice(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	copyDir := func(dst, src net.Conn) {
		defer wg.Done()
		defer dst.Close()
		defer src.Close()
		io.Copy(dst, src)
	}

	go copyDir(a, b)
	go copyDir(b, a)

	wg.Wait()
}
