// Package proxyrecord holds the value type describing one upstream SOCKS5
// proxy and its canonical textual form.
package proxyrecord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat is returned when a candidate line cannot be parsed into
// a Record.
var ErrInvalidFormat = errors.New("proxyrecord: invalid format")

// Auth holds upstream SOCKS5 username/password credentials.
type Auth struct {
	Username string
	Password string
}

// Record describes one upstream SOCKS5 proxy.
//
// Canonical text form is "host:port" for anonymous proxies and
// "host:port:user:pass" for authenticated ones. Parsing requires at least
// 3 colon-separated fields to treat a line as authenticated; exactly 2
// fields means anonymous.
type Record struct {
	Host    string
	Port    uint16
	Auth    *Auth
	Live    bool
	Latency time.Duration
	Used    bool
}

// Parse parses s into a Record. It fails with ErrInvalidFormat if s has
// fewer than 2 colon-delimited fields or the port segment is not a valid
// uint16.
func Parse(s string) (Record, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	port, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad port in %q: %v", ErrInvalidFormat, s, err)
	}

	rec := Record{
		Host: parts[0],
		Port: uint16(port),
	}

	if len(parts) >= 3 {
		rec.Auth = &Auth{Username: parts[2]}
		if len(parts) >= 4 {
			rec.Auth.Password = parts[3]
		}
	}

	return rec, nil
}

// String renders the canonical text form: "host:port" when Auth is nil,
// otherwise "host:port:user:pass".
func (r Record) String() string {
	if r.Auth == nil {
		return fmt.Sprintf("%s:%d", r.Host, r.Port)
	}
	return fmt.Sprintf("%s:%d:%s:%s", r.Host, r.Port, r.Auth.Username, r.Auth.Password)
}

// Addr returns the "host:port" dial address for this record.
func (r Record) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Equal reports whether r and other are structurally identical, including
// latency, liveness, and the used marker.
func (r Record) Equal(other Record) bool {
	if r.Host != other.Host || r.Port != other.Port || r.Live != other.Live ||
		r.Latency != other.Latency || r.Used != other.Used {
		return false
	}
	if (r.Auth == nil) != (other.Auth == nil) {
		return false
	}
	if r.Auth != nil && *r.Auth != *other.Auth {
		return false
	}
	return true
}

// SameUpstream reports whether two records name the same upstream
// (host:port), ignoring latency/liveness/used bookkeeping. This is the
// comparison the rotation manager uses to detect "new proxy is the same
// as the old one" (catalog size 1 edge case).
func (r Record) SameUpstream(other Record) bool {
	return r.Host == other.Host && r.Port == other.Port
}
