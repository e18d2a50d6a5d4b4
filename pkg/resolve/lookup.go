package resolve

import (
	"context"
	"errors"
	"net"
	"net/netip"
)

// MXHost is one mail exchanger as returned by the DNS: the target host name
// and its preference, lower being more preferred.
type MXHost struct {
	Host string
	Pref uint16
}

// DNSLookuper is the DNS query service the resolver consumes. Lookup errors
// are classified through the *net.DNSError conventions: IsNotFound covers
// both NXDOMAIN and an empty answer, IsTemporary/IsTimeout mark transient
// server failures, and anything else is a permanent lookup error.
type DNSLookuper interface {
	// LookupMX returns the mail exchangers for domain, unordered.
	LookupMX(ctx context.Context, domain string) ([]MXHost, error)
	// LookupAddrs returns the addresses of host for the given families, in
	// family order. A partial per-family failure is not an error as long as
	// any address was found.
	LookupAddrs(ctx context.Context, host string, families []Family) ([]netip.Addr, error)
}

// HostLookuper is the native name service (hosts file, nsswitch). It is the
// LookupNetIP subset of *net.Resolver, which satisfies it directly.
type HostLookuper interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// PresenceSet supplies the addresses the local system, or a proxy acting for
// it, is currently reachable on. The resolver takes a fresh snapshot per
// top-level call and never caches it.
type PresenceSet interface {
	LocalAddrs() ([]netip.Addr, error)
}

// isNotFound reports whether err is a host-unknown class lookup error.
func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// isTransient reports whether err looks retriable: a timeout, a temporary
// server condition, or a cancelled context (the caller will come back).
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary() //nolint:staticcheck // Temporary is what the platform reports for EAI_AGAIN.
	}
	return false
}
