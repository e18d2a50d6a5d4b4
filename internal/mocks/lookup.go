// Package mocks provides testify mocks for the resolver's collaborator
// interfaces.
package mocks

import (
	"context"
	"net/netip"

	"github.com/stretchr/testify/mock"

	"github.com/lc/mxroute/pkg/resolve"
)

var (
	_ resolve.DNSLookuper  = (*MockDNSLookuper)(nil)
	_ resolve.HostLookuper = (*MockHostLookuper)(nil)
	_ resolve.PresenceSet  = (*MockPresenceSet)(nil)
)

// MockDNSLookuper is a mock implementation of resolve.DNSLookuper.
type MockDNSLookuper struct {
	mock.Mock
}

// LookupMX mocks the LookupMX method.
func (m *MockDNSLookuper) LookupMX(ctx context.Context, domain string) ([]resolve.MXHost, error) {
	args := m.Called(ctx, domain)
	var mxs []resolve.MXHost
	if args.Get(0) != nil {
		mxs = args.Get(0).([]resolve.MXHost)
	}
	return mxs, args.Error(1)
}

// LookupAddrs mocks the LookupAddrs method.
func (m *MockDNSLookuper) LookupAddrs(ctx context.Context, host string, families []resolve.Family) ([]netip.Addr, error) {
	args := m.Called(ctx, host, families)
	var addrs []netip.Addr
	if args.Get(0) != nil {
		addrs = args.Get(0).([]netip.Addr)
	}
	return addrs, args.Error(1)
}

// MockHostLookuper is a mock implementation of resolve.HostLookuper.
type MockHostLookuper struct {
	mock.Mock
}

// LookupNetIP mocks the LookupNetIP method.
func (m *MockHostLookuper) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	args := m.Called(ctx, network, host)
	var addrs []netip.Addr
	if args.Get(0) != nil {
		addrs = args.Get(0).([]netip.Addr)
	}
	return addrs, args.Error(1)
}

// MockPresenceSet is a mock implementation of resolve.PresenceSet.
type MockPresenceSet struct {
	mock.Mock
}

// LocalAddrs mocks the LocalAddrs method.
func (m *MockPresenceSet) LocalAddrs() ([]netip.Addr, error) {
	args := m.Called()
	var addrs []netip.Addr
	if args.Get(0) != nil {
		addrs = args.Get(0).([]netip.Addr)
	}
	return addrs, args.Error(1)
}
