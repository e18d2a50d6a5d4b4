// Package localaddr assembles the set of addresses the local system is
// reachable on: the addresses assigned to its network interfaces plus any
// configured proxy addresses that accept mail on its behalf. The set is
// rebuilt on every call so interface changes are picked up without a
// restart.
package localaddr

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/lc/mxroute/internal/log"
)

// Provider produces local presence snapshots.
type Provider struct {
	proxy []netip.Addr

	// interfaceAddrs is swappable for testing.
	interfaceAddrs func() ([]net.Addr, error)
}

// New creates a Provider. The given proxy addresses are included in every
// snapshot in addition to the interface addresses of this system.
func New(proxy ...netip.Addr) *Provider {
	return &Provider{
		proxy:          proxy,
		interfaceAddrs: net.InterfaceAddrs,
	}
}

// LocalAddrs returns a fresh snapshot of the addresses this system, or a
// proxy acting for it, is reachable on.
func (p *Provider) LocalAddrs() ([]netip.Addr, error) {
	ifAddrs, err := p.interfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}

	addrs := make([]netip.Addr, 0, len(ifAddrs)+len(p.proxy))
	for _, ia := range ifAddrs {
		ipNet, ok := ia.(*net.IPNet)
		if !ok {
			log.Warnf("localaddr: interface address of unexpected type %T", ia)
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addrs = append(addrs, addr.Unmap())
	}
	for _, a := range p.proxy {
		addrs = append(addrs, a.Unmap())
	}
	return addrs, nil
}
