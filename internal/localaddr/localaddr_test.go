package localaddr

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipNet(cidr string) *net.IPNet {
	ip, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func TestLocalAddrs(t *testing.T) {
	t.Run("interface addresses are unmapped", func(t *testing.T) {
		p := New()
		p.interfaceAddrs = func() ([]net.Addr, error) {
			return []net.Addr{
				ipNet("192.0.2.1/24"),
				ipNet("2001:db8::1/64"),
			}, nil
		}

		addrs, err := p.LocalAddrs()

		require.NoError(t, err)
		assert.Equal(t, []netip.Addr{
			netip.MustParseAddr("192.0.2.1"),
			netip.MustParseAddr("2001:db8::1"),
		}, addrs)
	})

	t.Run("proxy addresses are appended", func(t *testing.T) {
		p := New(netip.MustParseAddr("198.51.100.7"))
		p.interfaceAddrs = func() ([]net.Addr, error) {
			return []net.Addr{ipNet("192.0.2.1/24")}, nil
		}

		addrs, err := p.LocalAddrs()

		require.NoError(t, err)
		assert.Contains(t, addrs, netip.MustParseAddr("198.51.100.7"))
	})

	t.Run("unexpected address types are skipped", func(t *testing.T) {
		p := New()
		p.interfaceAddrs = func() ([]net.Addr, error) {
			return []net.Addr{
				&net.TCPAddr{IP: net.ParseIP("192.0.2.1")},
				ipNet("192.0.2.2/24"),
			}, nil
		}

		addrs, err := p.LocalAddrs()

		require.NoError(t, err)
		assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.0.2.2")}, addrs)
	})

	t.Run("interface listing failure propagates", func(t *testing.T) {
		p := New()
		p.interfaceAddrs = func() ([]net.Addr, error) {
			return nil, errors.New("netlink down")
		}

		_, err := p.LocalAddrs()
		assert.Error(t, err)
	})
}
