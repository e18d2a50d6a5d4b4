package resolve

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrRec(pref uint32, addr string) Record {
	return recordForAddr("host."+addr, pref, netip.MustParseAddr(addr))
}

func prefs(recs []Record) []uint32 {
	out := make([]uint32, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Pref)
	}
	return out
}

func TestFamilyOf(t *testing.T) {
	testCases := []struct {
		name     string
		addr     string
		expected Family
	}{
		{name: "plain v4", addr: "192.0.2.1", expected: FamilyV4},
		{name: "mapped v4 counts as v4", addr: "::ffff:192.0.2.1", expected: FamilyV4},
		{name: "plain v6", addr: "2001:db8::1", expected: FamilyV6},
		{name: "loopback v6", addr: "::1", expected: FamilyV6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, familyOf(netip.MustParseAddr(tc.addr)))
		})
	}
}

func TestRecordForAddr(t *testing.T) {
	t.Run("v4 becomes A", func(t *testing.T) {
		rec := recordForAddr("mx.example.com", 10, netip.MustParseAddr("192.0.2.1"))
		assert.Equal(t, KindA, rec.Kind)
		assert.Equal(t, "mx.example.com", rec.Name)
		assert.Equal(t, uint32(10), rec.Pref)
	})

	t.Run("v6 becomes AAAA", func(t *testing.T) {
		rec := recordForAddr("mx.example.com", 10, netip.MustParseAddr("2001:db8::1"))
		assert.Equal(t, KindAAAA, rec.Kind)
	})

	t.Run("mapped address is unmapped", func(t *testing.T) {
		rec := recordForAddr("mx.example.com", 10, netip.MustParseAddr("::ffff:192.0.2.1"))
		assert.Equal(t, KindA, rec.Kind)
		assert.Equal(t, netip.MustParseAddr("192.0.2.1"), rec.Addr)
	})
}

func TestSortByPref(t *testing.T) {
	t.Run("orders ascending", func(t *testing.T) {
		recs := []Record{
			addrRec(30, "192.0.2.3"),
			addrRec(10, "192.0.2.1"),
			addrRec(20, "192.0.2.2"),
		}
		sortByPref(recs)
		assert.Equal(t, []uint32{10, 20, 30}, prefs(recs))
	})

	t.Run("v6 ahead of v4 at equal preference", func(t *testing.T) {
		recs := []Record{
			addrRec(10, "192.0.2.1"),
			addrRec(10, "2001:db8::1"),
			addrRec(10, "192.0.2.2"),
		}
		sortByPref(recs)
		require.Len(t, recs, 3)
		assert.Equal(t, KindAAAA, recs[0].Kind)
		// Stable sort keeps the arrival order of the v4 records.
		assert.Equal(t, netip.MustParseAddr("192.0.2.1"), recs[1].Addr)
		assert.Equal(t, netip.MustParseAddr("192.0.2.2"), recs[2].Addr)
	})

	t.Run("preference beats family", func(t *testing.T) {
		recs := []Record{
			addrRec(20, "2001:db8::1"),
			addrRec(10, "192.0.2.1"),
		}
		sortByPref(recs)
		assert.Equal(t, KindA, recs[0].Kind)
	})
}

func TestShuffleKeepsElements(t *testing.T) {
	recs := []Record{
		addrRec(10, "192.0.2.1"),
		addrRec(10, "192.0.2.2"),
		addrRec(20, "192.0.2.3"),
		addrRec(20, "192.0.2.4"),
	}
	before := make(map[netip.Addr]int)
	for _, r := range recs {
		before[r.Addr]++
	}

	shuffle(recs)
	sortByPref(recs)

	after := make(map[netip.Addr]int)
	for _, r := range recs {
		after[r.Addr]++
	}
	assert.Equal(t, before, after)
	// Preference tiers survive a shuffle-then-resort.
	assert.Equal(t, []uint32{10, 10, 20, 20}, prefs(recs))
}

func TestTruncateSelf(t *testing.T) {
	recs := []Record{
		addrRec(10, "192.0.2.1"),
		addrRec(20, "192.0.2.2"),
		addrRec(20, "192.0.2.3"),
		addrRec(30, "192.0.2.4"),
	}

	testCases := []struct {
		name     string
		pref     uint32
		expected []uint32
	}{
		// The whole matching tier goes, and everything after it.
		{name: "middle tier", pref: 20, expected: []uint32{10}},
		{name: "best tier", pref: 10, expected: []uint32{}},
		{name: "worst tier", pref: 30, expected: []uint32{10, 20, 20}},
		{name: "absent preference keeps all", pref: 15, expected: []uint32{10, 20, 20, 30}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncateSelf(recs, tc.pref)
			assert.Equal(t, tc.expected, prefs(got))
		})
	}
}

func TestFindSelf(t *testing.T) {
	recs := []Record{
		addrRec(10, "192.0.2.1"),
		addrRec(20, "192.0.2.2"),
		addrRec(30, "192.0.2.3"),
	}

	t.Run("no match", func(t *testing.T) {
		_, ok := findSelf(recs, []netip.Addr{netip.MustParseAddr("198.51.100.1")})
		assert.False(t, ok)
	})

	t.Run("returns most preferred match", func(t *testing.T) {
		local := []netip.Addr{
			netip.MustParseAddr("192.0.2.3"),
			netip.MustParseAddr("192.0.2.2"),
		}
		self, ok := findSelf(recs, local)
		require.True(t, ok)
		assert.Equal(t, uint32(20), self.Pref)
	})

	t.Run("mapped local address matches", func(t *testing.T) {
		self, ok := findSelf(recs, []netip.Addr{netip.MustParseAddr("::ffff:192.0.2.1")})
		require.True(t, ok)
		assert.Equal(t, uint32(10), self.Pref)
	})

	t.Run("idempotent after truncation", func(t *testing.T) {
		self, ok := findSelf(recs, []netip.Addr{netip.MustParseAddr("192.0.2.2")})
		require.True(t, ok)
		kept := truncateSelf(recs, self.Pref)
		_, ok = findSelf(kept, []netip.Addr{netip.MustParseAddr("192.0.2.2")})
		assert.False(t, ok)
	})
}
