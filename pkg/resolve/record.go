package resolve

import (
	"fmt"
	"math/rand"
	"net/netip"
	"sort"
)

// Kind identifies what a Record describes: an unresolved mail exchanger
// reference, or a concrete IPv4/IPv6 delivery address.
type Kind uint8

const (
	// KindMX is a mail exchanger reference still to be resolved.
	KindMX Kind = iota + 1
	// KindA is an IPv4 delivery address.
	KindA
	// KindAAAA is an IPv6 delivery address.
	KindAAAA
)

// String returns the DNS-style name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMX:
		return "MX"
	case KindA:
		return "A"
	case KindAAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

const (
	// BestPref is the most preferred value an exchanger can carry.
	BestPref uint32 = 0
	// FallbackPref is stamped on locally-synthesized fallback records.
	// DNS preferences are 16-bit on the wire, so fallback records always
	// sort after every DNS-sourced record.
	FallbackPref uint32 = 1 << 16
	// impossiblePref marks "no preference seen yet" in best-preference
	// bookkeeping. It compares above every real preference.
	impossiblePref = ^uint32(0)
)

// Record is one entry in a delivery candidate list. Name is the hostname the
// record was derived from. For KindMX the Host field names the exchanger to
// resolve; for address kinds Addr holds the concrete address. Pref is
// immutable once the record is created; lower values are tried first.
type Record struct {
	Kind Kind
	Name string
	Pref uint32
	Addr netip.Addr
	Host string
}

// Family is an acceptable address family for delivery.
type Family uint8

const (
	// FamilyV4 accepts IPv4 addresses.
	FamilyV4 Family = iota + 1
	// FamilyV6 accepts IPv6 addresses.
	FamilyV6
)

// String returns the conventional name of the family.
func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "ipv4"
	case FamilyV6:
		return "ipv6"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// familyOf maps an address to its delivery family. 4-in-6 mapped addresses
// count as IPv4.
func familyOf(a netip.Addr) Family {
	if a.Is4() || a.Is4In6() {
		return FamilyV4
	}
	return FamilyV6
}

// recordForAddr synthesizes an address record for host at the given
// preference. Mapped addresses are unmapped first so equality against the
// local presence set is canonical.
func recordForAddr(host string, pref uint32, addr netip.Addr) Record {
	addr = addr.Unmap()
	kind := KindAAAA
	if addr.Is4() {
		kind = KindA
	}
	return Record{
		Kind: kind,
		Name: host,
		Pref: pref,
		Addr: addr,
	}
}

// comparePref orders records by ascending preference. At equal preference an
// IPv6 record sorts ahead of an IPv4 one, preferring dual-stack targets;
// records of the same kind compare equal so a stable sort keeps their
// arrival order.
func comparePref(a, b Record) int {
	if a.Pref != b.Pref {
		if a.Pref < b.Pref {
			return -1
		}
		return +1
	}
	if a.Kind == b.Kind {
		return 0
	}
	if a.Kind == KindAAAA {
		return -1
	}
	if b.Kind == KindAAAA {
		return +1
	}
	return 0
}

// sortByPref stable-sorts records with comparePref.
func sortByPref(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return comparePref(recs[i], recs[j]) < 0
	})
}

// shuffle randomly permutes the whole list. Callers re-sort by preference
// afterwards; the shuffle-then-stable-sort sequence is what randomizes the
// order within each equal-preference run without crossing runs.
func shuffle(recs []Record) {
	rand.Shuffle(len(recs), func(i, j int) {
		recs[i], recs[j] = recs[j], recs[i]
	})
}

// truncateSelf cuts the list at the first record carrying the given
// preference, removing that record and everything after it. Equal-preference
// records are equivalent routing choices, and anything less preferred is
// reachable only through them.
func truncateSelf(recs []Record, pref uint32) []Record {
	for i, rec := range recs {
		if rec.Pref == pref {
			return recs[:i]
		}
	}
	return recs
}

// findSelf returns the first record (the most preferred, in list order)
// whose address appears in the local presence set.
func findSelf(recs []Record, local []netip.Addr) (Record, bool) {
	for _, rec := range recs {
		for _, a := range local {
			if rec.Addr == a.Unmap() {
				return rec, true
			}
		}
	}
	return Record{}, false
}
