// Package resolve computes the network addresses an outbound mail message
// should be delivered to, in the priority order Internet mail routing
// requires.
//
// Given a destination domain, the resolver looks up its mail exchangers,
// resolves each exchanger to addresses, orders everything by preference,
// removes targets that would loop the message back to this system, and
// classifies any failure as transient, permanent, or "I am the destination".
// Given a bare host (symbolic name or numerical address) it resolves the
// host directly.
//
// # Basic Usage
//
// Build a resolver from a configuration and a DNS query service:
//
//	r := resolve.New(resolve.Config{
//		DNSEnabled: true,
//		Families:   []resolve.Family{resolve.FamilyV4, resolve.FamilyV6},
//		Randomize:  true,
//	}, resolve.WithDNS(dnsclient.New(5*time.Second)))
//
//	res := r.DomainAddrs(ctx, "example.com", true)
//	switch res.Status {
//	case resolve.StatusNone:
//		for _, rec := range res.Records {
//			fmt.Printf("pref %d: %s\n", rec.Pref, rec.Addr)
//		}
//	case resolve.StatusRetry:
//		// transient: try again later
//	case resolve.StatusFail:
//		// permanent: bounce
//	case resolve.StatusLoop:
//		// this system is the best exchanger: configuration error
//	}
//
// # Lookup order
//
// A host token that parses as a literal address of an acceptable family is
// used as-is, without any name service round trip. Otherwise the DNS is
// queried when enabled; a DNS "host not found" falls through to the native
// name service (hosts file, nsswitch) as a second chance when that is
// enabled, while transient and other permanent DNS errors do not.
//
// # Ordering guarantees
//
// Result lists are always preference-ordered ascending. At equal preference
// IPv6 records sort ahead of IPv4 ones, and arrival order is kept unless
// Config.Randomize is set, in which case equal-preference runs are shuffled
// without ever reordering across preference tiers.
//
// # Outcome classification
//
// Every call returns a Result carrying an enhanced status code ("4.4.3",
// "5.3.5", ...) and free-form text along with the Status. When several
// sub-lookups contribute diagnostics the last write wins for the code, but a
// recorded StatusRetry is never downgraded by a later permanent failure:
// a message that might succeed later must not be bounced.
//
// The resolver holds no mutable state shared between calls apart from
// monotonic counters; it is safe for concurrent use.
package resolve
