// Package dnsclient implements the DNS query service the address resolver
// consumes: MX lookups and per-family address lookups over raw DNS message
// exchange.
//
// The client speaks to one or more upstream resolvers (picked at random per
// query for load distribution) with bounded retries, and maps DNS response
// codes onto the *net.DNSError classification the resolver keys its outcome
// logic on:
//
//   - NXDOMAIN and empty answers → IsNotFound
//   - SERVFAIL, network errors, timeouts → IsTemporary / IsTimeout
//   - everything else (REFUSED, FORMERR, ...) → a plain permanent error
//
// Address lookups query the requested families concurrently but reassemble
// the results deterministically in the caller's family order, so the
// resolver's ordering guarantees are unaffected by the parallelism.
//
// # Basic Usage
//
//	client := dnsclient.New(
//		5*time.Second,
//		dnsclient.WithResolvers([]string{"1.1.1.1:53", "8.8.8.8:53"}),
//		dnsclient.WithRetries(1),
//	)
//	mxs, err := client.LookupMX(ctx, "example.com")
//
// Uses github.com/miekg/dns for low-level DNS operations.
package dnsclient
