package dnsclient

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/lc/mxroute/pkg/resolve"
)

var (
	// ErrEmptyMsg is returned when the DNS response message is empty.
	ErrEmptyMsg = fmt.Errorf("empty message")
	// ErrEmptyName is returned when an empty name is provided.
	ErrEmptyName = fmt.Errorf("empty name")
)

var _defaultResolver = "1.1.1.1:53"

var _ resolve.DNSLookuper = (*Client)(nil)

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Client implements resolve.DNSLookuper on top of raw DNS exchanges.
type Client struct {
	Client    Exchanger
	Timeout   time.Duration
	Resolvers []string
	Retries   uint
}

// Opt is a function option for configuring the Client.
type Opt func(c *Client)

// New creates a new Client with the given timeout and optional configurations.
// The returned Client is ready to use for MX and address lookups.
func New(timeout time.Duration, opts ...Opt) *Client {
	c := &Client{
		Client: &dns.Client{
			Timeout: timeout,
		},
		Timeout: timeout,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// WithResolvers returns an option to set custom upstream resolvers.
// If not provided, the default resolver (1.1.1.1:53) will be used.
func WithResolvers(resolvers []string) Opt {
	return func(c *Client) {
		c.Resolvers = resolvers
	}
}

// WithTimeout returns an option to set a custom timeout for DNS queries.
// This overrides the timeout provided to New.
func WithTimeout(timeout time.Duration) Opt {
	return func(c *Client) {
		c.Timeout = timeout
	}
}

// WithRetries returns an option to set the number of extra attempts made
// per query before a transient failure is reported.
func WithRetries(retries uint) Opt {
	return func(c *Client) {
		c.Retries = retries
	}
}

// LookupMX returns the mail exchangers listed for domain. An NXDOMAIN and an
// answer with no MX records both surface as a not-found error; server
// failures and network errors surface as temporary ones.
func (c *Client) LookupMX(ctx context.Context, domain string) ([]resolve.MXHost, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, ErrEmptyName
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.query(ctx, domain, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	var mxs []resolve.MXHost
	for _, rr := range resp.Answer {
		mx, ok := rr.(*dns.MX)
		if !ok {
			continue
		}
		mxs = append(mxs, resolve.MXHost{
			Host: strings.TrimSuffix(mx.Mx, "."),
			Pref: mx.Preference,
		})
	}
	if len(mxs) == 0 {
		return nil, notFoundErr(domain, "no MX records")
	}
	return mxs, nil
}

// LookupAddrs resolves host to addresses of the given families, querying the
// families concurrently and returning the results in family order. Partial
// per-family failures are swallowed as long as any address was found; when
// nothing was, the combined error classifies as temporary if any family
// failed temporarily, not-found only if every family came up empty.
func (c *Client) LookupAddrs(ctx context.Context, host string, families []resolve.Family) ([]netip.Addr, error) {
	if strings.TrimSpace(host) == "" {
		return nil, ErrEmptyName
	}
	if len(families) == 0 {
		return nil, fmt.Errorf("no address families for %q", host)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	type famResult struct {
		addrs []netip.Addr
		err   error
	}
	results := make([]famResult, len(families))

	grp, ctx := errgroup.WithContext(ctx)
	for i, fam := range families {
		i, fam := i, fam
		grp.Go(func() error {
			addrs, err := c.lookupFamily(ctx, host, fam)
			results[i] = famResult{addrs: addrs, err: err}
			return nil
		})
	}
	_ = grp.Wait()

	var (
		addrs   []netip.Addr
		errs    error
		anyTemp bool
		anyPerm bool
	)
	for _, r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			if isTemporary(r.err) {
				anyTemp = true
			} else if !isNotFound(r.err) {
				anyPerm = true
			}
			continue
		}
		addrs = append(addrs, r.addrs...)
	}

	if len(addrs) > 0 {
		return addrs, nil
	}
	return nil, &net.DNSError{
		Err:         fmt.Sprintf("dns lookup for %q: %v", host, errs),
		Name:        host,
		IsTemporary: anyTemp,
		IsNotFound:  !anyTemp && !anyPerm,
	}
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func isTemporary(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout)
}

// lookupFamily resolves one address family for host.
func (c *Client) lookupFamily(ctx context.Context, host string, fam resolve.Family) ([]netip.Addr, error) {
	qtype := dns.TypeA
	if fam == resolve.FamilyV6 {
		qtype = dns.TypeAAAA
	}

	resp, err := c.query(ctx, host, qtype)
	if err != nil {
		return nil, err
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			if ip4 := rec.A.To4(); ip4 != nil {
				if a, ok := netip.AddrFromSlice(ip4); ok {
					addrs = append(addrs, a)
				}
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
				addrs = append(addrs, a.Unmap())
			}
		}
	}
	if len(addrs) == 0 {
		return nil, notFoundErr(host, fmt.Sprintf("no %s records", dns.TypeToString[qtype]))
	}
	return addrs, nil
}

// query sends one question, retrying c.Retries additional times on network
// errors and server failures, and maps the response code onto the
// *net.DNSError classification consumed by the resolver.
func (c *Client) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	var lastErr error
	for attempt := uint(0); attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, tempErr(name, err)
		}

		// Fresh request each attempt: ExchangeContext mutates *dns.Msg
		req := &dns.Msg{}
		req.SetQuestion(dns.Fqdn(name), qtype)

		resp, _, err := c.Client.ExchangeContext(ctx, req, c.pickResolver())
		if err != nil {
			lastErr = tempErr(name, err)
			continue // retry
		}
		if resp == nil {
			lastErr = tempErr(name, ErrEmptyMsg)
			continue // retry
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, notFoundErr(name, "no such domain")
		case dns.RcodeServerFailure:
			lastErr = tempErr(name, fmt.Errorf("server failure"))
			continue // retry
		default:
			return nil, &net.DNSError{
				Err:  fmt.Sprintf("server returned %s", dns.RcodeToString[resp.Rcode]),
				Name: name,
			}
		}
	}

	if lastErr == nil {
		lastErr = tempErr(name, fmt.Errorf("dns lookup failed for %q", name))
	}
	return nil, lastErr
}

// pickResolver returns a random resolver from the list of resolvers.
func (c *Client) pickResolver() string {
	if len(c.Resolvers) == 0 {
		return _defaultResolver
	}

	// Use crypto/rand for secure random selection
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(c.Resolvers))))
	if err != nil {
		// Fall back to first resolver on error
		return c.Resolvers[0]
	}

	return c.Resolvers[n.Int64()]
}

func notFoundErr(name, msg string) *net.DNSError {
	return &net.DNSError{Err: msg, Name: name, IsNotFound: true}
}

func tempErr(name string, err error) *net.DNSError {
	timeout := false
	var ne net.Error
	if errors.As(err, &ne) {
		timeout = ne.Timeout()
	}
	return &net.DNSError{
		Err:         err.Error(),
		Name:        name,
		IsTemporary: true,
		IsTimeout:   timeout,
	}
}
