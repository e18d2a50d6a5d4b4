package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lc/mxroute/internal/localaddr"
	"github.com/lc/mxroute/internal/log"
)

// Config holds the read-only knobs for a Resolver. The zero value is not
// usable; at least one lookup mechanism and one family must be enabled.
type Config struct {
	// DNSEnabled enables MX and address lookups via the DNS.
	DNSEnabled bool
	// NativeEnabled enables the platform name service, standalone or as a
	// second chance after a DNS not-found.
	NativeEnabled bool
	// Families is the ordered list of acceptable address families.
	Families []Family
	// Randomize shuffles equal-preference candidates to spread load.
	Randomize bool
	// IgnoreMXErrors falls back to direct host resolution when the MX
	// lookup itself fails.
	IgnoreMXErrors bool
	// DeferNoMXAddress defers delivery when no MX host has a valid address
	// record, instead of returning an empty list without an error.
	DeferNoMXAddress bool
}

// Resolver computes the ordered set of candidate delivery addresses for a
// destination domain or host. It is safe for concurrent use; every call
// owns its Result exclusively.
type Resolver struct {
	cfg    Config
	dns    DNSLookuper
	native HostLookuper
	local  PresenceSet

	stats stats
}

type stats struct {
	domains  atomic.Int64
	hosts    atomic.Int64
	retries  atomic.Int64
	failures atomic.Int64
	loops    atomic.Int64
}

// Stats is a snapshot of the resolver's counters.
type Stats struct {
	Domains  int64 // DomainAddrs calls
	Hosts    int64 // HostAddrs calls
	Retries  int64 // calls that ended in StatusRetry
	Failures int64 // calls that ended in StatusFail
	Loops    int64 // calls that ended in StatusLoop
}

// Opt is a function option for configuring the Resolver.
type Opt func(r *Resolver)

// WithDNS sets the DNS query service. Required when Config.DNSEnabled.
func WithDNS(dns DNSLookuper) Opt {
	return func(r *Resolver) {
		r.dns = dns
	}
}

// WithNative sets the native name service. Defaults to net.DefaultResolver.
func WithNative(native HostLookuper) Opt {
	return func(r *Resolver) {
		r.native = native
	}
}

// WithPresence sets the local presence set used for loop detection.
// Defaults to the interface addresses of this system.
func WithPresence(local PresenceSet) Opt {
	return func(r *Resolver) {
		r.local = local
	}
}

// New creates a Resolver. It panics when cfg enables DNS lookups but no DNS
// query service was supplied; that is a wiring defect, not a runtime
// condition.
func New(cfg Config, opts ...Opt) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		native: net.DefaultResolver,
		local:  localaddr.New(),
	}
	for _, o := range opts {
		o(r)
	}
	if cfg.DNSEnabled && r.dns == nil {
		panic("resolve: DNS lookups enabled without a DNS query service")
	}
	return r
}

// Stats returns a snapshot of the resolver's counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Domains:  r.stats.domains.Load(),
		Hosts:    r.stats.hosts.Load(),
		Retries:  r.stats.retries.Load(),
		Failures: r.stats.failures.Load(),
		Loops:    r.stats.loops.Load(),
	}
}

// DomainAddrs looks up the network addresses of the mail exchangers listed
// for the named domain, most preferred first. When loopDetect is set, the
// list is truncated so it only contains hosts more preferred than this
// system itself, and Result.FoundSelf reports whether this system was seen
// at all. When no mail exchanger is listed for the domain, the domain name
// itself is resolved directly (RFC 974).
//
// DomainAddrs panics when DNS lookups are disabled in the configuration; MX
// semantics are meaningless without the DNS.
func (r *Resolver) DomainAddrs(ctx context.Context, name string, loopDetect bool) *Result {
	if !r.cfg.DNSEnabled {
		panic("resolve: DomainAddrs: DNS lookups are disabled")
	}

	r.stats.domains.Inc()
	res := &Result{}
	lg := log.Logger.With("domain", name, "rid", shortID())
	defer r.count(res)

	mxNames, err := r.dns.LookupMX(ctx, name)
	switch {
	case err != nil && isNotFound(err):
		// No MX records exist: treat the domain as its own, sole mail
		// exchanger at the best possible preference.
		r.hostAddrs(ctx, lg, name, loopDetect, res)

	case err != nil && isTransient(err):
		res.retry(codeTempResolve, "MX lookup for %s failed: %v", name, err)
		if r.cfg.IgnoreMXErrors {
			r.hostAddrs(ctx, lg, name, loopDetect, res)
		}

	case err != nil:
		res.fail(codePermResolve, "MX lookup for %s failed: %v", name, err)
		if r.cfg.IgnoreMXErrors {
			r.hostAddrs(ctx, lg, name, loopDetect, res)
		}

	default:
		r.exchangerAddrs(ctx, lg, name, mxNames, loopDetect, res)
	}
	return res
}

// exchangerAddrs resolves a non-empty MX record set into the final candidate
// list: sort by preference, flatten to addresses, truncate at self, then
// optionally randomize within equal-preference runs.
func (r *Resolver) exchangerAddrs(ctx context.Context, lg *zap.SugaredLogger, name string, mxNames []MXHost, loopDetect bool, res *Result) {
	mxs := make([]Record, 0, len(mxNames))
	for _, mx := range mxNames {
		mxs = append(mxs, Record{
			Kind: KindMX,
			Name: name,
			Pref: uint32(mx.Pref),
			Host: mx.Host,
		})
	}
	sortByPref(mxs)

	// Remember the best preference listed before resolution. If that tier
	// cannot be resolved but a worse one can, a primary relay exists that we
	// simply cannot reach right now.
	bestPref := impossiblePref
	if len(mxs) > 0 {
		bestPref = mxs[0].Pref
	}

	addrs := r.addrList(ctx, lg, mxs, res)
	if len(addrs) == 0 {
		if r.cfg.DeferNoMXAddress {
			// Keep the code and text of whatever sub-lookup failed last.
			res.Status = StatusRetry
		}
		lg.Warnf("no MX host for %s has a valid address record", name)
		return
	}
	// Finding any address supersedes per-host failures recorded on the way:
	// some exchangers being unresolvable must not deter delivery to the
	// resolvable ones.
	res.reset()
	bestFound := addrs[0].Pref
	r.logAddrs(lg, name, addrs)

	if loopDetect {
		if self, ok := r.findSelf(lg, addrs); ok {
			res.FoundSelf = true
			addrs = truncateSelf(addrs, self.Pref)
			if len(addrs) == 0 {
				if bestPref != bestFound {
					res.retry(codeHostNotFound, "unable to find primary relay for %s", name)
				} else {
					res.loop("mail for %s loops back to myself", name)
				}
			}
		}
	}

	if len(addrs) > 1 && r.cfg.Randomize {
		shuffle(addrs)
		sortByPref(addrs)
	}
	if res.FoundSelf {
		r.logAddrs(lg, name, addrs)
	}
	res.Records = addrs
}

// HostAddrs looks up all acceptable addresses listed for the named host. The
// host can be a numerical address or a symbolic name. With loopDetect set, a
// match against the local presence set discards the whole list and reports a
// delivery loop.
func (r *Resolver) HostAddrs(ctx context.Context, host string, loopDetect bool) *Result {
	r.stats.hosts.Inc()
	res := &Result{}
	lg := log.Logger.With("host", host, "rid", shortID())
	defer r.count(res)

	r.hostAddrs(ctx, lg, host, loopDetect, res)
	return res
}

// hostAddrs is the shared direct-host path, also used as the RFC 974
// fallback from DomainAddrs. The status is reset first: the fallback pass
// supersedes whatever the MX lookup recorded.
func (r *Resolver) hostAddrs(ctx context.Context, lg *zap.SugaredLogger, host string, loopDetect bool, res *Result) {
	res.reset()

	addrs := r.addrOne(ctx, lg, nil, host, BestPref, res)
	if len(addrs) > 0 {
		// A non-empty result supersedes failures from earlier tries in the
		// lookup chain, such as a DNS not-found rescued by the native
		// service.
		res.reset()
	}
	if len(addrs) > 0 && loopDetect {
		if _, ok := r.findSelf(lg, addrs); ok {
			res.loop("mail for %s loops back to myself", host)
			res.Records = nil
			return
		}
	}
	if len(addrs) > 1 {
		if r.cfg.Randomize {
			shuffle(addrs)
		}
		// Re-sorting changes the order of equal-preference hosts, and only
		// matters when more than one family is acceptable.
		if len(r.cfg.Families) > 1 {
			sortByPref(addrs)
		}
	}
	r.logAddrs(lg, host, addrs)
	res.Records = addrs
}

// addrList flattens an ordered mail exchanger list into addresses by
// resolving each exchanger in turn. Per-host failures are tolerated: some
// exchangers being unresolvable is normal and must not block delivery to
// the ones that are.
func (r *Resolver) addrList(ctx context.Context, lg *zap.SugaredLogger, mxs []Record, res *Result) []Record {
	var addrs []Record
	for _, mx := range mxs {
		if mx.Kind != KindMX {
			panic(fmt.Sprintf("resolve: addrList: bad record kind %s", mx.Kind))
		}
		addrs = r.addrOne(ctx, lg, addrs, mx.Host, mx.Pref, res)
	}
	return addrs
}

// addrOne appends the addresses for one host token to list, stamping each
// with the given preference. Literal addresses short-circuit the name
// services entirely. DNS is tried first when enabled; a DNS not-found falls
// through to the native service as a second chance, any other DNS failure
// does not.
func (r *Resolver) addrOne(ctx context.Context, lg *zap.SugaredLogger, list []Record, host string, pref uint32, res *Result) []Record {
	lg.Debugw("resolving host", "target", host, "pref", pref)

	// Interpret a numerical name as an address.
	if addr, err := netip.ParseAddr(host); err == nil {
		if r.acceptableFamily(familyOf(addr)) {
			return append(list, recordForAddr(host, pref, addr))
		}
		// An address of a family we do not deliver over: fall through to
		// the name services, which will reject the token properly.
	}

	if r.cfg.DNSEnabled {
		addrs, err := r.dns.LookupAddrs(ctx, host, r.cfg.Families)
		switch {
		case err == nil:
			for _, a := range addrs {
				// The caller's preference overrides whatever the transport
				// layer attached.
				list = append(list, recordForAddr(host, pref, a))
			}
			return list
		case isTransient(err):
			res.retry(codeTempResolve, "name service error for %s: %v", host, err)
			return list
		case isNotFound(err):
			res.fail(codeHostNotFound, "unable to look up host %s: %v", host, err)
			// Maybe the native name service will succeed.
		default:
			res.fail(codeTempResolve, "name service error for %s: %v", host, err)
			return list
		}
	}

	if r.cfg.NativeEnabled {
		addrs, err := r.native.LookupNetIP(ctx, "ip", host)
		if err != nil {
			code := codeLocalError
			if isNotFound(err) || isTransient(err) {
				code = codeHostNotFound
			}
			if isTransient(err) {
				res.retry(code, "unable to look up host %s: %v", host, err)
			} else {
				res.fail(code, "unable to look up host %s: %v", host, err)
			}
			return list
		}
		found := 0
		for _, a := range addrs {
			if !r.acceptableFamily(familyOf(a)) {
				lg.Infow("skipping address in unacceptable family", "target", host, "addr", a.String())
				continue
			}
			found++
			list = append(list, recordForAddr(host, pref, a))
		}
		if found == 0 {
			res.fail(codePermNoHost, "%s: host not found", host)
		}
		return list
	}

	// No further alternatives for host lookup.
	return list
}

// findSelf takes a fresh presence snapshot and returns the most preferred
// record whose address belongs to this system or its proxy.
func (r *Resolver) findSelf(lg *zap.SugaredLogger, recs []Record) (Record, bool) {
	local, err := r.local.LocalAddrs()
	if err != nil {
		lg.Warnw("cannot snapshot local addresses, loop detection skipped", "error", err)
		return Record{}, false
	}
	self, ok := findSelf(recs, local)
	if ok {
		lg.Debugw("found self", "pref", self.Pref, "addr", self.Addr.String())
	}
	return self, ok
}

func (r *Resolver) acceptableFamily(f Family) bool {
	for _, want := range r.cfg.Families {
		if f == want {
			return true
		}
	}
	return false
}

// logAddrs prints the candidate list at debug level, one line per record.
func (r *Resolver) logAddrs(lg *zap.SugaredLogger, what string, recs []Record) {
	if !log.Logger.Desugar().Core().Enabled(zap.DebugLevel) {
		return
	}
	lg.Debugf("begin %s address list", what)
	for _, rec := range recs {
		lg.Debugf("pref %4d host %s/%s", rec.Pref, rec.Name, rec.Addr)
	}
	lg.Debugf("end %s address list", what)
}

// count rolls the final status of a call into the stats counters.
func (r *Resolver) count(res *Result) {
	switch res.Status {
	case StatusRetry:
		r.stats.retries.Inc()
	case StatusFail:
		r.stats.failures.Inc()
	case StatusLoop:
		r.stats.loops.Inc()
	case StatusNone:
	}
}

// shortID returns a compact correlation id for a resolution call's logs.
func shortID() string {
	return uuid.NewString()[:8]
}
