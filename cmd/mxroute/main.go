// Command `mxroute` resolves the delivery plan for a mail destination.
//
// Given a destination domain it looks up the mail exchangers, resolves them
// to addresses, orders the candidates by preference, and prints the list an
// SMTP client would try, in order. Given a bare host it resolves the host
// directly.
//
// Usage:
//
//	mxroute domain <name>   - Resolve the MX-ordered delivery plan for a domain
//	mxroute host <name>     - Resolve a single host or literal address
//	mxroute version         - Show version information
//
// Examples:
//
//	mxroute domain example.com              - Full MX resolution for example.com
//	mxroute domain example.com --no-loop    - Skip the self/loop check
//	mxroute host mail.example.com           - Direct host resolution
//	mxroute host 192.0.2.25                 - Literal address, no lookup at all
//
// Exit codes mirror the resolution status: 0 for success, 75 (tempfail) when
// the attempt should be retried, 69 (unavailable) for permanent failures and
// 78 (config) when mail would loop back to this system.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lc/mxroute/internal/buildinfo"
	"github.com/lc/mxroute/internal/config"
	"github.com/lc/mxroute/internal/dnsclient"
	"github.com/lc/mxroute/internal/localaddr"
	"github.com/lc/mxroute/pkg/resolve"
)

// sysexits.h codes understood by mail tooling.
const (
	exTempfail    = 75
	exUnavailable = 69
	exConfig      = 78
)

func main() {
	cfg, err := config.New().Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var (
		noLoop    bool
		randomize bool
	)

	root := &cobra.Command{
		Use:   "mxroute",
		Short: "Mail routing address resolver",
		Long: `mxroute computes the ordered set of addresses an outbound mail message
for a destination would be delivered to, the way an SMTP client does:
MX lookup, per-host address resolution, preference ordering and
self/loop detection.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("randomize") {
				cfg.Lookup.Randomize = randomize
			}
		},
	}
	root.PersistentFlags().BoolVar(&noLoop, "no-loop", false, "skip self/loop detection")
	root.PersistentFlags().BoolVar(&randomize, "randomize", true, "shuffle equal-preference candidates")

	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	// ---- domain command ----
	domainCmd := &cobra.Command{
		Use:   "domain <name>",
		Short: "Resolve the MX-ordered delivery plan for a domain",
		Long: `Resolve the mail exchangers for a domain and print the addresses an SMTP
client would try, most preferred first. When the domain lists no MX records
the domain itself is resolved directly (RFC 974).`,
		Example: "mxroute domain example.com",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if !cfg.Lookup.DNSEnabled {
				return fmt.Errorf("domain resolution requires dns_enabled in the configuration")
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			res := buildResolver(cfg).DomainAddrs(ctx, args[0], !noLoop)
			render(args[0], res)
			if res.FoundSelf {
				color.New(color.FgHiYellow).Println("note: this system is listed as a mail exchanger for the destination")
			}
			exit(res.Status)
			return nil
		},
	}

	// ---- host command ----
	hostCmd := &cobra.Command{
		Use:     "host <name>",
		Short:   "Resolve a single host or literal address",
		Example: "mxroute host mail.example.com",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			res := buildResolver(cfg).HostAddrs(ctx, args[0], !noLoop)
			render(args[0], res)
			exit(res.Status)
			return nil
		},
	}

	root.AddCommand(domainCmd, hostCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildResolver(cfg *config.Config) *resolve.Resolver {
	rcfg := resolve.Config{
		DNSEnabled:       cfg.Lookup.DNSEnabled,
		NativeEnabled:    cfg.Lookup.NativeEnabled,
		Families:         toFamilies(cfg.Lookup.Families),
		Randomize:        cfg.Lookup.Randomize,
		IgnoreMXErrors:   cfg.Lookup.IgnoreMXErrors,
		DeferNoMXAddress: cfg.Lookup.DeferNoMXAddress,
	}

	opts := []resolve.Opt{
		resolve.WithPresence(localaddr.New(cfg.ProxyAddrs()...)),
	}
	if cfg.Lookup.DNSEnabled {
		opts = append(opts, resolve.WithDNS(dnsclient.New(
			cfg.DNS.Timeout,
			dnsclient.WithResolvers(cfg.DNS.Servers),
			dnsclient.WithRetries(cfg.DNS.Retries),
		)))
	}
	return resolve.New(rcfg, opts...)
}

func toFamilies(names []string) []resolve.Family {
	families := make([]resolve.Family, 0, len(names))
	for _, n := range names {
		switch n {
		case config.FamilyV4:
			families = append(families, resolve.FamilyV4)
		case config.FamilyV6:
			families = append(families, resolve.FamilyV6)
		}
	}
	return families
}

// render prints the candidate table and, on failure, the diagnostic.
func render(what string, res *resolve.Result) {
	if len(res.Records) == 0 {
		switch res.Status {
		case resolve.StatusNone:
			color.Yellow("No delivery candidates for %s.", what)
		case resolve.StatusRetry:
			color.New(color.FgYellow, color.Bold).Printf("✗ %s: temporary failure", what)
			fmt.Printf(" [%s] %s\n", res.Code, res.Text)
		case resolve.StatusFail:
			color.New(color.FgRed, color.Bold).Printf("✗ %s: resolution failed", what)
			fmt.Printf(" [%s] %s\n", res.Code, res.Text)
		case resolve.StatusLoop:
			color.New(color.FgRed, color.Bold).Printf("✗ %s: mail loops back to this system", what)
			fmt.Printf(" [%s] %s\n", res.Code, res.Text)
		}
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pref", "Type", "Host", "Address"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
	)
	table.SetBorder(false)
	table.SetColumnColor(
		tablewriter.Colors{tablewriter.FgHiWhiteColor},
		tablewriter.Colors{tablewriter.FgYellowColor},
		tablewriter.Colors{tablewriter.FgGreenColor},
		tablewriter.Colors{tablewriter.FgHiWhiteColor},
	)

	for _, rec := range res.Records {
		table.Append([]string{
			fmt.Sprintf("%d", rec.Pref),
			rec.Kind.String(),
			rec.Name,
			rec.Addr.String(),
		})
	}

	color.New(color.Bold).Printf("DELIVERY PLAN FOR %s:\n", what)
	table.Render()
}

func exit(status resolve.Status) {
	switch status {
	case resolve.StatusRetry:
		os.Exit(exTempfail)
	case resolve.StatusFail:
		os.Exit(exUnavailable)
	case resolve.StatusLoop:
		os.Exit(exConfig)
	case resolve.StatusNone:
	}
}
