package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "identigraph",
		Short: "Crawl identity upstreams into a cross-platform identity graph",
		Long: `identigraph starts from a seed identity (a wallet, a social handle, a
name service entry) and asks every capable upstream what it knows about it.
Every asserted fact is stored as a vertex or edge in a local graph store, and
newly discovered identities are crawled in turn until nothing new appears.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default: search $IDENTIGRAPH_CONFIG, ./identigraph.yaml, XDG, /etc)")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(
		newCrawlCmd(flags),
		newServeCmd(flags),
		newAbilityCmd(flags),
	)
	return rootCmd
}
