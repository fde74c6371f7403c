package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/product-crawler/internal/config"
)

// NewRootCmd creates the root command. Every setting is a persistent flag
// so both subcommands accept it.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "Crawl product pages and write them as a JSON array",
		Long: `crawler fetches product pages from daraz.pk, extracts one record per
page and writes every record with a distinct title to products_<name>.json.

Settings come from flags, CRAWLER_* environment variables or a config file,
in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newModeCmd(config.ModeQuery,
		"Crawl the result pages of a search",
		`Fetch the search results for --query, follow pagination and scrape every
product the results link to.`))
	cmd.AddCommand(newModeCmd(config.ModeCrawl,
		"Crawl the site from its start pages",
		`Follow navigation links from --start-urls across the site and scrape every
product page found on the way.`))

	return cmd
}

func newModeCmd(mode config.Mode, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   string(mode),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), mode)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
