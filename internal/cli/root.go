// Package cli wires the scraping pipeline behind a cobra command tree.
package cli

import (
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"outagemap/internal/stormcenter"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	BaseURL string
}

// NewRootCommand creates the root command for the outagemap CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "outagemap",
		Short: "Scrape power outage data from Storm Center deployments",
		Long: `outagemap collects the power-outage clusters a Storm Center deployment
publishes as a quadkey-tiled dataset, refining resolution only where outage
clusters are dense, and emits the collected records as GeoJSON features.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional .env for host/concurrency overrides; absence is fine.
			_ = godotenv.Load()

			if opts.BaseURL == "" {
				opts.BaseURL = os.Getenv("OUTAGEMAP_BASE_URL")
			}
			if opts.BaseURL == "" {
				opts.BaseURL = stormcenter.DefaultBaseURL
			}

			// Progress lines go through the default logger on stderr and are
			// opt-in so stdout stays clean for the data output.
			if !opts.Verbose {
				log.SetOutput(io.Discard)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log scraping progress to stderr")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "Storm Center host override (default "+stormcenter.DefaultBaseURL+")")

	cmd.AddCommand(NewScrapeCommand(opts))

	return cmd
}
