package main

import (
	"context"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes [agency_id...]",
	Short: "Builds and saves route config documents",
	Args:  cobra.ArbitraryArgs,
	RunE:  routes,
}

func routes(cmd *cobra.Command, args []string) error {
	scraper, cfg, err := newScraper()
	if err != nil {
		return err
	}

	for _, id := range agencyIDs(cfg, args) {
		if err := scraper.SaveRoutes(context.Background(), id); err != nil {
			return err
		}
	}

	return nil
}
