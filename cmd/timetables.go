package main

import (
	"context"

	"github.com/spf13/cobra"
)

var timetablesCmd = &cobra.Command{
	Use:   "timetables [agency_id...]",
	Short: "Builds and saves timetable documents and their date key index",
	Args:  cobra.ArbitraryArgs,
	RunE:  timetables,
}

func timetables(cmd *cobra.Command, args []string) error {
	scraper, cfg, err := newScraper()
	if err != nil {
		return err
	}

	for _, id := range agencyIDs(cfg, args) {
		if err := scraper.SaveTimetables(context.Background(), id); err != nil {
			return err
		}
	}

	return nil
}
