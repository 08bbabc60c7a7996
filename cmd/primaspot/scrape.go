package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Adwaitkp/primaspot/pkg/scraper"
	"github.com/Adwaitkp/primaspot/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	scrapeStage      string
	scrapeForce      bool
	scrapeLimit      int
	scrapePostsLimit int
	scrapeReelsLimit int
	scrapeJSON       bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <username>",
	Short: "Scrape one Instagram profile from the terminal",
	Long: `Scrape one Instagram profile and store the results.

Stages:
  profile   fetch the profile, reusing a fresh stored copy unless --force
  posts     fetch recent posts of an already stored profile
  reels     fetch recent reels of an already stored profile
  complete  fetch the profile, posts and reels in one browser session`,
	Example: `  # Everything in one go
  primaspot scrape natgeo

  # Refresh only the profile even if it is fresh
  primaspot scrape natgeo --stage profile --force

  # Up to 30 posts, printed as JSON
  primaspot scrape natgeo --stage posts --limit 30 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeStage, "stage", "complete", "what to scrape (profile, posts, reels, complete)")
	scrapeCmd.Flags().BoolVar(&scrapeForce, "force", false, "ignore a fresh stored profile")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "item limit for the posts and reels stages")
	scrapeCmd.Flags().IntVar(&scrapePostsLimit, "posts-limit", 0, "posts limit for a complete scrape")
	scrapeCmd.Flags().IntVar(&scrapeReelsLimit, "reels-limit", 0, "reels limit for a complete scrape")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "print the result as JSON")
}

func runScrape(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintInfo("Target Profile", username)

	ctx := context.Background()
	var res *scraper.Result
	switch strings.ToLower(scrapeStage) {
	case "profile":
		res, err = a.coordinator.ScrapeProfile(ctx, username, scrapeForce)
	case "posts":
		res, err = a.coordinator.ScrapePosts(ctx, username, scrapeLimit)
	case "reels":
		res, err = a.coordinator.ScrapeReels(ctx, username, scrapeLimit)
	case "complete":
		res, err = a.coordinator.ScrapeComplete(ctx, username, scrapePostsLimit, scrapeReelsLimit)
	default:
		return fmt.Errorf("unknown stage %q", scrapeStage)
	}
	if err != nil {
		return err
	}

	if scrapeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printResult(res)
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d stage(s) failed", len(res.Errors))
	}
	return nil
}

func printResult(res *scraper.Result) {
	if p := res.Profile; p != nil {
		source := "scraped"
		if res.Cached {
			source = "cached"
		}
		ui.PrintTable("Profile ("+source+")", []ui.Field{
			{Label: "Username", Value: p.Username},
			{Label: "Name", Value: p.FullName},
			{Label: "Followers", Value: p.Followers},
			{Label: "Following", Value: p.Following},
			{Label: "Posts", Value: p.PostsCount},
			{Label: "Category", Value: p.Category},
			{Label: "Avg likes", Value: fmt.Sprintf("%.2f", p.Analytics.AverageLikes)},
			{Label: "Avg comments", Value: fmt.Sprintf("%.2f", p.Analytics.AverageComments)},
			{Label: "Engagement", Value: fmt.Sprintf("%.2f%%", p.Analytics.EngagementRate)},
		})
	}

	ui.PrintTable("Summary", []ui.Field{
		{Label: "Posts saved", Value: res.Summary.PostsCount},
		{Label: "Reels saved", Value: res.Summary.ReelsCount},
		{Label: "Skipped", Value: len(res.Warnings)},
		{Label: "Errors", Value: res.Summary.ErrorsCount},
	})

	for _, w := range res.Warnings {
		ui.PrintWarning("Skipped "+w.ContentID, w.Reason)
	}
	for _, e := range res.Errors {
		ui.PrintError(e.Error())
	}
	if len(res.Errors) == 0 {
		ui.PrintSuccess("Scrape completed")
	}
}
