package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/Adwaitkp/primaspot/pkg/ui"
	"github.com/spf13/cobra"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the database holds",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.coordinator.Status(context.Background())
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	lastUpdate := "never"
	if !st.Stats.LastUpdate.IsZero() {
		lastUpdate = st.Stats.LastUpdate.Local().Format("2006-01-02 15:04")
	}
	ui.PrintTable("Database", []ui.Field{
		{Label: "Influencers", Value: st.Stats.TotalInfluencers},
		{Label: "Followers", Value: st.Stats.TotalFollowers},
		{Label: "Avg followers", Value: st.Stats.AvgFollowers},
		{Label: "Posts", Value: st.Stats.PostsCount},
		{Label: "Reels", Value: st.Stats.ReelsCount},
		{Label: "Last update", Value: lastUpdate},
	})

	if len(st.RecentInfluencers) == 0 {
		return nil
	}
	recent := make([]ui.Field, 0, len(st.RecentInfluencers))
	for _, p := range st.RecentInfluencers {
		recent = append(recent, ui.Field{
			Label: p.Username,
			Value: ui.Dim(p.LastScraped.Local().Format("2006-01-02 15:04")),
		})
	}
	ui.PrintTable("Recently scraped", recent)
	return nil
}
