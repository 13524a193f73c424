package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// threadsCmd is read-only: threads are created, renamed and deleted through
// the web client, never from here.
var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List your conversation threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.cache.Refresh(cmd.Context()); err != nil {
			return err
		}

		threads := a.cache.List()
		if len(threads) == 0 {
			fmt.Println("no threads yet")
			return nil
		}

		for _, t := range threads {
			preview := t.LastMessagePreview
			if len(preview) > 60 {
				preview = preview[:57] + "…"
			}
			fmt.Printf("%s  %-30s %3d msgs  %s\n", t.ID, t.Title, t.MessageCount, preview)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
}
