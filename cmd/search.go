package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchThread string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over your local transcript history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if a.store == nil {
			return errors.New("local history is disabled in config; nothing to search")
		}

		query := strings.Join(args, " ")
		results, err := a.store.Search(cmd.Context(), searchThread, query, 20)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}

		for _, r := range results {
			fmt.Printf("%s  %-9s  %s\n", r.ThreadID, r.Role, r.Snippet)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchThread, "thread", "t", "", "Limit the search to one thread")
	rootCmd.AddCommand(searchCmd)
}
