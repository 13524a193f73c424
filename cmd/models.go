package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the backend offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		models, err := a.client.Models(cmd.Context())
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(models))
		for id := range models {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			marker := " "
			if id == a.cfg.DefaultModel {
				marker = "*"
			}
			fmt.Printf("%s %-28s %s\n", marker, id, models[id].Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
