package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gopm2/gopm2/internal/config"
	"github.com/gopm2/gopm2/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show operations recorded by the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := history.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()

		ops, err := store.RecentOperations(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No recorded operations")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tTARGET\tRESULT")
		for _, op := range ops {
			result := "ok"
			if !op.Success {
				result = op.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				op.CreatedAt.Format("2006-01-02 15:04:05"), op.Action, op.Target, result)
		}
		w.Flush()
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(historyCmd)
}
