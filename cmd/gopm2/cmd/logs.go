package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gopm2/gopm2/pkg/pm2"
)

var logsCmd = &cobra.Command{
	Use:   "logs <name|pm_id>",
	Short: "Print recent log lines for a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, _ := cmd.Flags().GetInt("lines")

		mgr, err := newManager()
		if err != nil {
			return err
		}

		// Log retrieval can move a lot of output; give it a larger budget
		// than regular commands.
		budget := commandTimeout()
		if budget < pm2.DefaultLogTimeout {
			budget = pm2.DefaultLogTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()

		logs, err := mgr.Logs(ctx, identFromArg(args[0]), lines)
		if err != nil {
			return err
		}
		fmt.Print(logs)
		return nil
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush [name|pm_id]",
	Short: "Clear log files for a process, or for ALL processes when no target is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ident pm2.Ident
		if len(args) == 1 {
			ident = identFromArg(args[0])
		} else {
			all, _ := cmd.Flags().GetBool("all")
			if !all {
				return fmt.Errorf("flushing every process's logs requires --all")
			}
		}

		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		if err := mgr.FlushLogs(ctx, ident); err != nil {
			return err
		}
		if ident.IsZero() {
			fmt.Println("✓ Flushed logs for all processes")
		} else {
			fmt.Printf("✓ Flushed logs for %s\n", args[0])
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().Int("lines", 100, "Number of log lines to print")
	flushCmd.Flags().Bool("all", false, "Confirm flushing logs for every process")

	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(flushCmd)
}
